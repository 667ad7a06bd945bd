package reflection

import (
	"reflect"
	"strings"
)

// FormatType formats a reflect.Type for error messages, preferring short
// package-qualified names over full import paths.
func FormatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + FormatType(t.Elem())
	case reflect.Slice:
		return "[]" + FormatType(t.Elem())
	case reflect.Map:
		return "map[" + FormatType(t.Key()) + "]" + FormatType(t.Elem())
	case reflect.Interface, reflect.Struct:
		if t.Name() != "" && t.PkgPath() != "" {
			return lastSegment(t.PkgPath()) + "." + t.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}

// FormatMethod formats an interface method reference as Iface.Method.
func FormatMethod(iface reflect.Type, method string) string {
	if iface == nil {
		return method
	}
	return FormatType(iface) + "." + method
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

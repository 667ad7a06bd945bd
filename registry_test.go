package faultline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/faultlineio/faultline"
	"github.com/faultlineio/faultline/internal/faulttest"
)

func TestRegistry_Intercept(t *testing.T) {
	t.Run("validates at registration", func(t *testing.T) {
		r := faultline.NewRegistry()
		err := faultline.Intercept(r, faulttest.NewDirectoryProxy,
			faultline.Bind[faulttest.Directory]("Vanish").
				Trigger(faultline.AfterCalls(1)).
				Effect(faultline.Throw(errors.New("boom"))))
		require.ErrorIs(t, err, faultline.ErrNoSuchMethod)
	})

	t.Run("rejects nil shim", func(t *testing.T) {
		r := faultline.NewRegistry()
		err := faultline.Intercept[faulttest.Directory](r, nil)
		require.Error(t, err)
		assert.True(t, faultline.IsConfiguration(err))
	})

	t.Run("records policies in registration order", func(t *testing.T) {
		r := faultline.NewRegistry()
		first := faultline.Bind[faulttest.Directory]("Lookup").
			Trigger(faultline.AfterCalls(1)).
			Effect(faultline.Delay(0))
		second := faultline.Bind[faulttest.Directory]("Lookup").
			Trigger(faultline.AfterCalls(2)).
			Effect(faultline.Throw(errors.New("boom")))

		require.NoError(t, faultline.Intercept(r, faulttest.NewDirectoryProxy, first))
		require.NoError(t, faultline.Intercept(r, faulttest.NewDirectoryProxy, second))

		ifaceType := faultline.InterfaceType[faulttest.Directory]()
		got := r.Policies(ifaceType)
		require.Len(t, got, 2)
		assert.Same(t, first, got[0])
		assert.Same(t, second, got[1])
	})
}

func TestRegistry_Apply(t *testing.T) {
	// The container must hand out the proxy, not the raw implementation,
	// once policies are bound.
	r := faultline.NewRegistry()
	require.NoError(t, faultline.Intercept(r, faulttest.NewDirectoryProxy,
		faultline.Bind[faulttest.Directory]("Lookup").
			Trigger(faultline.AfterCalls(2)).
			Effect(faultline.Throw(errors.New("boom")))))

	real := newDirectory()
	container := dig.New()
	require.NoError(t, container.Provide(func() faulttest.Directory { return real }))
	require.NoError(t, r.Apply(container))

	err := container.Invoke(func(dir faulttest.Directory) {
		_, ok := dir.(*faulttest.DirectoryProxy)
		require.True(t, ok, "resolved instance should be the proxy")

		_, lookupErr := dir.Lookup(context.Background(), "1")
		require.NoError(t, lookupErr)

		_, lookupErr = dir.Lookup(context.Background(), "1")
		require.Error(t, lookupErr)
		assert.Equal(t, "boom", lookupErr.Error())
	})
	require.NoError(t, err)

	// Only the first call got through to the implementation.
	assert.Equal(t, 1, real.Calls("Lookup"))
}

func TestRegistry_ApplyScope(t *testing.T) {
	r := faultline.NewRegistry()
	require.NoError(t, faultline.Intercept(r, faulttest.NewDirectoryProxy,
		faultline.Bind[faulttest.Directory]("Lookup").
			Trigger(faultline.AfterCalls(1)).
			Effect(faultline.Throw(errors.New("scoped boom")))))

	container := dig.New()
	require.NoError(t, container.Provide(func() faulttest.Directory { return newDirectory() }))

	scope := container.Scope("faulty")
	require.NoError(t, r.ApplyScope(scope))

	// Inside the scope: proxied.
	err := scope.Invoke(func(dir faulttest.Directory) {
		_, lookupErr := dir.Lookup(context.Background(), "1")
		require.Error(t, lookupErr)
		assert.Equal(t, "scoped boom", lookupErr.Error())
	})
	require.NoError(t, err)

	// Outside the scope: untouched.
	err = container.Invoke(func(dir faulttest.Directory) {
		_, lookupErr := dir.Lookup(context.Background(), "1")
		require.NoError(t, lookupErr)
	})
	require.NoError(t, err)
}

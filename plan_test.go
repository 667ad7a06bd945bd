package faultline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultlineio/faultline"
	"github.com/faultlineio/faultline/internal/faulttest"
)

const samplePlan = `
faults:
  - interface: Directory
    method: Lookup
    trigger: {kind: after, calls: 2}
    effect: {kind: throw, message: "boom"}
  - interface: Directory
    method: Lookup
    trigger: {kind: every, calls: 2}
    effect: {kind: delay, delay: 40ms}
  - interface: Directory
    method: Lookup
    trigger: {kind: on, calls: 1}
    effect: {kind: transform, mapper: rename}
  - interface: Billing
    method: Charge
    trigger: {kind: after, calls: 1}
    effect: {kind: throw, error: declined}
`

func TestParsePlan(t *testing.T) {
	plan, err := faultline.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)
	require.Len(t, plan.Faults, 4)

	assert.Equal(t, "Directory", plan.Faults[0].Interface)
	assert.Equal(t, "after", plan.Faults[0].Trigger.Kind)
	assert.Equal(t, 2, plan.Faults[0].Trigger.Calls)
	assert.Equal(t, "boom", plan.Faults[0].Effect.Message)
	assert.Equal(t, faultline.Duration(40*time.Millisecond), plan.Faults[1].Effect.Delay)
	assert.Equal(t, "rename", plan.Faults[2].Effect.Mapper)
	assert.Equal(t, "declined", plan.Faults[3].Effect.Error)
}

func TestLoadPlan(t *testing.T) {
	plan, err := faultline.LoadPlan(strings.NewReader(samplePlan))
	require.NoError(t, err)
	assert.Len(t, plan.Faults, 4)
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			"missing interface",
			"faults:\n  - method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: throw, message: x}\n",
			"interface name is required",
		},
		{
			"missing method",
			"faults:\n  - interface: I\n    trigger: {kind: after, calls: 1}\n    effect: {kind: throw, message: x}\n",
			"method selector is required",
		},
		{
			"unknown trigger kind",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: sometimes, calls: 1}\n    effect: {kind: throw, message: x}\n",
			`unknown trigger kind "sometimes"`,
		},
		{
			"non-positive calls",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: every, calls: 0}\n    effect: {kind: throw, message: x}\n",
			"must be positive",
		},
		{
			"unknown effect kind",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: explode}\n",
			`unknown effect kind "explode"`,
		},
		{
			"throw without payload",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: throw}\n",
			"needs a message or a named error",
		},
		{
			"delay without duration",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: delay}\n",
			"positive duration",
		},
		{
			"transform without mapper",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: transform}\n",
			"needs a named mapper",
		},
		{
			"bad duration",
			"faults:\n  - interface: I\n    method: M\n    trigger: {kind: after, calls: 1}\n    effect: {kind: delay, delay: fast}\n",
			"invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := faultline.ParsePlan([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestPoliciesFor(t *testing.T) {
	plan, err := faultline.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)

	res := faultline.NewPlanResolver()
	res.RegisterMapper("rename", func(r *faulttest.Record) *faulttest.Record {
		r.Name = "Chuck"
		return r
	})

	policies, err := faultline.PoliciesFor[faulttest.Directory](plan, "Directory", res)
	require.NoError(t, err)
	require.Len(t, policies, 3, "Billing entries must not leak into Directory policies")

	// End to end: plan-built policies drive the pipeline.
	dir := newDirectory()
	px, err := faultline.Wrap[faulttest.Directory](dir, policies...)
	require.NoError(t, err)
	proxied := faulttest.NewDirectoryProxy(px)

	// Call 1: transform (on:1) fires, throw (after:2) does not.
	rec, err := proxied.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Chuck", rec.Name)

	// Call 2: throw fires.
	_, err = proxied.Lookup(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestPoliciesFor_UnresolvedNames(t *testing.T) {
	plan, err := faultline.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)

	t.Run("missing mapper", func(t *testing.T) {
		_, err := faultline.PoliciesFor[faulttest.Directory](plan, "Directory", faultline.NewPlanResolver())
		require.ErrorIs(t, err, faultline.ErrUnknownMapper)

		var planErr faultline.PlanError
		require.ErrorAs(t, err, &planErr)
		assert.Equal(t, 2, planErr.Index)
	})

	t.Run("missing error", func(t *testing.T) {
		type billing interface {
			Charge(ctx context.Context, amount int) error
		}
		_, err := faultline.PoliciesFor[billing](plan, "Billing", faultline.NewPlanResolver())
		require.ErrorIs(t, err, faultline.ErrUnknownError)
	})

	t.Run("named error resolves", func(t *testing.T) {
		type billing interface {
			Charge(ctx context.Context, amount int) error
		}
		declined := errors.New("card declined")
		res := faultline.NewPlanResolver()
		res.RegisterError("declined", declined)

		policies, err := faultline.PoliciesFor[billing](plan, "Billing", res)
		require.NoError(t, err)
		require.Len(t, policies, 1)
	})
}

func TestInterceptPlan(t *testing.T) {
	plan, err := faultline.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)

	res := faultline.NewPlanResolver()
	res.RegisterMapper("rename", func(r *faulttest.Record) *faulttest.Record {
		r.Name = "Chuck"
		return r
	})

	r := faultline.NewRegistry()
	require.NoError(t, faultline.InterceptPlan(r, plan, "Directory", faulttest.NewDirectoryProxy, res))
	assert.Len(t, r.Policies(faultline.InterfaceType[faulttest.Directory]()), 3)
}

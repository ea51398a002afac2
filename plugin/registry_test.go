package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

type recorder struct {
	name     string
	applied  atomic.Int32
	rejected atomic.Int32
	fail     bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnMutationApplied(context.Context, *account.Account, *trace.Trace) error {
	r.applied.Add(1)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) OnMutationRejected(context.Context, string, trace.Operation, types.Amount, error) error {
	r.rejected.Add(1)
	return nil
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnShutdown(ctx context.Context) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitDispatchesByInterface(t *testing.T) {
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))
	require.NoError(t, r.Register(slowPlugin{}))

	ctx := context.Background()
	r.EmitMutationApplied(ctx, &account.Account{}, &trace.Trace{})
	r.EmitMutationRejected(ctx, "alice", trace.OpStack, types.NewAmount(1), errors.New("nope"))
	r.EmitTransferFailed(ctx, &trace.Trace{}, errors.New("down"))

	assert.EqualValues(t, 1, rec.applied.Load())
	assert.EqualValues(t, 1, rec.rejected.Load())
	assert.Len(t, r.List(), 2)
}

func TestEmitSwallowsHookErrors(t *testing.T) {
	r := plugin.NewRegistry()
	rec := &recorder{name: "failing", fail: true}
	require.NoError(t, r.Register(rec))

	assert.NotPanics(t, func() {
		r.EmitMutationApplied(context.Background(), &account.Account{}, &trace.Trace{})
	})
	assert.EqualValues(t, 1, rec.applied.Load())
}

func TestEmitTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(10 * time.Millisecond)
	require.NoError(t, r.Register(slowPlugin{}))

	start := time.Now()
	r.EmitShutdown(context.Background())
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

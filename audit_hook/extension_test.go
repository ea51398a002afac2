package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	audithook "github.com/xraph/treasury/audit_hook"
	"github.com/xraph/treasury/gateway"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/types"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func newEngine(rec audithook.Recorder, opts ...audithook.Option) *treasury.Treasury {
	failing := gateway.Func(func(context.Context, string, string, types.Amount) (gateway.Receipt, error) {
		return gateway.Receipt{}, errors.New("node unreachable")
	})
	return treasury.New(memory.New(),
		treasury.WithReconcileSchedule(""),
		treasury.WithGateway(failing),
		treasury.WithPlugin(audithook.New(rec, opts...)),
	)
}

func TestRecordsLedgerEvents(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	eng := newEngine(s)

	_, _, err := eng.AddTokenBalance(ctx, "alice", types.NewAmount(100))
	require.NoError(t, err)
	_, _, err = eng.UseCredit(ctx, "alice", types.NewAmount(1))
	require.Error(t, err)
	_, _, err = eng.Transfer(ctx, "alice", "bob", types.NewAmount(10))
	require.Error(t, err)
	require.NoError(t, eng.DeleteAccount(ctx, "alice"))

	assert.Equal(t, []string{
		audithook.ActionAccountOpened,
		audithook.ActionMutationApplied,
		audithook.ActionMutationRejected,
		audithook.ActionTransferFailed,
		audithook.ActionAccountDeleted,
	}, s.actions())

	applied := s.events[1]
	assert.Equal(t, audithook.ResourceTrace, applied.Resource)
	assert.Equal(t, "add_token", applied.Metadata["operation"])
	assert.Equal(t, "100", applied.Metadata["token_balance"])

	rejected := s.events[2]
	assert.Equal(t, audithook.OutcomeFailure, rejected.Outcome)
	assert.Contains(t, rejected.Reason, "insufficient balance")

	failed := s.events[3]
	assert.Equal(t, audithook.SeverityError, failed.Severity)
	assert.Equal(t, "bob", failed.Metadata["recipients"])
	assert.Contains(t, failed.Reason, "node unreachable")
}

func TestEnabledActions(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	eng := newEngine(s, audithook.WithEnabledActions(audithook.ActionMutationRejected))

	_, _, _ = eng.AddTokenBalance(ctx, "alice", types.NewAmount(5))
	_, _, _ = eng.Stack(ctx, "alice", types.NewAmount(50))

	assert.Equal(t, []string{audithook.ActionMutationRejected}, s.actions())
}

func TestDisabledActions(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	eng := newEngine(s, audithook.WithDisabledActions(audithook.ActionAccountOpened))

	_, _, _ = eng.AddTokenBalance(ctx, "alice", types.NewAmount(5))

	assert.Equal(t, []string{audithook.ActionMutationApplied}, s.actions())
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("disk full")
	}))
	assert.NoError(t, ext.OnAccountDeleted(context.Background(), "alice"))
}

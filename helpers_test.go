package treasury_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

var errBoom = errors.New("boom")

// fakeClock is a settable engine clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore fails selected writes of the wrapped store on demand.
// It also logs every status written per trace id.
type faultyStore struct {
	store.Store
	failPut    atomic.Bool
	failUpdate atomic.Bool

	mu      sync.Mutex
	updates map[string][]trace.Status
}

func (s *faultyStore) PutAccount(ctx context.Context, a *account.Account) error {
	if s.failPut.Load() {
		return errBoom
	}
	return s.Store.PutAccount(ctx, a)
}

func (s *faultyStore) UpdateTrace(ctx context.Context, t *trace.Trace) error {
	if s.failUpdate.Load() {
		return errBoom
	}
	s.mu.Lock()
	if s.updates == nil {
		s.updates = make(map[string][]trace.Status)
	}
	s.updates[t.ID] = append(s.updates[t.ID], t.Status())
	s.mu.Unlock()
	return s.Store.UpdateTrace(ctx, t)
}

// statusUpdates returns the statuses written for traceID, in order.
func (s *faultyStore) statusUpdates(traceID string) []trace.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trace.Status(nil), s.updates[traceID]...)
}

// recorder counts the hooks it receives.
type recorder struct {
	mu         sync.Mutex
	inits      int
	shutdowns  int
	opened     []string
	applied    []trace.Operation
	rejected   []error
	failed     []string
	rolledBack []string
	stale      []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInit(context.Context, any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits++
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns++
	return nil
}

func (r *recorder) OnAccountOpened(_ context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, a.OwnerID)
	return nil
}

func (r *recorder) OnMutationApplied(_ context.Context, _ *account.Account, t *trace.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, t.Operation())
	return nil
}

func (r *recorder) OnMutationRejected(_ context.Context, _ string, _ trace.Operation, _ types.Amount, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
	return nil
}

func (r *recorder) OnTransferFailed(_ context.Context, t *trace.Trace, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, t.ID)
	return nil
}

func (r *recorder) OnBatchRolledBack(_ context.Context, _, batchID string, _ []*trace.Trace, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolledBack = append(r.rolledBack, batchID)
	return nil
}

func (r *recorder) OnStalePendingTrace(_ context.Context, t *trace.Trace, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = append(r.stale, t.ID)
	return nil
}

// newEngine returns an unstarted engine over a fresh memory store.
func newEngine(t *testing.T, opts ...treasury.Option) (*treasury.Treasury, *faultyStore) {
	t.Helper()
	s := &faultyStore{Store: memory.New()}
	opts = append([]treasury.Option{treasury.WithReconcileSchedule("")}, opts...)
	return treasury.New(s, opts...), s
}

func amt(n uint64) types.Amount { return types.NewAmount(n) }

// fund gives owner n tokens.
func fund(t *testing.T, eng *treasury.Treasury, owner string, n uint64) {
	t.Helper()
	_, _, err := eng.AddTokenBalance(context.Background(), owner, amt(n))
	require.NoError(t, err)
}

func traceCount(t *testing.T, eng *treasury.Treasury, owner string) int64 {
	t.Helper()
	n, err := eng.CountOwnerTraces(context.Background(), owner)
	require.NoError(t, err)
	return n
}

func statuses(traces []*trace.Trace) []trace.Status {
	out := make([]trace.Status, len(traces))
	for i, tr := range traces {
		out[i] = tr.Status()
	}
	return out
}

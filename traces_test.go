package treasury_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/analytics"
	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/trace"
)

func TestAddTrace(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	tr := &trace.Trace{
		ID:    "import-1",
		Owner: "alice",
		Calls: []trace.Call{{
			Method: trace.OpAddCredit,
			Inputs: []trace.IOData{{DataType: trace.DataAmount, Value: "12"}},
			Status: trace.StatusCompleted,
			Amount: amt(12),
		}},
	}
	require.NoError(t, eng.AddTrace(ctx, tr))
	assert.NotZero(t, tr.Seq)
	assert.False(t, tr.Calls[0].ID.IsNil())
	assert.Equal(t, trace.Protocol, tr.Calls[0].Protocol)
	assert.False(t, tr.CreatedAt.IsZero())

	got, err := eng.GetTrace(ctx, tr.Seq)
	require.NoError(t, err)
	assert.Equal(t, "import-1", got.ID)
	assert.Equal(t, trace.StatusCompleted, got.Status())

	// The account is untouched.
	_, err = eng.GetAccount(ctx, "alice")
	assert.ErrorIs(t, err, treasury.ErrAccountNotFound)

	assert.ErrorIs(t, eng.AddTrace(ctx, tr.Clone()), treasury.ErrDuplicateTraceID)
}

func TestAddTraceValidation(t *testing.T) {
	eng, _ := newEngine(t)
	call := []trace.Call{{Method: trace.OpStack}}

	tests := []struct {
		name  string
		trace *trace.Trace
	}{
		{"nil", nil},
		{"no id", &trace.Trace{Owner: "alice", Calls: call}},
		{"no owner", &trace.Trace{ID: "x", Calls: call}},
		{"no calls", &trace.Trace{ID: "x", Owner: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.AddTrace(context.Background(), tt.trace)
			assert.ErrorIs(t, err, treasury.ErrInvalidInput)
		})
	}
}

func TestTraceListing(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	fund(t, eng, "alice", 100)
	fund(t, eng, "bob", 100)
	_, _, err := eng.Stack(ctx, "alice", amt(5))
	require.NoError(t, err)

	page, err := eng.ListOwnerTraces(ctx, "alice", trace.ListOpts{Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, trace.OpStack, page[0].Operation())

	all, err := eng.ListTraces(ctx, trace.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].Seq, all[1].Seq)
	assert.Less(t, all[1].Seq, all[2].Seq)

	_, err = eng.GetTraceByID(ctx, "missing")
	assert.True(t, treasury.IsNotFound(err))
}

func TestQueryTraces(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	fund(t, eng, "alice", 1000)
	for _, n := range []uint64{30, 10, 20} {
		_, _, err := eng.Stack(ctx, "alice", amt(n))
		require.NoError(t, err)
	}

	page, total, err := eng.QueryTraces(ctx, "alice", treasury.TraceQuery{
		Filter:     query.Filter{Operations: []trace.Operation{trace.OpStack}},
		SortBy:     query.SortAmount,
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "30", page[0].Amount().String())
	assert.Equal(t, "20", page[1].Amount().String())

	minAmount := amt(100)
	_, total, err = eng.QueryTraces(ctx, "alice", treasury.TraceQuery{
		Filter: query.Filter{MinAmount: &minAmount},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAnalyze(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	clock := newClock()
	eng, _ := newEngine(t,
		treasury.WithClock(clock.Now),
		treasury.WithGateway(newLedger("mallory")),
		treasury.WithAnalyticsWorkers(2),
	)
	fund(t, eng, "alice", 1000)
	for _, to := range []string{"bob", "carol", "bob", "mallory"} {
		clock.Advance(time.Hour)
		_, _, _ = eng.Transfer(ctx, "alice", to, amt(10))
	}

	rep, err := eng.Analyze(ctx, "alice",
		query.Filter{Operations: []trace.Operation{trace.OpTransfer}},
		analytics.Options{Period: analytics.PeriodDay, WindowSize: 2, TopRecipients: 1},
	)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Count)
	assert.Equal(t, 3, rep.Statistics.Completed)
	assert.Equal(t, 1, rep.Statistics.Failed)
	assert.Equal(t, "40", rep.Amounts.Total.String())
	require.Len(t, rep.Trend.Buckets, 1)
	assert.Equal(t, 4, rep.Trend.Buckets[0].Count)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	eng, _ := newEngine(t,
		treasury.WithPlugin(rec),
		treasury.WithReconcileSchedule("@every 1h"),
	)

	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Stop())
	assert.ErrorIs(t, eng.Stop(), treasury.ErrNotStarted)

	assert.Equal(t, 1, rec.inits)
	assert.Equal(t, 1, rec.shutdowns)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	eng, _ := newEngine(t, treasury.WithReconcileSchedule("not a schedule"))
	assert.Error(t, eng.Start(context.Background()))
}

// gatedStore parks PutAccount once armed, so a mutation can be held
// between appending its trace and settling it.
type gatedStore struct {
	store.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) PutAccount(ctx context.Context, a *account.Account) error {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.PutAccount(ctx, a)
}

func TestGetTraceWaitsForInFlightMutation(t *testing.T) {
	ctx := context.Background()
	s := &gatedStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := treasury.New(s, treasury.WithReconcileSchedule(""))
	fund(t, eng, "alice", 100)

	s.armed.Store(true)
	stackErr := make(chan error, 1)
	go func() {
		_, _, err := eng.Stack(ctx, "alice", amt(10), treasury.WithTraceID("s1"))
		stackErr <- err
	}()
	<-s.entered

	type result struct {
		tr  *trace.Trace
		err error
	}
	byID := make(chan result, 1)
	bySeq := make(chan result, 1)
	go func() {
		tr, err := eng.GetTraceByID(ctx, "s1")
		byID <- result{tr, err}
	}()
	go func() {
		tr, err := eng.GetTrace(ctx, 2)
		bySeq <- result{tr, err}
	}()

	select {
	case r := <-byID:
		t.Fatalf("GetTraceByID returned before the mutation settled: %+v", r)
	case r := <-bySeq:
		t.Fatalf("GetTrace returned before the mutation settled: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	close(s.release)
	require.NoError(t, <-stackErr)

	for _, ch := range []chan result{byID, bySeq} {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, "s1", r.tr.ID)
		assert.Equal(t, trace.StatusCompleted, r.tr.Status())
	}
}

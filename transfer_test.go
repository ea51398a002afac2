package treasury_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/gateway"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// ledger is a gateway that settles transfers in memory and fails for the
// recipients listed in reject.
type ledger struct {
	mu       sync.Mutex
	height   uint64
	credited map[string]uint64
	reject   map[string]bool
}

func newLedger(reject ...string) *ledger {
	l := &ledger{credited: make(map[string]uint64), reject: make(map[string]bool)}
	for _, r := range reject {
		l.reject[r] = true
	}
	return l
}

func (l *ledger) Transfer(_ context.Context, _, to string, amount types.Amount) (gateway.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reject[to] {
		return gateway.Receipt{}, errBoom
	}
	l.height++
	l.credited[to] += uint64(amount.Float64())
	return gateway.Receipt{BlockHeight: 100 + l.height}, nil
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	gw := newLedger()
	eng, _ := newEngine(t, treasury.WithGateway(gw))
	fund(t, eng, "alice", 100)

	a, tr, err := eng.Transfer(ctx, "alice", "bob", amt(30))
	require.NoError(t, err)
	assert.Equal(t, "70", a.TokenBalance.String())
	assert.Equal(t, uint64(30), gw.credited["bob"])

	assert.Equal(t, trace.OpTransfer, tr.Operation())
	assert.Equal(t, trace.StatusCompleted, tr.Status())
	assert.Equal(t, []string{"bob"}, tr.Recipients())
	height, ok := tr.Output(trace.DataBlockHeight)
	require.True(t, ok)
	assert.Equal(t, "101", height)

	stored, err := eng.GetTraceByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trace.StatusCompleted, stored.Status())
	assert.Equal(t, "bob", stored.Calls[0].Recipient)
}

func TestTransferGatewayFailureRestoresBalance(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	eng, _ := newEngine(t,
		treasury.WithGateway(newLedger("mallory")),
		treasury.WithPlugin(rec),
	)
	fund(t, eng, "alice", 100)

	a, tr, err := eng.Transfer(ctx, "alice", "mallory", amt(30))
	require.ErrorIs(t, err, treasury.ErrExternalCall)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "100", a.TokenBalance.String())

	require.NotNil(t, tr)
	assert.Equal(t, trace.StatusFailed, tr.Status())
	assert.Contains(t, tr.Metadata, "error: ")
	assert.True(t, tr.HasError())

	stored, err := eng.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "100", stored.TokenBalance.String())

	storedTrace, err := eng.GetTraceByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trace.StatusFailed, storedTrace.Status())
	assert.Equal(t, []string{tr.ID}, rec.failed)
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	fund(t, eng, "alice", 10)

	_, _, err := eng.Transfer(ctx, "alice", "", amt(1))
	assert.ErrorIs(t, err, treasury.ErrInvalidInput)

	_, _, err = eng.Transfer(ctx, "alice", "bob", amt(11))
	assert.ErrorIs(t, err, treasury.ErrInsufficientBalance)

	_, _, err = eng.Transfer(ctx, "alice", "bob", amt(0))
	assert.ErrorIs(t, err, treasury.ErrInvalidAmount)

	assert.Equal(t, int64(1), traceCount(t, eng, "alice"))
}

func legs(pairs ...any) []treasury.TransferLeg {
	out := make([]treasury.TransferLeg, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, treasury.TransferLeg{
			To:     pairs[i].(string),
			Amount: amt(uint64(pairs[i+1].(int))),
		})
	}
	return out
}

func TestBatchTransferPerLeg(t *testing.T) {
	ctx := context.Background()
	gw := newLedger()
	eng, fs := newEngine(t, treasury.WithGateway(gw))
	fund(t, eng, "alice", 100)

	res, err := eng.BatchTransfer(ctx, "alice", legs("bob", 10, "carol", 20, "dave", 30))
	require.NoError(t, err)
	assert.Equal(t, "40", res.Account.TokenBalance.String())
	require.Len(t, res.Traces, 3)

	for i, tr := range res.Traces {
		assert.Equal(t, trace.OpTransfer, tr.Operation(), i)
		assert.Equal(t, trace.StatusCompleted, tr.Status(), i)
		assert.Equal(t, res.BatchID, tr.ContextID, i)
		assert.Equal(t, []trace.Status{trace.StatusCompleted}, fs.statusUpdates(tr.ID), i)
	}
	assert.Equal(t, []string{"carol"}, res.Traces[1].Recipients())
	assert.Equal(t, uint64(30), gw.credited["dave"])
	assert.Equal(t, int64(4), traceCount(t, eng, "alice"))
}

func TestBatchTransferPerLegRollback(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	eng, fs := newEngine(t,
		treasury.WithGateway(newLedger("carol")),
		treasury.WithPlugin(rec),
	)
	fund(t, eng, "alice", 100)

	res, err := eng.BatchTransfer(ctx, "alice", legs("bob", 10, "carol", 20, "dave", 30))
	require.ErrorIs(t, err, treasury.ErrExternalCall)
	require.NotNil(t, res)
	assert.Equal(t, "100", res.Account.TokenBalance.String())

	require.Len(t, res.Traces, 2)
	assert.Equal(t, []trace.Status{trace.StatusFailed, trace.StatusFailed}, statuses(res.Traces))
	assert.Contains(t, res.Traces[0].Metadata, "batch rolled back")

	a, err := eng.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "100", a.TokenBalance.String())

	// add_token plus the two legs that were written; dave was never reached.
	all, err := eng.Traces(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []trace.Status{trace.StatusCompleted, trace.StatusFailed, trace.StatusFailed}, statuses(all))
	assert.Equal(t, []string{res.BatchID}, rec.rolledBack)

	// Each leg leaves Pending once, straight to Failed.
	for _, tr := range res.Traces {
		assert.Equal(t, []trace.Status{trace.StatusFailed}, fs.statusUpdates(tr.ID), tr.ID)
	}
}

func TestBatchTransferAggregate(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t,
		treasury.WithGateway(newLedger()),
		treasury.WithBatchTraceMode(treasury.BatchTraceAggregate),
	)
	fund(t, eng, "alice", 100)

	res, err := eng.BatchTransfer(ctx, "alice", legs("bob", 10, "carol", 20))
	require.NoError(t, err)
	assert.Equal(t, "70", res.Account.TokenBalance.String())

	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	assert.Equal(t, trace.OpBatchTransfer, tr.Operation())
	assert.Equal(t, "30", tr.Amount().String())
	assert.Equal(t, trace.StatusCompleted, tr.Status())
	assert.Equal(t, []string{"bob", "carol"}, tr.Recipients())
	assert.Equal(t, int64(2), traceCount(t, eng, "alice"))
}

func TestBatchTransferAggregateRollback(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t,
		treasury.WithGateway(newLedger("carol")),
		treasury.WithBatchTraceMode(treasury.BatchTraceAggregate),
	)
	fund(t, eng, "alice", 100)

	res, err := eng.BatchTransfer(ctx, "alice", legs("bob", 10, "carol", 20))
	require.ErrorIs(t, err, treasury.ErrExternalCall)
	assert.Equal(t, "100", res.Account.TokenBalance.String())
	require.Len(t, res.Traces, 1)
	assert.Equal(t, trace.StatusFailed, res.Traces[0].Status())

	stored, err := eng.GetTraceByID(ctx, res.Traces[0].ID)
	require.NoError(t, err)
	assert.Equal(t, trace.StatusFailed, stored.Status())
	assert.Contains(t, stored.Metadata, "batch rolled back")
}

func TestBatchTransferValidation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	fund(t, eng, "alice", 50)

	tests := []struct {
		name string
		legs []treasury.TransferLeg
		want error
	}{
		{"empty", nil, treasury.ErrEmptyBatch},
		{"zero amount", legs("bob", 0), treasury.ErrInvalidAmount},
		{"missing recipient", legs("", 5), treasury.ErrInvalidInput},
		{"total exceeds balance", legs("bob", 30, "carol", 30), treasury.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eng.BatchTransfer(ctx, "alice", tt.legs)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}

	assert.Equal(t, int64(1), traceCount(t, eng, "alice"))
	assert.ErrorIs(t, treasury.ErrEmptyBatch, treasury.ErrInvalidInput)
}

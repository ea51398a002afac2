// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AccountRoundTrip", testAccountRoundTrip},
		{"AccountNotFound", testAccountNotFound},
		{"AccountSoftDelete", testAccountSoftDelete},
		{"ListAccounts", testListAccounts},
		{"AppendAssignsSeq", testAppendAssignsSeq},
		{"DuplicateTraceID", testDuplicateTraceID},
		{"UpdateTrace", testUpdateTrace},
		{"RemoveTrace", testRemoveTrace},
		{"ListTraces", testListTraces},
		{"ListPending", testListPending},
		{"Ping", testPing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewAccount returns an account with every field populated.
func NewAccount(owner string) *account.Account {
	a := account.New(owner, epoch)
	a.Symbol = "TRS"
	a.TokenBalance = types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	a.StackBalance = types.NewAmount(300)
	a.CreditBalance = types.NewAmount(25)
	a.UnclaimedBalance = types.NewAmount(7)
	a.LastClaimAmount = types.NewAmount(3)
	a.LastClaimTime = uint64(epoch.Unix())
	a.LastClaimTimestamp = uint64(epoch.UnixNano())
	return a
}

// NewTrace returns a Pending trace of owner with a single call.
func NewTrace(owner, traceID string, at time.Time) *trace.Trace {
	return &trace.Trace{
		Entity:    types.NewEntity(at),
		ID:        traceID,
		ContextID: "ctx-" + traceID,
		Owner:     owner,
		Calls: []trace.Call{{
			ID:       id.NewCallID(),
			Protocol: trace.Protocol,
			Agent:    owner,
			Method:   trace.OpTransfer,
			Inputs: []trace.IOData{
				{DataType: trace.DataAmount, Value: "42"},
				{DataType: trace.DataRecipient, Value: "bob"},
			},
			Outputs:   []trace.IOData{},
			Status:    trace.StatusPending,
			Amount:    types.NewAmount(42),
			Recipient: "bob",
		}},
	}
}

func testAccountRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := NewAccount("alice")
	require.NoError(t, s.PutAccount(ctx, want))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.True(t, want.TokenBalance.Equal(got.TokenBalance))
	assert.Equal(t, "300", got.StackBalance.String())
	assert.Equal(t, "25", got.CreditBalance.String())
	assert.Equal(t, "7", got.UnclaimedBalance.String())
	assert.Equal(t, "3", got.LastClaimAmount.String())
	assert.Equal(t, want.LastClaimTime, got.LastClaimTime)
	assert.Equal(t, want.LastClaimTimestamp, got.LastClaimTimestamp)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.DeletedAt)

	// Upsert replaces.
	want.StackBalance = types.NewAmount(1)
	require.NoError(t, s.PutAccount(ctx, want))
	got, err = s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", got.StackBalance.String())

	n, err := s.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testAccountNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetAccount(ctx, "nobody")
	assert.ErrorIs(t, err, treasury.ErrAccountNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "nobody", epoch), treasury.ErrAccountNotFound)
}

func testAccountSoftDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutAccount(ctx, NewAccount("alice")))
	require.NoError(t, s.DeleteAccount(ctx, "alice", epoch.Add(time.Hour)))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(epoch.Add(time.Hour)))
	assert.Equal(t, "300", got.StackBalance.String())

	n, err := s.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.ListAccounts(ctx, account.ListOpts{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testListAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, owner := range []string{"carol", "alice", "dave", "bob"} {
		require.NoError(t, s.PutAccount(ctx, NewAccount(owner)))
	}
	require.NoError(t, s.DeleteAccount(ctx, "dave", epoch))

	live, err := s.ListAccounts(ctx, account.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, owners(live))

	page, err := s.ListAccounts(ctx, account.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, owners(page))

	rest, err := s.ListAccounts(ctx, account.ListOpts{Offset: 1, Limit: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, owners(rest))

	past, err := s.ListAccounts(ctx, account.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testAppendAssignsSeq(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewTrace("alice", "t-1", epoch)
	second := NewTrace("alice", "t-2", epoch)
	require.NoError(t, s.AppendTrace(ctx, first))
	require.NoError(t, s.AppendTrace(ctx, second))
	assert.NotZero(t, first.Seq)
	assert.Greater(t, second.Seq, first.Seq)

	got, err := s.GetTrace(ctx, second.Seq)
	require.NoError(t, err)
	assert.Equal(t, "t-2", got.ID)
	assert.Equal(t, "ctx-t-2", got.ContextID)
	assert.Equal(t, "alice", got.Owner)
	require.Len(t, got.Calls, 1)
	call := got.Calls[0]
	assert.Equal(t, first.Calls[0].ID.Prefix(), call.ID.Prefix())
	assert.Equal(t, trace.OpTransfer, call.Method)
	assert.Equal(t, trace.StatusPending, call.Status)
	assert.Equal(t, "42", call.Amount.String())
	assert.Equal(t, "bob", call.Recipient)
	assert.Equal(t, second.Calls[0].Inputs, call.Inputs)
	assert.True(t, epoch.Equal(got.CreatedAt))

	byID, err := s.GetTraceByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, first.Seq, byID.Seq)

	_, err = s.GetTrace(ctx, second.Seq+100)
	assert.ErrorIs(t, err, treasury.ErrTraceNotFound)
	_, err = s.GetTraceByID(ctx, "missing")
	assert.ErrorIs(t, err, treasury.ErrTraceNotFound)
}

func testDuplicateTraceID(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AppendTrace(ctx, NewTrace("alice", "dup", epoch)))
	err := s.AppendTrace(ctx, NewTrace("bob", "dup", epoch))
	assert.ErrorIs(t, err, treasury.ErrDuplicateTraceID)

	n, err := s.CountTraces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testUpdateTrace(t *testing.T, s store.Store) {
	ctx := context.Background()
	tr := NewTrace("alice", "t-1", epoch)
	require.NoError(t, s.AppendTrace(ctx, tr))

	tr.SetStatus(trace.StatusFailed)
	tr.Metadata = "error: gateway down"
	tr.Calls[0].Outputs = append(tr.Calls[0].Outputs, trace.IOData{DataType: trace.DataBlockHeight, Value: "9"})
	tr.Touch(epoch.Add(time.Minute))
	require.NoError(t, s.UpdateTrace(ctx, tr))

	got, err := s.GetTraceByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, tr.Seq, got.Seq)
	assert.Equal(t, trace.StatusFailed, got.Status())
	assert.Equal(t, "error: gateway down", got.Metadata)
	height, ok := got.Output(trace.DataBlockHeight)
	assert.True(t, ok)
	assert.Equal(t, "9", height)
	assert.True(t, epoch.Add(time.Minute).Equal(got.UpdatedAt))

	missing := NewTrace("alice", "nope", epoch)
	assert.ErrorIs(t, s.UpdateTrace(ctx, missing), treasury.ErrTraceNotFound)
}

func testRemoveTrace(t *testing.T, s store.Store) {
	ctx := context.Background()
	tr := NewTrace("alice", "t-1", epoch)
	require.NoError(t, s.AppendTrace(ctx, tr))
	require.NoError(t, s.RemoveTrace(ctx, "t-1"))

	_, err := s.GetTraceByID(ctx, "t-1")
	assert.ErrorIs(t, err, treasury.ErrTraceNotFound)
	n, err := s.CountOwnerTraces(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)

	// The id is free again.
	require.NoError(t, s.AppendTrace(ctx, NewTrace("alice", "t-1", epoch)))
	assert.ErrorIs(t, s.RemoveTrace(ctx, "missing"), treasury.ErrTraceNotFound)
}

func testListTraces(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := range 5 {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		require.NoError(t, s.AppendTrace(ctx, NewTrace(owner, fmt.Sprintf("t-%d", i), epoch.Add(time.Duration(i)*time.Second))))
	}

	alice, err := s.ListOwnerTraces(ctx, "alice", trace.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-0", "t-2", "t-4"}, traceIDs(alice))

	page, err := s.ListOwnerTraces(ctx, "alice", trace.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2"}, traceIDs(page))

	rest, err := s.ListOwnerTraces(ctx, "alice", trace.ListOpts{Offset: 1, Limit: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2", "t-4"}, traceIDs(rest))

	all, err := s.ListTraces(ctx, trace.ListOpts{Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-0", "t-1", "t-2", "t-3"}, traceIDs(all))

	none, err := s.ListOwnerTraces(ctx, "carol", trace.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := s.CountTraces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	n, err = s.CountOwnerTraces(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func testListPending(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := NewTrace("alice", "old", epoch)
	older := NewTrace("bob", "older", epoch.Add(-time.Hour))
	fresh := NewTrace("alice", "fresh", epoch.Add(time.Hour))
	done := NewTrace("alice", "done", epoch.Add(-2*time.Hour))
	for _, tr := range []*trace.Trace{old, older, fresh, done} {
		require.NoError(t, s.AppendTrace(ctx, tr))
	}
	done.SetStatus(trace.StatusCompleted)
	require.NoError(t, s.UpdateTrace(ctx, done))

	pending, err := s.ListPending(ctx, epoch.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"older", "old"}, traceIDs(pending))

	limited, err := s.ListPending(ctx, epoch.Add(time.Minute), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"older"}, traceIDs(limited))
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}

func owners(accounts []*account.Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.OwnerID
	}
	return out
}

func traceIDs(traces []*trace.Trace) []string {
	out := make([]string, len(traces))
	for i, t := range traces {
		out[i] = t.ID
	}
	return out
}

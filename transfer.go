package treasury

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Transfer debits amount from the owner's token balance and settles it with
// the recipient through the gateway.
//
// The trace is appended Pending and the debited account persisted before the
// gateway is called. On success the trace becomes Completed with the block
// height as output. If the gateway fails the balance is restored, the trace
// becomes Failed with the error in its metadata, and the returned error
// wraps ErrExternalCall.
func (t *Treasury) Transfer(ctx context.Context, owner, to string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	if owner == "" {
		return nil, nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}
	if to == "" {
		return nil, nil, ValidationError{Field: "to", Message: "must not be empty"}
	}
	mo := buildMutationOptions(opts)

	unlock := t.locks.lock(owner)
	defer unlock()

	cur, _, err := t.loadForUpdate(ctx, owner)
	if err != nil {
		t.reject(ctx, owner, trace.OpTransfer, amount, err)
		return nil, nil, err
	}

	tr := t.newTrace(owner, trace.OpTransfer, amount, to, mo)
	next, err := t.settle(ctx, cur, tr, to, amount)
	switch {
	case err == nil:
		t.finish(ctx, tr, trace.StatusCompleted, "")
		t.plugins.EmitMutationApplied(ctx, next, tr)
		return next, tr, nil

	case errors.Is(err, ErrExternalCall):
		restored := t.restore(ctx, cur)
		t.finish(ctx, tr, trace.StatusFailed, failureMetadata(err))
		t.logger.Warn("transfer failed",
			"owner", owner,
			"to", to,
			"trace_id", tr.ID,
			"error", err,
		)
		t.plugins.EmitTransferFailed(ctx, tr, err)
		return restored, tr, err

	default:
		t.reject(ctx, owner, trace.OpTransfer, amount, err)
		return nil, nil, err
	}
}

// settle validates and debits one transfer leg, persists it with its Pending
// trace and calls the gateway. The owner's write lock must be held.
//
// A non-nil account is returned only once the debit is persisted. The trace
// is left Pending either way; the caller moves it to its terminal status
// exactly once. A gateway failure returns the debited account and an
// ErrExternalCall error.
func (t *Treasury) settle(ctx context.Context, cur *account.Account, tr *trace.Trace, to string, amount types.Amount) (*account.Account, error) {
	next, err := apply(cur, trace.OpTransfer, amount)
	if err != nil {
		return nil, err
	}
	next.Touch(t.now())

	if err := t.begin(ctx, tr, next); err != nil {
		return nil, err
	}

	receipt, err := t.gateway.Transfer(ctx, cur.OwnerID, to, amount)
	if err != nil {
		return next, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}

	tr.Calls[0].Outputs = append(tr.Calls[0].Outputs, trace.IOData{
		DataType: trace.DataBlockHeight,
		Value:    strconv.FormatUint(receipt.BlockHeight, 10),
	})
	return next, nil
}

// restore writes snapshot back as the current account. A failed write is
// logged; the returned account is what the store most likely holds.
func (t *Treasury) restore(ctx context.Context, snapshot *account.Account) *account.Account {
	restored := snapshot.Clone()
	restored.Touch(t.now())
	if err := t.store.PutAccount(ctx, restored); err != nil {
		t.logger.Error("failed to restore account",
			"owner", snapshot.OwnerID,
			"error", err,
		)
	}
	return restored
}

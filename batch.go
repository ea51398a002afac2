package treasury

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// TransferLeg is one recipient of a batch transfer.
type TransferLeg struct {
	To     string       `json:"to"`
	Amount types.Amount `json:"amount"`
}

// BatchResult is the outcome of a batch transfer. On rollback it still
// carries the restored account and the traces that were marked Failed.
type BatchResult struct {
	BatchID string           `json:"batch_id"`
	Account *account.Account `json:"account"`
	Traces  []*trace.Trace   `json:"traces"`
}

// BatchTransfer applies legs in order as one all-or-nothing unit.
//
// The batch is rejected up front when it is empty, a leg has no recipient or
// a zero amount, or the total exceeds the token balance. If any leg fails
// after that, the pre-batch account snapshot is restored and every trace the
// batch wrote is marked Failed.
func (t *Treasury) BatchTransfer(ctx context.Context, owner string, legs []TransferLeg, opts ...MutationOption) (*BatchResult, error) {
	if owner == "" {
		return nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}
	total, err := validateLegs(legs)
	if err != nil {
		t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
		return nil, err
	}

	batchID := id.NewBatchID().String()
	mo := MutationOptions{ContextID: batchID}
	for _, opt := range opts {
		opt(&mo)
	}
	if mo.ContextID == "" {
		mo.ContextID = uuid.NewString()
	}

	unlock := t.locks.lock(owner)
	defer unlock()

	cur, _, err := t.loadForUpdate(ctx, owner)
	if err != nil {
		t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
		return nil, err
	}
	if cur.TokenBalance.LessThan(total) {
		err := fmt.Errorf("%w: token balance %s is less than batch total %s", ErrInsufficientBalance, cur.TokenBalance, total)
		t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
		return nil, err
	}

	if t.batchMode == BatchTraceAggregate {
		return t.batchAggregate(ctx, cur, legs, total, batchID, mo)
	}
	return t.batchPerLeg(ctx, cur, legs, total, batchID, mo)
}

// validateLegs checks every leg and returns the batch total.
func validateLegs(legs []TransferLeg) (types.Amount, error) {
	if len(legs) == 0 {
		return types.ZeroAmount, ErrEmptyBatch
	}
	amounts := make([]types.Amount, len(legs))
	for i, leg := range legs {
		if leg.To == "" {
			return types.ZeroAmount, ValidationError{Field: fmt.Sprintf("legs[%d].to", i), Message: "must not be empty"}
		}
		if leg.Amount.IsZero() {
			return types.ZeroAmount, fmt.Errorf("%w: legs[%d] must be greater than zero", ErrInvalidAmount, i)
		}
		amounts[i] = leg.Amount
	}
	total, overflow := types.SumAmounts(amounts...)
	if overflow {
		return types.ZeroAmount, fmt.Errorf("%w: batch total", ErrAmountOverflow)
	}
	return total, nil
}

// batchPerLeg settles each leg as its own transfer trace.
func (t *Treasury) batchPerLeg(ctx context.Context, snapshot *account.Account, legs []TransferLeg, total types.Amount, batchID string, mo MutationOptions) (*BatchResult, error) {
	owner := snapshot.OwnerID
	cur := snapshot
	settled := make([]*trace.Trace, 0, len(legs))

	for i, leg := range legs {
		legOpts := mo
		if mo.TraceID != "" {
			legOpts.TraceID = fmt.Sprintf("%s-%d", mo.TraceID, i)
		}
		tr := t.newTrace(owner, trace.OpTransfer, leg.Amount, leg.To, legOpts)
		tr.Calls[0].Inputs = append(tr.Calls[0].Inputs, trace.IOData{DataType: trace.DataBatchID, Value: batchID})

		next, err := t.settle(ctx, cur, tr, leg.To, leg.Amount)
		if err == nil {
			cur = next
			settled = append(settled, tr)
			continue
		}

		var failed []*trace.Trace
		if next != nil {
			t.finish(ctx, tr, trace.StatusFailed, failureMetadata(err))
			failed = append(failed, tr)
		}
		if len(settled) == 0 && len(failed) == 0 {
			// Nothing was written for this batch.
			t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
			return nil, err
		}
		return t.rollback(ctx, snapshot, settled, failed, batchID, fmt.Errorf("leg %d: %w", i, err))
	}

	// Legs stay Pending until the whole batch settled.
	for _, tr := range settled {
		t.finish(ctx, tr, trace.StatusCompleted, "")
	}
	for _, tr := range settled {
		t.plugins.EmitMutationApplied(ctx, cur, tr)
	}
	return &BatchResult{BatchID: batchID, Account: cur, Traces: settled}, nil
}

// batchAggregate records the batch as a single trace debiting the total.
func (t *Treasury) batchAggregate(ctx context.Context, snapshot *account.Account, legs []TransferLeg, total types.Amount, batchID string, mo MutationOptions) (*BatchResult, error) {
	owner := snapshot.OwnerID

	tr := t.newTrace(owner, trace.OpBatchTransfer, total, "", mo)
	call := &tr.Calls[0]
	for _, leg := range legs {
		call.Inputs = append(call.Inputs,
			trace.IOData{DataType: trace.DataRecipient, Value: leg.To},
			trace.IOData{DataType: trace.DataAmount, Value: leg.Amount.String()},
		)
	}
	call.Inputs = append(call.Inputs, trace.IOData{DataType: trace.DataBatchID, Value: batchID})

	next, err := apply(snapshot, trace.OpTransfer, total)
	if err != nil {
		t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
		return nil, err
	}
	next.Touch(t.now())

	if err := t.begin(ctx, tr, next); err != nil {
		if errors.Is(err, ErrDuplicateTraceID) {
			t.reject(ctx, owner, trace.OpBatchTransfer, total, err)
		}
		return nil, err
	}

	for i, leg := range legs {
		receipt, err := t.gateway.Transfer(ctx, owner, leg.To, leg.Amount)
		if err != nil {
			cause := fmt.Errorf("leg %d: %w: %w", i, ErrExternalCall, err)
			return t.rollback(ctx, snapshot, []*trace.Trace{tr}, nil, batchID, cause)
		}
		call.Outputs = append(call.Outputs, trace.IOData{
			DataType: trace.DataBlockHeight,
			Value:    strconv.FormatUint(receipt.BlockHeight, 10),
		})
	}
	t.finish(ctx, tr, trace.StatusCompleted, "")

	t.plugins.EmitMutationApplied(ctx, next, tr)
	return &BatchResult{BatchID: batchID, Account: next, Traces: []*trace.Trace{tr}}, nil
}

// rollback restores the pre-batch snapshot and fails the batch's traces.
// settled traces are still Pending and get the rollback metadata; failed
// ones were already marked.
func (t *Treasury) rollback(ctx context.Context, snapshot *account.Account, settled, failed []*trace.Trace, batchID string, cause error) (*BatchResult, error) {
	restored := t.restore(ctx, snapshot)

	meta := "error: batch rolled back: " + cause.Error()
	for _, tr := range settled {
		t.finish(ctx, tr, trace.StatusFailed, meta)
	}
	traces := append(settled, failed...) //nolint:gocritic // settled is not used after this

	t.logger.Warn("batch transfer rolled back",
		"owner", snapshot.OwnerID,
		"batch_id", batchID,
		"traces", len(traces),
		"error", cause,
	)
	t.plugins.EmitBatchRolledBack(ctx, snapshot.OwnerID, batchID, traces, cause)

	return &BatchResult{BatchID: batchID, Account: restored, Traces: traces}, cause
}

package treasury

import (
	"context"
	"fmt"

	"github.com/xraph/treasury/analytics"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// TraceQuery selects, orders and pages an owner's traces.
type TraceQuery struct {
	Filter     query.Filter
	SortBy     query.SortField
	Descending bool
	Offset     int
	Limit      int
}

// AddTrace appends an externally produced trace to the audit trail without
// touching any account. Missing call ids and timestamps are filled in.
func (t *Treasury) AddTrace(ctx context.Context, tr *trace.Trace) error {
	switch {
	case tr == nil:
		return ValidationError{Field: "trace", Message: "must not be nil"}
	case tr.ID == "":
		return ValidationError{Field: "trace_id", Message: "must not be empty"}
	case tr.Owner == "":
		return ValidationError{Field: "owner", Message: "must not be empty"}
	case len(tr.Calls) == 0:
		return ValidationError{Field: "calls", Message: "must not be empty"}
	}

	if tr.CreatedAt.IsZero() {
		tr.Entity = types.NewEntity(t.now())
	}
	for i := range tr.Calls {
		c := &tr.Calls[i]
		if c.ID.IsNil() {
			c.ID = id.NewCallID()
		}
		if c.Protocol == "" {
			c.Protocol = trace.Protocol
		}
		if c.Status == "" {
			c.Status = trace.StatusPending
		}
	}

	unlock := t.locks.lock(tr.Owner)
	defer unlock()

	if err := t.store.AppendTrace(ctx, tr); err != nil {
		if IsRejected(err) {
			return err
		}
		return fmt.Errorf("%w: append trace: %w", ErrPersistence, err)
	}
	return nil
}

// GetTrace returns the trace with sequence number seq. The lookup is
// repeated under the owner's read lock, so a trace whose operation is still
// in flight is only returned once it settled (or not at all if it was
// removed).
func (t *Treasury) GetTrace(ctx context.Context, seq uint64) (*trace.Trace, error) {
	tr, err := t.store.GetTrace(ctx, seq)
	if err != nil {
		return nil, err
	}
	unlock := t.locks.rlock(tr.Owner)
	defer unlock()

	return t.store.GetTrace(ctx, seq)
}

// GetTraceByID returns the trace with the given trace id. Like GetTrace it
// waits for an in-flight operation of the trace's owner.
func (t *Treasury) GetTraceByID(ctx context.Context, traceID string) (*trace.Trace, error) {
	tr, err := t.store.GetTraceByID(ctx, traceID)
	if err != nil {
		return nil, err
	}
	unlock := t.locks.rlock(tr.Owner)
	defer unlock()

	return t.store.GetTraceByID(ctx, traceID)
}

// ListOwnerTraces pages through the owner's traces in append order.
func (t *Treasury) ListOwnerTraces(ctx context.Context, owner string, opts trace.ListOpts) ([]*trace.Trace, error) {
	unlock := t.locks.rlock(owner)
	defer unlock()

	return t.store.ListOwnerTraces(ctx, owner, opts)
}

// ListTraces pages through every trace in append order. It spans owners
// and takes no owner lock, so it may include the Pending trace of an
// operation still in flight. Use ListOwnerTraces for a settled view.
func (t *Treasury) ListTraces(ctx context.Context, opts trace.ListOpts) ([]*trace.Trace, error) {
	return t.store.ListTraces(ctx, opts)
}

// CountTraces returns the size of the audit trail. Like ListTraces it
// counts traces of operations still in flight.
func (t *Treasury) CountTraces(ctx context.Context) (int64, error) {
	return t.store.CountTraces(ctx)
}

// CountOwnerTraces returns the number of traces recorded for owner.
func (t *Treasury) CountOwnerTraces(ctx context.Context, owner string) (int64, error) {
	unlock := t.locks.rlock(owner)
	defer unlock()

	return t.store.CountOwnerTraces(ctx, owner)
}

// Traces returns the owner's full history in append order. The read lock
// makes the snapshot consistent with the owner's account.
func (t *Treasury) Traces(ctx context.Context, owner string) ([]*trace.Trace, error) {
	unlock := t.locks.rlock(owner)
	defer unlock()

	return t.store.ListOwnerTraces(ctx, owner, trace.ListOpts{})
}

// QueryTraces filters, sorts and pages the owner's history. It also returns
// the number of matches before paging.
func (t *Treasury) QueryTraces(ctx context.Context, owner string, q TraceQuery) ([]*trace.Trace, int, error) {
	all, err := t.Traces(ctx, owner)
	if err != nil {
		return nil, 0, err
	}

	matched := query.Apply(all, q.Filter)
	sorted := query.Sort(matched, q.SortBy, q.Descending)
	return query.Paginate(sorted, q.Offset, q.Limit), len(matched), nil
}

// Analyze runs every analysis over the owner's traces that match f.
func (t *Treasury) Analyze(ctx context.Context, owner string, f query.Filter, opts analytics.Options) (*analytics.Report, error) {
	all, err := t.Traces(ctx, owner)
	if err != nil {
		return nil, err
	}

	runner := analytics.NewRunner(t.analyticsWorkers)
	defer runner.Stop()

	return runner.Run(ctx, query.Apply(all, f), opts)
}

package trace

import (
	"context"
	"time"
)

// Store is the append-only audit trail.
//
// Traces are ordered by Seq, a global sequence assigned on append. The only
// mutation allowed after append is UpdateTrace, used once to move a trace out
// of Pending; RemoveTrace exists solely to compensate a failed write.
type Store interface {
	// AppendTrace assigns t.Seq and stores t. It returns
	// treasury.ErrDuplicateTraceID if t.ID is taken.
	AppendTrace(ctx context.Context, t *Trace) error
	// UpdateTrace replaces the stored trace with the same ID.
	UpdateTrace(ctx context.Context, t *Trace) error
	RemoveTrace(ctx context.Context, traceID string) error

	GetTrace(ctx context.Context, seq uint64) (*Trace, error)
	GetTraceByID(ctx context.Context, traceID string) (*Trace, error)
	ListOwnerTraces(ctx context.Context, owner string, opts ListOpts) ([]*Trace, error)
	ListTraces(ctx context.Context, opts ListOpts) ([]*Trace, error)
	CountTraces(ctx context.Context) (int64, error)
	CountOwnerTraces(ctx context.Context, owner string) (int64, error)

	// ListPending returns traces still Pending whose UpdatedAt is before
	// olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*Trace, error)
}

// ListOpts paginates trace listings. A zero Limit means no limit.
type ListOpts struct {
	Offset int
	Limit  int
}

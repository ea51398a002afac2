// Package memory is an in-process store.Store backed by maps. It is safe for
// concurrent use and intended for tests and single-process deployments.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

var _ store.Store = (*Store)(nil)

// Store keeps every record in memory. Records are cloned on the way in and
// out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	// Account storage
	accounts map[string]*account.Account

	// Trace storage; order holds live seqs ascending
	traces  map[uint64]*trace.Trace
	order   []uint64
	byID    map[string]uint64
	byOwner map[string][]uint64
	seq     uint64
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
		traces:   make(map[uint64]*trace.Trace),
		byID:     make(map[string]uint64),
		byOwner:  make(map[string][]uint64),
	}
}

// ──────────────────────────────────────────────────
// Account Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetAccount(_ context.Context, owner string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[owner]; ok {
		return a.Clone(), nil
	}
	return nil, treasury.ErrAccountNotFound
}

func (s *Store) PutAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[a.OwnerID] = a.Clone()
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, owner string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[owner]
	if !ok {
		return treasury.ErrAccountNotFound
	}
	if a.DeletedAt == nil {
		deleted := types.Truncate(at)
		a.DeletedAt = &deleted
		a.UpdatedAt = deleted
	}
	return nil
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make([]string, 0, len(s.accounts))
	for owner, a := range s.accounts {
		if opts.IncludeDeleted || !a.IsDeleted() {
			owners = append(owners, owner)
		}
	}
	sort.Strings(owners)

	start, end := window(len(owners), opts.Offset, opts.Limit)
	result := make([]*account.Account, 0, end-start)
	for _, owner := range owners[start:end] {
		result = append(result, s.accounts[owner].Clone())
	}
	return result, nil
}

func (s *Store) CountAccounts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.accounts {
		if !a.IsDeleted() {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Trace Store implementation
// ──────────────────────────────────────────────────

func (s *Store) AppendTrace(_ context.Context, t *trace.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return treasury.ErrDuplicateTraceID
	}

	s.seq++
	t.Seq = s.seq
	s.traces[t.Seq] = t.Clone()
	s.order = append(s.order, t.Seq)
	s.byID[t.ID] = t.Seq
	s.byOwner[t.Owner] = append(s.byOwner[t.Owner], t.Seq)
	return nil
}

func (s *Store) UpdateTrace(_ context.Context, t *trace.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.byID[t.ID]
	if !ok {
		return treasury.ErrTraceNotFound
	}
	updated := t.Clone()
	updated.Seq = seq
	s.traces[seq] = updated
	return nil
}

func (s *Store) RemoveTrace(_ context.Context, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.byID[traceID]
	if !ok {
		return treasury.ErrTraceNotFound
	}
	owner := s.traces[seq].Owner

	delete(s.traces, seq)
	delete(s.byID, traceID)
	s.order = removeSeq(s.order, seq)
	s.byOwner[owner] = removeSeq(s.byOwner[owner], seq)
	if len(s.byOwner[owner]) == 0 {
		delete(s.byOwner, owner)
	}
	return nil
}

func (s *Store) GetTrace(_ context.Context, seq uint64) (*trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.traces[seq]; ok {
		return t.Clone(), nil
	}
	return nil, treasury.ErrTraceNotFound
}

func (s *Store) GetTraceByID(_ context.Context, traceID string) (*trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seq, ok := s.byID[traceID]; ok {
		return s.traces[seq].Clone(), nil
	}
	return nil, treasury.ErrTraceNotFound
}

func (s *Store) ListOwnerTraces(_ context.Context, owner string, opts trace.ListOpts) ([]*trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.byOwner[owner], opts), nil
}

func (s *Store) ListTraces(_ context.Context, opts trace.ListOpts) ([]*trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.order, opts), nil
}

func (s *Store) CountTraces(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.order)), nil
}

func (s *Store) CountOwnerTraces(_ context.Context, owner string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.byOwner[owner])), nil
}

func (s *Store) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*trace.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*trace.Trace, 0)
	for _, seq := range s.order {
		t := s.traces[seq]
		if t.Status() != trace.StatusPending || !t.UpdatedAt.Before(olderThan) {
			continue
		}
		result = append(result, t.Clone())
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

func (s *Store) collect(seqs []uint64, opts trace.ListOpts) []*trace.Trace {
	start, end := window(len(seqs), opts.Offset, opts.Limit)
	result := make([]*trace.Trace, 0, end-start)
	for _, seq := range seqs[start:end] {
		result = append(result, s.traces[seq].Clone())
	}
	return result
}

// window clamps offset and limit to [0, n]. A zero limit means no limit.
func window(n, offset, limit int) (int, int) {
	start := max(offset, 0)
	if start > n {
		start = n
	}
	end := n
	if limit > 0 && limit < n-start {
		end = start + limit
	}
	return start, end
}

func removeSeq(seqs []uint64, seq uint64) []uint64 {
	if i, found := slices.BinarySearch(seqs, seq); found {
		return slices.Delete(seqs, i, i+1)
	}
	return seqs
}

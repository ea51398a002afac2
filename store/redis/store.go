// Package redis implements store.Store on Redis.
//
// Records are JSON values under their own keys. Ordering lives in sorted
// sets: accounts are ranked by owner, traces by seq, and pending traces by
// the unix second of their last update.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	treasurystore "github.com/xraph/treasury/store"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "treasury"

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using go-redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an existing client. An empty prefix means DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Open connects to the server described by opts and verifies it answers.
func Open(ctx context.Context, opts *redis.Options, prefix string) (*Store, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("treasury/redis: connect to %s: %w", opts.Addr, err)
	}
	return New(client, prefix), nil
}

// Client returns the underlying go-redis client.
func (s *Store) Client() *redis.Client { return s.client }

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Keys ====================

func (s *Store) accountKey(owner string) string { return s.prefix + ":account:" + owner }
func (s *Store) accountsKey() string            { return s.prefix + ":accounts" }
func (s *Store) activeKey() string              { return s.prefix + ":accounts:active" }
func (s *Store) seqKey() string                 { return s.prefix + ":trace:seq" }
func (s *Store) traceIDsKey() string            { return s.prefix + ":trace:ids" }
func (s *Store) tracesKey() string              { return s.prefix + ":traces" }
func (s *Store) pendingKey() string             { return s.prefix + ":traces:pending" }

func (s *Store) traceKey(seq uint64) string {
	return s.prefix + ":trace:" + strconv.FormatUint(seq, 10)
}

func (s *Store) ownerTracesKey(owner string) string {
	return s.prefix + ":owner:" + owner + ":traces"
}

// seqMember pads seq so members with equal scores sort numerically.
func seqMember(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, owner string) (*account.Account, error) {
	raw, err := s.client.Get(ctx, s.accountKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, treasury.ErrAccountNotFound
		}
		return nil, fmt.Errorf("treasury/redis: get account: %w", err)
	}
	return decodeAccount(raw)
}

func (s *Store) PutAccount(ctx context.Context, a *account.Account) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("treasury/redis: encode account %s: %w", a.OwnerID, err)
	}

	member := redis.Z{Score: 0, Member: a.OwnerID}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accountKey(a.OwnerID), raw, 0)
		pipe.ZAdd(ctx, s.accountsKey(), member)
		if a.DeletedAt == nil {
			pipe.ZAdd(ctx, s.activeKey(), member)
		} else {
			pipe.ZRem(ctx, s.activeKey(), a.OwnerID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("treasury/redis: put account: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, owner string, at time.Time) error {
	a, err := s.GetAccount(ctx, owner)
	if err != nil {
		return err
	}
	if a.DeletedAt != nil {
		return nil
	}
	deleted := types.Truncate(at)
	a.DeletedAt = &deleted
	a.UpdatedAt = deleted
	return s.PutAccount(ctx, a)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	key := s.activeKey()
	if opts.IncludeDeleted {
		key = s.accountsKey()
	}

	start, stop := rangeBounds(opts.Offset, opts.Limit)
	owners, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: list accounts: %w", err)
	}

	keys := make([]string, len(owners))
	for i, owner := range owners {
		keys[i] = s.accountKey(owner)
	}
	values, err := s.mget(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: list accounts: %w", err)
	}

	result := make([]*account.Account, 0, len(values))
	for _, raw := range values {
		a, err := decodeAccount(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.activeKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("treasury/redis: count accounts: %w", err)
	}
	return n, nil
}

// ==================== Trace Store ====================

// AppendTrace reserves the trace id with HSETNX before writing the record.
// A rejected duplicate leaves a gap in the sequence.
func (s *Store) AppendTrace(ctx context.Context, t *trace.Trace) error {
	seq, err := s.client.Incr(ctx, s.seqKey()).Uint64()
	if err != nil {
		return fmt.Errorf("treasury/redis: next trace seq: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, s.traceIDsKey(), t.ID, seq).Result()
	if err != nil {
		return fmt.Errorf("treasury/redis: reserve trace id: %w", err)
	}
	if !ok {
		return treasury.ErrDuplicateTraceID
	}

	stored := *t
	stored.Seq = seq
	if err := s.writeTrace(ctx, &stored, true); err != nil {
		_ = s.client.HDel(ctx, s.traceIDsKey(), t.ID).Err()
		return err
	}
	t.Seq = seq
	return nil
}

func (s *Store) UpdateTrace(ctx context.Context, t *trace.Trace) error {
	current, err := s.GetTraceByID(ctx, t.ID)
	if err != nil {
		return err
	}

	stored := *t
	stored.Seq = current.Seq
	stored.Owner = current.Owner
	return s.writeTrace(ctx, &stored, false)
}

func (s *Store) writeTrace(ctx context.Context, t *trace.Trace, index bool) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("treasury/redis: encode trace %s: %w", t.ID, err)
	}

	member := seqMember(t.Seq)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.traceKey(t.Seq), raw, 0)
		if index {
			z := redis.Z{Score: float64(t.Seq), Member: member}
			pipe.ZAdd(ctx, s.tracesKey(), z)
			pipe.ZAdd(ctx, s.ownerTracesKey(t.Owner), z)
		}
		if t.Status() == trace.StatusPending {
			pipe.ZAdd(ctx, s.pendingKey(), redis.Z{Score: float64(t.UpdatedAt.Unix()), Member: member})
		} else {
			pipe.ZRem(ctx, s.pendingKey(), member)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("treasury/redis: write trace: %w", err)
	}
	return nil
}

func (s *Store) RemoveTrace(ctx context.Context, traceID string) error {
	t, err := s.GetTraceByID(ctx, traceID)
	if err != nil {
		return err
	}

	member := seqMember(t.Seq)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.traceKey(t.Seq))
		pipe.HDel(ctx, s.traceIDsKey(), traceID)
		pipe.ZRem(ctx, s.tracesKey(), member)
		pipe.ZRem(ctx, s.ownerTracesKey(t.Owner), member)
		pipe.ZRem(ctx, s.pendingKey(), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("treasury/redis: remove trace: %w", err)
	}
	return nil
}

func (s *Store) GetTrace(ctx context.Context, seq uint64) (*trace.Trace, error) {
	raw, err := s.client.Get(ctx, s.traceKey(seq)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, treasury.ErrTraceNotFound
		}
		return nil, fmt.Errorf("treasury/redis: get trace: %w", err)
	}
	return decodeTrace(raw)
}

func (s *Store) GetTraceByID(ctx context.Context, traceID string) (*trace.Trace, error) {
	seq, err := s.client.HGet(ctx, s.traceIDsKey(), traceID).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, treasury.ErrTraceNotFound
		}
		return nil, fmt.Errorf("treasury/redis: get trace by id: %w", err)
	}
	return s.GetTrace(ctx, seq)
}

func (s *Store) ListOwnerTraces(ctx context.Context, owner string, opts trace.ListOpts) ([]*trace.Trace, error) {
	start, stop := rangeBounds(opts.Offset, opts.Limit)
	members, err := s.client.ZRange(ctx, s.ownerTracesKey(owner), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: list owner traces: %w", err)
	}
	return s.loadTraces(ctx, members)
}

func (s *Store) ListTraces(ctx context.Context, opts trace.ListOpts) ([]*trace.Trace, error) {
	start, stop := rangeBounds(opts.Offset, opts.Limit)
	members, err := s.client.ZRange(ctx, s.tracesKey(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: list traces: %w", err)
	}
	return s.loadTraces(ctx, members)
}

func (s *Store) CountTraces(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.tracesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("treasury/redis: count traces: %w", err)
	}
	return n, nil
}

func (s *Store) CountOwnerTraces(ctx context.Context, owner string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.ownerTracesKey(owner)).Result()
	if err != nil {
		return 0, fmt.Errorf("treasury/redis: count owner traces: %w", err)
	}
	return n, nil
}

func (s *Store) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*trace.Trace, error) {
	args := redis.ZRangeArgs{
		Key:     s.pendingKey(),
		Start:   "-inf",
		Stop:    "(" + strconv.FormatInt(olderThan.Unix(), 10),
		ByScore: true,
	}
	if limit > 0 {
		args.Count = int64(limit)
	}

	members, err := s.client.ZRangeArgs(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: list pending: %w", err)
	}
	return s.loadTraces(ctx, members)
}

func (s *Store) loadTraces(ctx context.Context, members []string) ([]*trace.Trace, error) {
	keys := make([]string, len(members))
	for i, m := range members {
		seq, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("treasury/redis: bad trace member %q: %w", m, err)
		}
		keys[i] = s.traceKey(seq)
	}

	values, err := s.mget(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("treasury/redis: load traces: %w", err)
	}

	result := make([]*trace.Trace, 0, len(values))
	for _, raw := range values {
		t, err := decodeTrace(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// ==================== Helpers ====================

// mget fetches keys in order, skipping ones removed since they were listed.
func (s *Store) mget(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, []byte(str))
		}
	}
	return out, nil
}

// rangeBounds converts offset/limit into inclusive ZRANGE indexes.
func rangeBounds(offset, limit int) (start, stop int64) {
	start = int64(offset)
	if limit <= 0 || int64(limit) > math.MaxInt64-start {
		return start, -1
	}
	return start, start + int64(limit) - 1
}

func decodeAccount(raw []byte) (*account.Account, error) {
	var a account.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("treasury/redis: decode account: %w", err)
	}
	return &a, nil
}

func decodeTrace(raw []byte) (*trace.Trace, error) {
	var t trace.Trace
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("treasury/redis: decode trace: %w", err)
	}
	return &t, nil
}

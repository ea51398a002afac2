// Package mongo implements store.Store on MongoDB through the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	treasurystore "github.com/xraph/treasury/store"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Collection name constants.
const (
	colAccounts = "treasury_accounts"
	colTraces   = "treasury_traces"
	colCounters = "treasury_counters"
)

// traceCounter is the counters document holding the last assigned seq.
const traceCounter = "trace_seq"

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects to uri. database overrides the name in the URI path when set.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	mdb := mongodriver.New()
	var opts []mongodriver.MongoOption
	if database != "" {
		opts = append(opts, mongodriver.WithDatabase(database))
	}
	if err := mdb.Open(ctx, uri, opts...); err != nil {
		return nil, fmt.Errorf("treasury/mongo: open: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		return nil, fmt.Errorf("treasury/mongo: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the treasury collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("treasury/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, owner string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": owner}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrAccountNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) PutAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"symbol":               m.Symbol,
			"token_balance":        m.TokenBalance,
			"stack_balance":        m.StackBalance,
			"credit_balance":       m.CreditBalance,
			"unclaimed_balance":    m.UnclaimedBalance,
			"last_claim_time":      m.LastClaimTime,
			"last_claim_amount":    m.LastClaimAmount,
			"last_claim_timestamp": m.LastClaimTimestamp,
			"created_at":           m.CreatedAt,
			"updated_at":           m.UpdatedAt,
			"deleted_at":           m.DeletedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: put account: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, owner string, at time.Time) error {
	at = types.Truncate(at)
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": owner, "deleted_at": nil}).
		Set("deleted_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: delete account: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}

	// Already deleted accounts stay as they are.
	n, err := s.mdb.NewFind((*accountModel)(nil)).
		Filter(bson.M{"_id": owner}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: delete account: %w", err)
	}
	if n == 0 {
		return treasury.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel

	filter := bson.M{}
	if !opts.IncludeDeleted {
		filter["deleted_at"] = nil
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	n, err := s.mdb.NewFind((*accountModel)(nil)).
		Filter(bson.M{"deleted_at": nil}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("treasury/mongo: count accounts: %w", err)
	}
	return n, nil
}

// ==================== Trace Store ====================

// AppendTrace draws the next seq from the counters collection. A rejected
// duplicate leaves a gap in the sequence.
func (s *Store) AppendTrace(ctx context.Context, t *trace.Trace) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}

	m := toTraceModel(t)
	m.Seq = seq
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return treasury.ErrDuplicateTraceID
		}
		return fmt.Errorf("treasury/mongo: append trace: %w", err)
	}
	t.Seq = uint64(seq)
	return nil
}

func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.mdb.Collection(colCounters).
		FindOneAndUpdate(ctx,
			bson.M{"_id": traceCounter},
			bson.M{"$inc": bson.M{"value": int64(1)}},
			options.FindOneAndUpdate().
				SetUpsert(true).
				SetReturnDocument(options.After),
		).
		Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("treasury/mongo: next trace seq: %w", err)
	}
	return counter.Value, nil
}

func (s *Store) UpdateTrace(ctx context.Context, t *trace.Trace) error {
	m := toTraceModel(t)
	res, err := s.mdb.NewUpdate((*traceModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("context_id", m.ContextID).
		Set("operation", m.Operation).
		Set("status", m.Status).
		Set("amount", m.Amount).
		Set("metadata", m.Metadata).
		Set("calls", m.Calls).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: update trace: %w", err)
	}
	if res.MatchedCount() == 0 {
		return treasury.ErrTraceNotFound
	}
	return nil
}

func (s *Store) RemoveTrace(ctx context.Context, traceID string) error {
	res, err := s.mdb.NewDelete((*traceModel)(nil)).
		Filter(bson.M{"_id": traceID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: remove trace: %w", err)
	}
	if res.DeletedCount() == 0 {
		return treasury.ErrTraceNotFound
	}
	return nil
}

func (s *Store) GetTrace(ctx context.Context, seq uint64) (*trace.Trace, error) {
	return s.getTrace(ctx, bson.M{"seq": int64(seq)})
}

func (s *Store) GetTraceByID(ctx context.Context, traceID string) (*trace.Trace, error) {
	return s.getTrace(ctx, bson.M{"_id": traceID})
}

func (s *Store) getTrace(ctx context.Context, filter bson.M) (*trace.Trace, error) {
	var m traceModel
	if err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrTraceNotFound
		}
		return nil, fmt.Errorf("treasury/mongo: get trace: %w", err)
	}
	return fromTraceModel(&m)
}

func (s *Store) ListOwnerTraces(ctx context.Context, owner string, opts trace.ListOpts) ([]*trace.Trace, error) {
	return s.listTraces(ctx, bson.M{"owner": owner}, opts)
}

func (s *Store) ListTraces(ctx context.Context, opts trace.ListOpts) ([]*trace.Trace, error) {
	return s.listTraces(ctx, bson.M{}, opts)
}

func (s *Store) listTraces(ctx context.Context, filter bson.M, opts trace.ListOpts) ([]*trace.Trace, error) {
	var models []traceModel

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list traces: %w", err)
	}
	return fromTraceModels(models)
}

func (s *Store) CountTraces(ctx context.Context) (int64, error) {
	return s.countTraces(ctx, bson.M{})
}

func (s *Store) CountOwnerTraces(ctx context.Context, owner string) (int64, error) {
	return s.countTraces(ctx, bson.M{"owner": owner})
}

func (s *Store) countTraces(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.mdb.NewFind((*traceModel)(nil)).
		Filter(filter).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("treasury/mongo: count traces: %w", err)
	}
	return n, nil
}

func (s *Store) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*trace.Trace, error) {
	var models []traceModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":     string(trace.StatusPending),
			"updated_at": bson.M{"$lt": olderThan},
		}).
		Sort(bson.D{{Key: "updated_at", Value: 1}, {Key: "seq", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list pending: %w", err)
	}
	return fromTraceModels(models)
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the treasury collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "deleted_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colTraces: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
		},
	}
}

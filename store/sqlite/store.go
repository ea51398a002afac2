// Package sqlite implements store.Store on SQLite through the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/account"
	treasurystore "github.com/xraph/treasury/store"
	"github.com/xraph/treasury/trace"
)

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Open connects to the SQLite database at dsn and wraps it in a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("treasury/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		return nil, fmt.Errorf("treasury/sqlite: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("treasury/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("treasury/sqlite: migration failed: %w", err)
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
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("owner_id = ?", owner).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) PutAccount(ctx context.Context, a *account.Account) error {
	_, err := s.sdb.NewInsert(toAccountModel(a)).
		OnConflict("(owner_id) DO UPDATE").
		Set("symbol = EXCLUDED.symbol").
		Set("token_balance = EXCLUDED.token_balance").
		Set("stack_balance = EXCLUDED.stack_balance").
		Set("credit_balance = EXCLUDED.credit_balance").
		Set("unclaimed_balance = EXCLUDED.unclaimed_balance").
		Set("last_claim_time = EXCLUDED.last_claim_time").
		Set("last_claim_amount = EXCLUDED.last_claim_amount").
		Set("last_claim_timestamp = EXCLUDED.last_claim_timestamp").
		Set("updated_at = EXCLUDED.updated_at").
		Set("deleted_at = EXCLUDED.deleted_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteAccount(ctx context.Context, owner string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("deleted_at = COALESCE(deleted_at, ?)", at.Unix()).
		Set("updated_at = ?", at.Unix()).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return treasury.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models)

	if !opts.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	} else if opts.Offset > 0 {
		q = q.Limit(noLimit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("owner_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	return s.sdb.NewSelect((*accountModel)(nil)).
		Where("deleted_at IS NULL").
		Count(ctx)
}

// ==================== Trace Store ====================

func (s *Store) AppendTrace(ctx context.Context, t *trace.Trace) error {
	m, err := toTraceModel(t)
	if err != nil {
		return err
	}
	var seq int64
	err = s.sdb.NewInsert(m).
		Returning("seq").
		Scan(ctx, &seq)
	if err != nil {
		if isUniqueViolation(err) {
			return treasury.ErrDuplicateTraceID
		}
		return err
	}
	t.Seq = uint64(seq)
	return nil
}

func (s *Store) UpdateTrace(ctx context.Context, t *trace.Trace) error {
	m, err := toTraceModel(t)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewUpdate((*traceModel)(nil)).
		Set("context_id = ?", m.ContextID).
		Set("operation = ?", m.Operation).
		Set("status = ?", m.Status).
		Set("amount = ?", m.Amount).
		Set("metadata = ?", m.Metadata).
		Set("calls = ?", m.Calls).
		Set("updated_at = ?", m.UpdatedAt).
		Where("trace_id = ?", m.TraceID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return treasury.ErrTraceNotFound
	}
	return nil
}

func (s *Store) RemoveTrace(ctx context.Context, traceID string) error {
	res, err := s.sdb.NewDelete((*traceModel)(nil)).
		Where("trace_id = ?", traceID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return treasury.ErrTraceNotFound
	}
	return nil
}

func (s *Store) GetTrace(ctx context.Context, seq uint64) (*trace.Trace, error) {
	return s.getTrace(ctx, "seq = ?", int64(seq))
}

func (s *Store) GetTraceByID(ctx context.Context, traceID string) (*trace.Trace, error) {
	return s.getTrace(ctx, "trace_id = ?", traceID)
}

func (s *Store) getTrace(ctx context.Context, where string, arg any) (*trace.Trace, error) {
	m := new(traceModel)
	if err := s.sdb.NewSelect(m).Where(where, arg).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrTraceNotFound
		}
		return nil, err
	}
	return fromTraceModel(m)
}

func (s *Store) ListOwnerTraces(ctx context.Context, owner string, opts trace.ListOpts) ([]*trace.Trace, error) {
	return s.listTraces(ctx, opts, "owner = ?", owner)
}

func (s *Store) ListTraces(ctx context.Context, opts trace.ListOpts) ([]*trace.Trace, error) {
	return s.listTraces(ctx, opts, "")
}

func (s *Store) listTraces(ctx context.Context, opts trace.ListOpts, where string, args ...any) ([]*trace.Trace, error) {
	var models []traceModel
	q := s.sdb.NewSelect(&models)

	if where != "" {
		q = q.Where(where, args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	} else if opts.Offset > 0 {
		q = q.Limit(noLimit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromTraceModels(models)
}

func (s *Store) CountTraces(ctx context.Context) (int64, error) {
	return s.sdb.NewSelect((*traceModel)(nil)).Count(ctx)
}

func (s *Store) CountOwnerTraces(ctx context.Context, owner string) (int64, error) {
	return s.sdb.NewSelect((*traceModel)(nil)).
		Where("owner = ?", owner).
		Count(ctx)
}

func (s *Store) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*trace.Trace, error) {
	var models []traceModel
	q := s.sdb.NewSelect(&models).
		Where("status = ?", string(trace.StatusPending)).
		Where("updated_at < ?", olderThan.Unix()).
		OrderExpr("updated_at ASC, seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromTraceModels(models)
}

// ==================== Helpers ====================

// noLimit stands in for a missing LIMIT; SQLite rejects OFFSET without one.
const noLimit = math.MaxInt64

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a UNIQUE constraint failure from modernc sqlite.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the treasury store (SQLite).
var Migrations = migrate.NewGroup("treasury")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_treasury_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_accounts (
    owner_id             TEXT PRIMARY KEY,
    symbol               TEXT NOT NULL DEFAULT '',
    token_balance        TEXT NOT NULL DEFAULT '0',
    stack_balance        TEXT NOT NULL DEFAULT '0',
    credit_balance       TEXT NOT NULL DEFAULT '0',
    unclaimed_balance    TEXT NOT NULL DEFAULT '0',
    last_claim_time      INTEGER NOT NULL DEFAULT 0,
    last_claim_amount    TEXT NOT NULL DEFAULT '0',
    last_claim_timestamp INTEGER NOT NULL DEFAULT 0,
    created_at           INTEGER NOT NULL,
    updated_at           INTEGER NOT NULL,
    deleted_at           INTEGER
);

CREATE INDEX IF NOT EXISTS idx_treasury_accounts_deleted ON treasury_accounts (deleted_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_traces",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_traces (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    trace_id   TEXT NOT NULL,
    context_id TEXT NOT NULL DEFAULT '',
    owner      TEXT NOT NULL,
    operation  TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT '',
    amount     TEXT NOT NULL DEFAULT '0',
    metadata   TEXT NOT NULL DEFAULT '',
    calls      TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_treasury_traces_trace_id ON treasury_traces (trace_id);
CREATE INDEX IF NOT EXISTS idx_treasury_traces_owner ON treasury_traces (owner, seq);
CREATE INDEX IF NOT EXISTS idx_treasury_traces_pending ON treasury_traces (status, updated_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_traces`)
				return err
			},
		},
	)
}

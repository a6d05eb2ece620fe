package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations is the ordered schema history for the Escrow store (SQLite).
var Migrations = []migration{
	{
		Name:    "create_escrow_entries",
		Version: "20260101000001",
		Up: `
CREATE TABLE IF NOT EXISTS escrow_entries (
    campaign   TEXT NOT NULL,
    currency   TEXT NOT NULL,
    available  TEXT NOT NULL DEFAULT '0',
    pending    TEXT NOT NULL DEFAULT '0',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (campaign, currency)
);
CREATE INDEX IF NOT EXISTS idx_escrow_entries_currency ON escrow_entries (currency);`,
	},
	{
		Name:    "create_escrow_payments",
		Version: "20260101000002",
		Up: `
CREATE TABLE IF NOT EXISTS escrow_payments (
    campaign        TEXT NOT NULL,
    reference       TEXT NOT NULL,
    id              TEXT NOT NULL UNIQUE,
    payer           TEXT NOT NULL,
    destination     TEXT NOT NULL,
    currency        TEXT NOT NULL,
    voucher_type    TEXT NOT NULL,
    amount          TEXT NOT NULL,
    refunded_amount TEXT NOT NULL DEFAULT '0',
    status          TEXT NOT NULL,
    refunds         TEXT NOT NULL DEFAULT '[]',
    history         TEXT NOT NULL DEFAULT '[]',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    PRIMARY KEY (campaign, reference)
);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_status ON escrow_payments (campaign, status);`,
	},
	{
		Name:    "create_escrow_movements",
		Version: "20260101000003",
		Up: `
CREATE TABLE IF NOT EXISTS escrow_movements (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    campaign     TEXT NOT NULL,
    currency     TEXT NOT NULL,
    amount       TEXT NOT NULL,
    reference    TEXT NOT NULL DEFAULT '',
    actor        TEXT NOT NULL,
    counterparty TEXT NOT NULL,
    at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_escrow_movements_campaign ON escrow_movements (campaign, currency, at);`,
	},
	{
		Name:    "create_escrow_roles",
		Version: "20260101000004",
		Up: `
CREATE TABLE IF NOT EXISTS escrow_roles (
    id    INTEGER PRIMARY KEY CHECK (id = 1),
    state TEXT NOT NULL
);`,
	},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS escrow_schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
);`); err != nil {
		return err
	}

	for _, m := range Migrations {
		var applied int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM escrow_schema_migrations WHERE version = ?`, m.Version).Scan(&applied)
		if err != nil {
			return err
		}
		if applied > 0 {
			continue
		}
		if err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO escrow_schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, formatTime(time.Now()))
			return err
		}); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

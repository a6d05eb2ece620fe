package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Escrow store (PostgreSQL).
var Migrations = migrate.NewGroup("escrow")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_escrow_entries",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_entries (
    campaign   TEXT NOT NULL,
    currency   TEXT NOT NULL,
    available  TEXT NOT NULL DEFAULT '0' CHECK (available ~ '^[0-9]+$'),
    pending    TEXT NOT NULL DEFAULT '0' CHECK (pending ~ '^[0-9]+$'),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (campaign, currency)
);

CREATE INDEX IF NOT EXISTS idx_escrow_entries_currency ON escrow_entries (currency);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_payments",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_payments (
    campaign        TEXT NOT NULL,
    reference       TEXT NOT NULL,
    id              TEXT NOT NULL UNIQUE,
    payer           TEXT NOT NULL,
    destination     TEXT NOT NULL,
    currency        TEXT NOT NULL,
    voucher_type    TEXT NOT NULL,
    amount          TEXT NOT NULL CHECK (amount ~ '^[0-9]+$'),
    refunded_amount TEXT NOT NULL DEFAULT '0' CHECK (refunded_amount ~ '^[0-9]+$'),
    status          TEXT NOT NULL,
    refunds         JSONB NOT NULL DEFAULT '[]',
    history         JSONB NOT NULL DEFAULT '[]',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT escrow_payments_pkey PRIMARY KEY (campaign, reference)
);

CREATE INDEX IF NOT EXISTS idx_escrow_payments_status ON escrow_payments (campaign, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_movements",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_movements (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    campaign     TEXT NOT NULL,
    currency     TEXT NOT NULL,
    amount       TEXT NOT NULL CHECK (amount ~ '^[0-9]+$'),
    reference    TEXT NOT NULL DEFAULT '',
    actor        TEXT NOT NULL,
    counterparty TEXT NOT NULL,
    at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_escrow_movements_campaign ON escrow_movements (campaign, currency, at);
CREATE INDEX IF NOT EXISTS idx_escrow_movements_at ON escrow_movements (at, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_movements`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_roles",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_roles (
    id    INTEGER PRIMARY KEY CHECK (id = 1),
    state JSONB NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_roles`)
				return err
			},
		},
	)
}

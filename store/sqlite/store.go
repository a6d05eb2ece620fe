// Package sqlite is a durable store.Store on an embedded SQLite database.
// Every Commit runs inside one database transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: open %s: %w", path, err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("escrow/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Treasury ====================

func (s *Store) GetEntry(ctx context.Context, key treasury.Key) (*treasury.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM escrow_entries WHERE campaign = ? AND currency = ?`,
		addr(key.Campaign), addr(key.Currency))
	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM escrow_entries WHERE 1 = 1`
	var args []any
	if opts.Campaign != (common.Address{}) {
		q += ` AND campaign = ?`
		args = append(args, addr(opts.Campaign))
	}
	if opts.Currency != (common.Address{}) {
		q += ` AND currency = ?`
		args = append(args, addr(opts.Currency))
	}
	q += ` ORDER BY campaign, currency` + limitClause(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*treasury.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) ListMovements(ctx context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error) {
	q := `SELECT ` + movementColumns + ` FROM escrow_movements WHERE 1 = 1`
	var args []any
	if opts.Campaign != (common.Address{}) {
		q += ` AND campaign = ?`
		args = append(args, addr(opts.Campaign))
	}
	if opts.Currency != (common.Address{}) {
		q += ` AND currency = ?`
		args = append(args, addr(opts.Currency))
	}
	if opts.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(opts.Kind))
	}
	if opts.Reference != "" {
		q += ` AND reference = ?`
		args = append(args, opts.Reference)
	}
	q += ` ORDER BY at, id` + limitClause(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*treasury.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// ==================== Payments ====================

func (s *Store) GetPayment(ctx context.Context, key payment.Key) (*payment.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM escrow_payments WHERE campaign = ? AND reference = ?`,
		addr(key.Campaign), key.Reference)
	p, err := scanPayment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM escrow_payments WHERE campaign = ?`
	args := []any{addr(campaign)}
	if opts.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY reference` + limitClause(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ==================== Access ====================

func (s *Store) GetRoles(ctx context.Context) (*access.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM escrow_roles WHERE id = 1`).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return &access.State{}, nil
		}
		return nil, err
	}
	var state access.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("escrow/sqlite: decode roles: %w", err)
	}
	return &state, nil
}

// ==================== Commit ====================

func (s *Store) Commit(ctx context.Context, cs *store.Changeset) error {
	if cs.Empty() {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range cs.Entries {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO escrow_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign, currency) DO UPDATE SET
    available = excluded.available,
    pending = excluded.pending,
    updated_at = excluded.updated_at`,
				addr(e.Campaign), addr(e.Currency), e.Available, e.Pending,
				formatTime(e.CreatedAt), formatTime(e.UpdatedAt)); err != nil {
				return fmt.Errorf("upsert entry %s: %w", e.Key(), err)
			}
		}

		for _, k := range cs.Dropped {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM escrow_entries WHERE campaign = ? AND currency = ?`,
				addr(k.Campaign), addr(k.Currency)); err != nil {
				return fmt.Errorf("drop entry %s: %w", k, err)
			}
		}

		for _, p := range cs.Created {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM escrow_payments WHERE campaign = ? AND reference = ?`,
				addr(p.Campaign), p.Reference).Scan(&exists); err != nil {
				return err
			}
			if exists > 0 {
				return fmt.Errorf("%w: %s", payment.ErrPaymentExists, p.Key())
			}
			args, err := paymentArgs(p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO escrow_payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				args...); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s", payment.ErrPaymentExists, p.Key())
				}
				return fmt.Errorf("insert payment %s: %w", p.Key(), err)
			}
		}

		for _, p := range cs.Updated {
			refunds, err := json.Marshal(p.Refunds)
			if err != nil {
				return err
			}
			history, err := json.Marshal(p.History)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
UPDATE escrow_payments SET refunded_amount = ?, status = ?, refunds = ?, history = ?, updated_at = ?
WHERE campaign = ? AND reference = ?`,
				p.RefundedAmount, string(p.Status), string(refunds), string(history), formatTime(p.UpdatedAt),
				addr(p.Campaign), p.Reference)
			if err != nil {
				return fmt.Errorf("update payment %s: %w", p.Key(), err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("%w: %s", payment.ErrPaymentNotFound, p.Key())
			}
		}

		for _, k := range cs.Removed {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM escrow_payments WHERE campaign = ? AND reference = ?`,
				addr(k.Campaign), k.Reference); err != nil {
				return fmt.Errorf("delete payment %s: %w", k, err)
			}
		}

		for _, m := range cs.Movements {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO escrow_movements (`+movementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID.String(), string(m.Kind), addr(m.Campaign), addr(m.Currency), m.Amount, m.Reference,
				addr(m.Actor), addr(m.Counterparty), formatTime(m.At)); err != nil {
				return fmt.Errorf("insert movement %s: %w", m.ID, err)
			}
		}

		for _, mid := range cs.Retracted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM escrow_movements WHERE id = ?`, mid.String()); err != nil {
				return fmt.Errorf("retract movement %s: %w", mid, err)
			}
		}

		if cs.Roles != nil {
			raw, err := json.Marshal(cs.Roles)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO escrow_roles (id, state) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET state = excluded.state`, string(raw)); err != nil {
				return fmt.Errorf("write roles: %w", err)
			}
		}
		return nil
	})
}

// ==================== Helpers ====================

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the original error is what matters
		return err
	}
	return tx.Commit()
}

func limitClause(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	default:
		return ""
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Package postgres implements store.Store on PostgreSQL through grove.
//
// Commit compiles a changeset into one data-modifying CTE statement, so every
// write lands or none does without an explicit transaction. Existence checks
// ahead of that statement assume a single writer, which the engine's
// serialized transactions guarantee; the primary key still rejects a racing
// duplicate inside the statement.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	escrowstore "github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("escrow/postgres: migration failed: %w", err)
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

// ==================== Treasury ====================

func (s *Store) GetEntry(ctx context.Context, key treasury.Key) (*treasury.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("campaign = $1", key.Campaign.Hex()).
		Where("currency = $2", key.Currency.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) ListEntries(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Campaign != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("campaign = $%d", argIdx), opts.Campaign.Hex())
	}
	if opts.Currency != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("currency = $%d", argIdx), opts.Currency.Hex())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("campaign ASC, currency ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*treasury.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) ListMovements(ctx context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error) {
	var models []movementModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Campaign != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("campaign = $%d", argIdx), opts.Campaign.Hex())
	}
	if opts.Currency != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("currency = $%d", argIdx), opts.Currency.Hex())
	}
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.Reference != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("reference = $%d", argIdx), opts.Reference)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*treasury.Movement, len(models))
	for i := range models {
		m, err := fromMovementModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}

// ==================== Payments ====================

func (s *Store) GetPayment(ctx context.Context, key payment.Key) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("campaign = $1", key.Campaign.Hex()).
		Where("reference = $2", key.Reference).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("campaign = $1", campaign.Hex())

	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("reference ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Access ====================

func (s *Store) GetRoles(ctx context.Context) (*access.State, error) {
	m := new(rolesModel)
	err := s.pg.NewSelect(m).Where("id = $1", 1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return &access.State{}, nil
		}
		return nil, err
	}
	var state access.State
	if err := json.Unmarshal(m.State, &state); err != nil {
		return nil, fmt.Errorf("escrow/postgres: decode roles: %w", err)
	}
	return &state, nil
}

// ==================== Commit ====================

func (s *Store) Commit(ctx context.Context, cs *escrowstore.Changeset) error {
	if cs.Empty() {
		return nil
	}

	for _, p := range cs.Created {
		if _, err := s.GetPayment(ctx, p.Key()); err == nil {
			return fmt.Errorf("%w: %s", payment.ErrPaymentExists, p.Key())
		} else if !errors.Is(err, payment.ErrPaymentNotFound) {
			return err
		}
	}
	for _, p := range cs.Updated {
		if _, err := s.GetPayment(ctx, p.Key()); err != nil {
			return err
		}
	}

	stmt, args, err := buildCommit(cs)
	if err != nil {
		return err
	}

	var n int64
	if err := s.pg.NewRaw(stmt, args...).Scan(ctx, &n); err != nil {
		if isPaymentConflict(err) {
			return fmt.Errorf("%w: %v", payment.ErrPaymentExists, err)
		}
		return fmt.Errorf("escrow/postgres: commit: %w", err)
	}
	return nil
}

// commitBuilder accumulates one CTE per write plus the positional arguments
// they reference.
type commitBuilder struct {
	ctes []string
	args []any
}

func (b *commitBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *commitBuilder) add(body string) {
	b.ctes = append(b.ctes, fmt.Sprintf("w%d AS (%s RETURNING 1)", len(b.ctes), body))
}

func buildCommit(cs *escrowstore.Changeset) (string, []any, error) {
	b := &commitBuilder{}

	for _, e := range cs.Entries {
		b.add(fmt.Sprintf(`INSERT INTO escrow_entries (campaign, currency, available, pending, created_at, updated_at)
VALUES (%s, %s, %s, %s, %s, %s)
ON CONFLICT (campaign, currency) DO UPDATE SET
    available = EXCLUDED.available, pending = EXCLUDED.pending, updated_at = EXCLUDED.updated_at`,
			b.arg(e.Campaign.Hex()), b.arg(e.Currency.Hex()), b.arg(e.Available.String()),
			b.arg(e.Pending.String()), b.arg(e.CreatedAt), b.arg(e.UpdatedAt)))
	}

	for _, k := range cs.Dropped {
		b.add(fmt.Sprintf(`DELETE FROM escrow_entries WHERE campaign = %s AND currency = %s`,
			b.arg(k.Campaign.Hex()), b.arg(k.Currency.Hex())))
	}

	for _, p := range cs.Created {
		m, err := toPaymentModel(p)
		if err != nil {
			return "", nil, err
		}
		b.add(fmt.Sprintf(`INSERT INTO escrow_payments (campaign, reference, id, payer, destination, currency,
    voucher_type, amount, refunded_amount, status, refunds, history, created_at, updated_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s::jsonb, %s::jsonb, %s, %s)`,
			b.arg(m.Campaign), b.arg(m.Reference), b.arg(m.ID), b.arg(m.Payer), b.arg(m.Destination),
			b.arg(m.Currency), b.arg(m.VoucherType), b.arg(m.Amount), b.arg(m.RefundedAmount),
			b.arg(m.Status), b.arg(string(m.Refunds)), b.arg(string(m.History)),
			b.arg(m.CreatedAt), b.arg(m.UpdatedAt)))
	}

	for _, p := range cs.Updated {
		m, err := toPaymentModel(p)
		if err != nil {
			return "", nil, err
		}
		b.add(fmt.Sprintf(`UPDATE escrow_payments SET refunded_amount = %s, status = %s,
    refunds = %s::jsonb, history = %s::jsonb, updated_at = %s
WHERE campaign = %s AND reference = %s`,
			b.arg(m.RefundedAmount), b.arg(m.Status), b.arg(string(m.Refunds)), b.arg(string(m.History)),
			b.arg(m.UpdatedAt), b.arg(m.Campaign), b.arg(m.Reference)))
	}

	for _, k := range cs.Removed {
		b.add(fmt.Sprintf(`DELETE FROM escrow_payments WHERE campaign = %s AND reference = %s`,
			b.arg(k.Campaign.Hex()), b.arg(k.Reference)))
	}

	for _, m := range cs.Movements {
		b.add(fmt.Sprintf(`INSERT INTO escrow_movements (id, kind, campaign, currency, amount, reference, actor, counterparty, at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			b.arg(m.ID.String()), b.arg(string(m.Kind)), b.arg(m.Campaign.Hex()), b.arg(m.Currency.Hex()),
			b.arg(m.Amount.String()), b.arg(m.Reference), b.arg(m.Actor.Hex()), b.arg(m.Counterparty.Hex()),
			b.arg(m.At.UTC())))
	}

	for _, mid := range cs.Retracted {
		b.add(fmt.Sprintf(`DELETE FROM escrow_movements WHERE id = %s`, b.arg(mid.String())))
	}

	if cs.Roles != nil {
		raw, err := json.Marshal(cs.Roles)
		if err != nil {
			return "", nil, err
		}
		b.add(fmt.Sprintf(`INSERT INTO escrow_roles (id, state) VALUES (1, %s::jsonb)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state`, b.arg(string(raw))))
	}

	counts := make([]string, len(b.ctes))
	for i := range b.ctes {
		counts[i] = fmt.Sprintf("(SELECT COUNT(*) FROM w%d)", i)
	}
	stmt := "WITH " + strings.Join(b.ctes, ",\n") + "\nSELECT " + strings.Join(counts, " + ")
	return stmt, b.args, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isPaymentConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "escrow_payments_pkey"
}

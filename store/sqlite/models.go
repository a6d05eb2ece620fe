package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

// Fixed-width so lexical order in TEXT columns matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func addr(a common.Address) string { return a.Hex() }

type scanner interface {
	Scan(dest ...any) error
}

const entryColumns = `campaign, currency, available, pending, created_at, updated_at`

func scanEntry(row scanner) (*treasury.Entry, error) {
	var (
		campaign, currency, created, updated string
		e                                    treasury.Entry
	)
	if err := row.Scan(&campaign, &currency, &e.Available, &e.Pending, &created, &updated); err != nil {
		return nil, err
	}
	e.Campaign = common.HexToAddress(campaign)
	e.Currency = common.HexToAddress(currency)
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

const paymentColumns = `campaign, reference, id, payer, destination, currency, voucher_type,
    amount, refunded_amount, status, refunds, history, created_at, updated_at`

func paymentArgs(p *payment.Payment) ([]any, error) {
	refunds, err := json.Marshal(p.Refunds)
	if err != nil {
		return nil, fmt.Errorf("marshal refunds: %w", err)
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return []any{
		addr(p.Campaign), p.Reference, p.ID.String(), addr(p.Payer), addr(p.Destination), addr(p.Currency),
		strconv.FormatUint(p.VoucherType, 10), p.Amount, p.RefundedAmount, string(p.Status),
		string(refunds), string(history), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	}, nil
}

func scanPayment(row scanner) (*payment.Payment, error) {
	var (
		p                                     payment.Payment
		campaign, pid, payer, dest, currency  string
		voucherType, status, refunds, history string
		created, updated                      string
	)
	if err := row.Scan(&campaign, &p.Reference, &pid, &payer, &dest, &currency, &voucherType,
		&p.Amount, &p.RefundedAmount, &status, &refunds, &history, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if p.ID, err = id.ParsePaymentID(pid); err != nil {
		return nil, err
	}
	if p.VoucherType, err = strconv.ParseUint(voucherType, 10, 64); err != nil {
		return nil, fmt.Errorf("voucher type: %w", err)
	}
	if err := json.Unmarshal([]byte(refunds), &p.Refunds); err != nil {
		return nil, fmt.Errorf("unmarshal refunds: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	p.Campaign = common.HexToAddress(campaign)
	p.Payer = common.HexToAddress(payer)
	p.Destination = common.HexToAddress(dest)
	p.Currency = common.HexToAddress(currency)
	p.Status = payment.Status(status)
	if len(p.Refunds) == 0 {
		p.Refunds = nil
	}
	return &p, nil
}

const movementColumns = `id, kind, campaign, currency, amount, reference, actor, counterparty, at`

func scanMovement(row scanner) (*treasury.Movement, error) {
	var (
		m                                                      treasury.Movement
		mid, kind, campaign, currency, actor, counterparty, at string
	)
	if err := row.Scan(&mid, &kind, &campaign, &currency, &m.Amount, &m.Reference, &actor, &counterparty, &at); err != nil {
		return nil, err
	}
	var err error
	if m.ID, err = id.ParseMovementID(mid); err != nil {
		return nil, err
	}
	if m.At, err = parseTime(at); err != nil {
		return nil, err
	}
	m.Kind = treasury.Kind(kind)
	m.Campaign = common.HexToAddress(campaign)
	m.Currency = common.HexToAddress(currency)
	m.Actor = common.HexToAddress(actor)
	m.Counterparty = common.HexToAddress(counterparty)
	return &m, nil
}

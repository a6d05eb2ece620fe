package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:escrow_entries"`

	Campaign  string    `grove:"campaign,pk"`
	Currency  string    `grove:"currency,pk"`
	Available string    `grove:"available"`
	Pending   string    `grove:"pending"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromEntryModel(m *entryModel) (*treasury.Entry, error) {
	available, err := types.ParseAmount(m.Available)
	if err != nil {
		return nil, err
	}
	pending, err := types.ParseAmount(m.Pending)
	if err != nil {
		return nil, err
	}
	return &treasury.Entry{
		Entity:    types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		Campaign:  common.HexToAddress(m.Campaign),
		Currency:  common.HexToAddress(m.Currency),
		Available: available,
		Pending:   pending,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:escrow_payments"`

	Campaign       string          `grove:"campaign,pk"`
	Reference      string          `grove:"reference,pk"`
	ID             string          `grove:"id"`
	Payer          string          `grove:"payer"`
	Destination    string          `grove:"destination"`
	Currency       string          `grove:"currency"`
	VoucherType    string          `grove:"voucher_type"`
	Amount         string          `grove:"amount"`
	RefundedAmount string          `grove:"refunded_amount"`
	Status         string          `grove:"status"`
	Refunds        json.RawMessage `grove:"refunds,type:jsonb"`
	History        json.RawMessage `grove:"history,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) (*paymentModel, error) {
	refunds, err := json.Marshal(p.Refunds)
	if err != nil {
		return nil, fmt.Errorf("marshal refunds: %w", err)
	}
	if p.Refunds == nil {
		refunds = []byte("[]")
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	if p.History == nil {
		history = []byte("[]")
	}
	return &paymentModel{
		Campaign:       p.Campaign.Hex(),
		Reference:      p.Reference,
		ID:             p.ID.String(),
		Payer:          p.Payer.Hex(),
		Destination:    p.Destination.Hex(),
		Currency:       p.Currency.Hex(),
		VoucherType:    strconv.FormatUint(p.VoucherType, 10),
		Amount:         p.Amount.String(),
		RefundedAmount: p.RefundedAmount.String(),
		Status:         string(p.Status),
		Refunds:        refunds,
		History:        history,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}, nil
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	pid, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	voucherType, err := strconv.ParseUint(m.VoucherType, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("voucher type: %w", err)
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	refunded, err := types.ParseAmount(m.RefundedAmount)
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             pid,
		Campaign:       common.HexToAddress(m.Campaign),
		Reference:      m.Reference,
		Payer:          common.HexToAddress(m.Payer),
		Destination:    common.HexToAddress(m.Destination),
		Currency:       common.HexToAddress(m.Currency),
		VoucherType:    voucherType,
		Amount:         amount,
		RefundedAmount: refunded,
		Status:         payment.Status(m.Status),
	}
	if len(m.Refunds) > 0 {
		if err := json.Unmarshal(m.Refunds, &p.Refunds); err != nil {
			return nil, fmt.Errorf("unmarshal refunds: %w", err)
		}
	}
	if len(m.History) > 0 {
		if err := json.Unmarshal(m.History, &p.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if len(p.Refunds) == 0 {
		p.Refunds = nil
	}
	return p, nil
}

// ==================== Movement models ====================

type movementModel struct {
	grove.BaseModel `grove:"table:escrow_movements"`

	ID           string    `grove:"id,pk"`
	Kind         string    `grove:"kind"`
	Campaign     string    `grove:"campaign"`
	Currency     string    `grove:"currency"`
	Amount       string    `grove:"amount"`
	Reference    string    `grove:"reference"`
	Actor        string    `grove:"actor"`
	Counterparty string    `grove:"counterparty"`
	At           time.Time `grove:"at"`
}

func fromMovementModel(m *movementModel) (*treasury.Movement, error) {
	mid, err := id.ParseMovementID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &treasury.Movement{
		ID:           mid,
		Kind:         treasury.Kind(m.Kind),
		Campaign:     common.HexToAddress(m.Campaign),
		Currency:     common.HexToAddress(m.Currency),
		Amount:       amount,
		Reference:    m.Reference,
		Actor:        common.HexToAddress(m.Actor),
		Counterparty: common.HexToAddress(m.Counterparty),
		At:           m.At.UTC(),
	}, nil
}

// ==================== Role models ====================

type rolesModel struct {
	grove.BaseModel `grove:"table:escrow_roles"`

	ID    int             `grove:"id,pk"`
	State json.RawMessage `grove:"state,type:jsonb"`
}

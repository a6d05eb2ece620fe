package mongo

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:escrow_entries"`

	Key       string    `grove:"id,pk"      bson:"_id"`
	Campaign  string    `grove:"campaign"   bson:"campaign"`
	Currency  string    `grove:"currency"   bson:"currency"`
	Available string    `grove:"available"  bson:"available"`
	Pending   string    `grove:"pending"    bson:"pending"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func entryDocID(k treasury.Key) string { return k.String() }

func toEntryModel(e *treasury.Entry) *entryModel {
	return &entryModel{
		Key:       entryDocID(e.Key()),
		Campaign:  e.Campaign.Hex(),
		Currency:  e.Currency.Hex(),
		Available: e.Available.String(),
		Pending:   e.Pending.String(),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
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

	Key            string            `grove:"id,pk"           bson:"_id"`
	ID             string            `grove:"payment_id"      bson:"payment_id"`
	Campaign       string            `grove:"campaign"        bson:"campaign"`
	Reference      string            `grove:"reference"       bson:"reference"`
	Payer          string            `grove:"payer"           bson:"payer"`
	Destination    string            `grove:"destination"     bson:"destination"`
	Currency       string            `grove:"currency"        bson:"currency"`
	VoucherType    int64             `grove:"voucher_type"    bson:"voucher_type"`
	Amount         string            `grove:"amount"          bson:"amount"`
	RefundedAmount string            `grove:"refunded_amount" bson:"refunded_amount"`
	Status         string            `grove:"status"          bson:"status"`
	Refunds        []refundModel     `grove:"refunds"         bson:"refunds"`
	History        []transitionModel `grove:"history"         bson:"history"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

type refundModel struct {
	ID        string    `bson:"id"`
	Reference string    `bson:"reference"`
	Amount    string    `bson:"amount"`
	Operator  string    `bson:"operator"`
	At        time.Time `bson:"at"`
}

type transitionModel struct {
	From     string    `bson:"from"`
	To       string    `bson:"to"`
	Metadata string    `bson:"metadata,omitempty"`
	At       time.Time `bson:"at"`
}

func paymentDocID(k payment.Key) string { return k.String() }

func toPaymentModel(p *payment.Payment) *paymentModel {
	refunds := make([]refundModel, len(p.Refunds))
	for i, r := range p.Refunds {
		refunds[i] = refundModel{
			ID:        r.ID.String(),
			Reference: r.Reference,
			Amount:    r.Amount.String(),
			Operator:  r.Operator.Hex(),
			At:        r.At,
		}
	}
	history := make([]transitionModel, len(p.History))
	for i, h := range p.History {
		history[i] = transitionModel{From: string(h.From), To: string(h.To), Metadata: h.Metadata, At: h.At}
	}
	return &paymentModel{
		Key:            paymentDocID(p.Key()),
		ID:             p.ID.String(),
		Campaign:       p.Campaign.Hex(),
		Reference:      p.Reference,
		Payer:          p.Payer.Hex(),
		Destination:    p.Destination.Hex(),
		Currency:       p.Currency.Hex(),
		VoucherType:    int64(p.VoucherType), //nolint:gosec // bit pattern round-trips through fromPaymentModel
		Amount:         p.Amount.String(),
		RefundedAmount: p.RefundedAmount.String(),
		Status:         string(p.Status),
		Refunds:        refunds,
		History:        history,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	pid, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
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
		VoucherType:    uint64(m.VoucherType), //nolint:gosec // see toPaymentModel
		Amount:         amount,
		RefundedAmount: refunded,
		Status:         payment.Status(m.Status),
	}
	for _, r := range m.Refunds {
		rid, err := id.ParseRefundID(r.ID)
		if err != nil {
			return nil, err
		}
		amt, err := types.ParseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		p.Refunds = append(p.Refunds, payment.Refund{
			ID:        rid,
			Reference: r.Reference,
			Amount:    amt,
			Operator:  common.HexToAddress(r.Operator),
			At:        r.At.UTC(),
		})
	}
	for _, h := range m.History {
		p.History = append(p.History, payment.Transition{
			From:     payment.Status(h.From),
			To:       payment.Status(h.To),
			Metadata: h.Metadata,
			At:       h.At.UTC(),
		})
	}
	return p, nil
}

// ==================== Movement models ====================

type movementModel struct {
	grove.BaseModel `grove:"table:escrow_movements"`

	ID           string    `grove:"id,pk"        bson:"_id"`
	Kind         string    `grove:"kind"         bson:"kind"`
	Campaign     string    `grove:"campaign"     bson:"campaign"`
	Currency     string    `grove:"currency"     bson:"currency"`
	Amount       string    `grove:"amount"       bson:"amount"`
	Reference    string    `grove:"reference"    bson:"reference"`
	Actor        string    `grove:"actor"        bson:"actor"`
	Counterparty string    `grove:"counterparty" bson:"counterparty"`
	At           time.Time `grove:"at"           bson:"at"`
}

func toMovementModel(m *treasury.Movement) *movementModel {
	return &movementModel{
		ID:           m.ID.String(),
		Kind:         string(m.Kind),
		Campaign:     m.Campaign.Hex(),
		Currency:     m.Currency.Hex(),
		Amount:       m.Amount.String(),
		Reference:    m.Reference,
		Actor:        m.Actor.Hex(),
		Counterparty: m.Counterparty.Hex(),
		At:           m.At.UTC(),
	}
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

const rolesDocID = "roles"

type rolesModel struct {
	grove.BaseModel `grove:"table:escrow_roles"`

	ID           string    `grove:"id,pk"        bson:"_id"`
	Admin        string    `grove:"admin"        bson:"admin"`
	Initialised  bool      `grove:"initialised"  bson:"initialised"`
	Operators    []string  `grove:"operators"    bson:"operators"`
	Integrations []string  `grove:"integrations" bson:"integrations"`
	UpdatedAt    time.Time `grove:"updated_at"   bson:"updated_at"`
}

func toRolesModel(s *access.State) *rolesModel {
	m := &rolesModel{
		ID:          rolesDocID,
		Admin:       s.Admin.Hex(),
		Initialised: s.Initialised,
		UpdatedAt:   s.UpdatedAt,
	}
	for _, a := range s.Operators {
		m.Operators = append(m.Operators, a.Hex())
	}
	for _, a := range s.Integrations {
		m.Integrations = append(m.Integrations, a.Hex())
	}
	return m
}

func fromRolesModel(m *rolesModel) *access.State {
	s := &access.State{
		Admin:       common.HexToAddress(m.Admin),
		Initialised: m.Initialised,
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	for _, a := range m.Operators {
		s.Operators = append(s.Operators, common.HexToAddress(a))
	}
	for _, a := range m.Integrations {
		s.Integrations = append(s.Integrations, common.HexToAddress(a))
	}
	return s
}

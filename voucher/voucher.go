// Package voucher defines the campaign voucher ledger the escrow engine burns
// from and mints to, plus an in-memory multi-token reference Book.
package voucher

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

var (
	ErrInsufficientVouchers = errors.New("escrow: insufficient voucher balance")
	ErrNotApproved          = errors.New("escrow: voucher operator not approved")
	ErrReceiverRejected     = errors.New("escrow: voucher receiver rejected transfer")
)

// Ledger is the voucher token surface the escrow engine depends on.
// One voucher unit equals one base unit of the payment currency.
type Ledger interface {
	BurnFrom(ctx context.Context, holder common.Address, voucherType uint64, amount types.Amount) error
	MintTo(ctx context.Context, holder common.Address, voucherType uint64, amount types.Amount) error
	BalanceOf(ctx context.Context, holder common.Address, voucherType uint64) (types.Amount, error)
}

// Receiver is notified when vouchers arrive at an address it is registered
// for. Returning an error undoes the arrival.
type Receiver interface {
	OnVoucherReceived(ctx context.Context, r Receipt) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, r Receipt) error

func (f ReceiverFunc) OnVoucherReceived(ctx context.Context, r Receipt) error { return f(ctx, r) }

// Receipt describes an arrival. From is the zero address for mints.
type Receipt struct {
	Operator    common.Address
	From        common.Address
	To          common.Address
	VoucherType uint64
	Amount      types.Amount
	Data        []byte
}

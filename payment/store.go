package payment

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	GetPayment(ctx context.Context, key Key) (*Payment, error)
	ListPayments(ctx context.Context, campaign common.Address, opts ListOpts) ([]*Payment, error)
}

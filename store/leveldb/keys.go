package leveldb

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

// Key layout. Iteration order under each prefix is the list order:
//
//	e/<campaign>/<currency>    -> treasury.Entry
//	p/<campaign>/<reference>   -> payment.Payment
//	m/<at>/<movement id>       -> treasury.Movement
//	x/<movement id>            -> journal key of that movement
//	roles                      -> access.State
const (
	prefixEntry    = "e/"
	prefixPayment  = "p/"
	prefixMovement = "m/"
	prefixMoveIdx  = "x/"
	keyRoles       = "roles"
)

// Fixed-width so byte order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func entryKey(k treasury.Key) []byte {
	return []byte(prefixEntry + k.Campaign.Hex() + "/" + k.Currency.Hex())
}

func paymentPrefix(campaign common.Address) []byte {
	return []byte(prefixPayment + campaign.Hex() + "/")
}

func paymentKey(k payment.Key) []byte {
	return append(paymentPrefix(k.Campaign), k.Reference...)
}

func movementKey(at time.Time, mid id.ID) []byte {
	return []byte(prefixMovement + at.UTC().Format(timeLayout) + "/" + mid.String())
}

func movementIndexKey(mid id.ID) []byte {
	return []byte(prefixMoveIdx + mid.String())
}

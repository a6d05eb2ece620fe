package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

var ErrClosed = errors.New("escrow: store is closed")

// Store is the unified storage interface for all Escrow state.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Treasury methods
	GetEntry(ctx context.Context, key treasury.Key) (*treasury.Entry, error)
	ListEntries(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error)
	ListMovements(ctx context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error)

	// Payment methods
	GetPayment(ctx context.Context, key payment.Key) (*payment.Payment, error)
	ListPayments(ctx context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error)

	// Access methods
	GetRoles(ctx context.Context) (*access.State, error)

	// Commit applies every write in cs atomically: either all of it is
	// visible afterwards or none of it is.
	Commit(ctx context.Context, cs *Changeset) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ treasury.Store = Store(nil)
	_ payment.Store  = Store(nil)
	_ access.Store   = Store(nil)
)

// Changeset is the set of writes one engine transaction produces.
type Changeset struct {
	// Entries are upserted by key.
	Entries []*treasury.Entry
	// Dropped deletes entries. Only compensation uses this, for entries the
	// failed transaction brought into existence.
	Dropped []treasury.Key
	// Created payments are inserted; an existing key fails the whole commit
	// with payment.ErrPaymentExists.
	Created []*payment.Payment
	// Updated payments replace the stored record with the same key.
	Updated []*payment.Payment
	// Removed deletes payments. Only compensation uses this, to undo a
	// creation whose external effects failed.
	Removed []payment.Key
	// Movements are appended to the journal.
	Movements []*treasury.Movement
	// Retracted deletes journal rows by ID, again only during compensation.
	Retracted []id.ID
	// Roles, when set, replaces the persisted role state.
	Roles *access.State
}

// Empty reports whether cs writes nothing.
func (cs *Changeset) Empty() bool {
	return cs == nil || (len(cs.Entries) == 0 && len(cs.Dropped) == 0 && len(cs.Created) == 0 && len(cs.Updated) == 0 &&
		len(cs.Removed) == 0 && len(cs.Movements) == 0 && len(cs.Retracted) == 0 && cs.Roles == nil)
}

// Page applies offset/limit to an ordered result. A zero limit means no limit.
func Page[T any](items []T, limit, offset int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	if start < 0 {
		start = 0
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

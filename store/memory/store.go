// Package memory provides an in-process store.Store, used by tests and by
// embedders that do not need durability.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	entries   map[treasury.Key]treasury.Entry
	payments  map[payment.Key]*payment.Payment
	movements []treasury.Movement
	roles     access.State
	closed    bool
}

func New() *Store {
	return &Store{
		entries:  make(map[treasury.Key]treasury.Entry),
		payments: make(map[payment.Key]*payment.Payment),
	}
}

// ==================== Treasury ====================

func (s *Store) GetEntry(_ context.Context, key treasury.Key) (*treasury.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[key]; ok {
		return &e, nil
	}
	return nil, treasury.ErrEntryNotFound
}

func (s *Store) ListEntries(_ context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*treasury.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if opts.Matches(e) {
			e := e
			result = append(result, &e)
		}
	}
	slices.SortFunc(result, func(a, b *treasury.Entry) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})
	return store.Page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListMovements(_ context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*treasury.Movement, 0)
	for i := range s.movements {
		if opts.Matches(s.movements[i]) {
			m := s.movements[i]
			result = append(result, &m)
		}
	}
	slices.SortFunc(result, func(a, b *treasury.Movement) int { return treasury.LessMovement(*a, *b) })
	return store.Page(result, opts.Limit, opts.Offset), nil
}

// ==================== Payments ====================

func (s *Store) GetPayment(_ context.Context, key payment.Key) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[key]; ok {
		return p.Clone(), nil
	}
	return nil, payment.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for k, p := range s.payments {
		if k.Campaign != campaign {
			continue
		}
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, p.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *payment.Payment) int { return strings.Compare(a.Reference, b.Reference) })
	return store.Page(result, opts.Limit, opts.Offset), nil
}

// ==================== Access ====================

func (s *Store) GetRoles(_ context.Context) (*access.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := s.roles.Clone()
	return &roles, nil
}

// ==================== Commit ====================

func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if cs.Empty() {
		return nil
	}

	// Validate everything before touching state.
	created := make(map[payment.Key]bool, len(cs.Created))
	for _, p := range cs.Created {
		k := p.Key()
		if _, exists := s.payments[k]; exists || created[k] {
			return fmt.Errorf("%w: %s", payment.ErrPaymentExists, k)
		}
		created[k] = true
	}
	for _, p := range cs.Updated {
		if _, exists := s.payments[p.Key()]; !exists && !created[p.Key()] {
			return fmt.Errorf("%w: %s", payment.ErrPaymentNotFound, p.Key())
		}
	}

	for _, e := range cs.Entries {
		s.entries[e.Key()] = *e
	}
	for _, k := range cs.Dropped {
		delete(s.entries, k)
	}
	for _, p := range cs.Created {
		s.payments[p.Key()] = p.Clone()
	}
	for _, p := range cs.Updated {
		s.payments[p.Key()] = p.Clone()
	}
	for _, k := range cs.Removed {
		delete(s.payments, k)
	}
	for _, m := range cs.Movements {
		s.movements = append(s.movements, *m)
	}
	if len(cs.Retracted) > 0 {
		retracted := make(map[string]bool, len(cs.Retracted))
		for _, mid := range cs.Retracted {
			retracted[mid.String()] = true
		}
		s.movements = slices.DeleteFunc(s.movements, func(m treasury.Movement) bool { return retracted[m.ID.String()] })
	}
	if cs.Roles != nil {
		s.roles = cs.Roles.Clone()
	}
	return nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

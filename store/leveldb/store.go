// Package leveldb is a durable embedded store.Store on goleveldb. Records are
// JSON encoded; every Commit is a single atomic write batch.
package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	db *ldb.DB
	// commitMu makes the existence checks in Commit and the batch write
	// one step with respect to other commits.
	commitMu sync.Mutex
}

// Open creates or opens a database directory at path.
func Open(path string) (*Store, error) {
	db, err := ldb.OpenFile(filepath.Clean(path), nil)
	if err != nil {
		return nil, fmt.Errorf("escrow/leveldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// ==================== Treasury ====================

func (s *Store) GetEntry(_ context.Context, key treasury.Key) (*treasury.Entry, error) {
	var e treasury.Entry
	if err := s.get(entryKey(key), &e); err != nil {
		if errors.Is(err, ldb.ErrNotFound) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEntries(_ context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	prefix := []byte(prefixEntry)
	if opts.Campaign != (common.Address{}) {
		prefix = []byte(prefixEntry + opts.Campaign.Hex() + "/")
	}

	result := make([]*treasury.Entry, 0)
	err := s.scan(prefix, func(raw []byte) error {
		var e treasury.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if opts.Matches(e) {
			result = append(result, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.Page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListMovements(_ context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error) {
	result := make([]*treasury.Movement, 0)
	err := s.scan([]byte(prefixMovement), func(raw []byte) error {
		var m treasury.Movement
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if opts.Matches(m) {
			result = append(result, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.Page(result, opts.Limit, opts.Offset), nil
}

// ==================== Payments ====================

func (s *Store) GetPayment(_ context.Context, key payment.Key) (*payment.Payment, error) {
	var p payment.Payment
	if err := s.get(paymentKey(key), &p); err != nil {
		if errors.Is(err, ldb.ErrNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	result := make([]*payment.Payment, 0)
	err := s.scan(paymentPrefix(campaign), func(raw []byte) error {
		var p payment.Payment
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, &p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.Page(result, opts.Limit, opts.Offset), nil
}

// ==================== Access ====================

func (s *Store) GetRoles(_ context.Context) (*access.State, error) {
	var state access.State
	if err := s.get([]byte(keyRoles), &state); err != nil && !errors.Is(err, ldb.ErrNotFound) {
		return nil, err
	}
	return &state, nil
}

// ==================== Commit ====================

func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	if cs.Empty() {
		return nil
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	batch := new(ldb.Batch)

	for _, e := range cs.Entries {
		if err := putJSON(batch, entryKey(e.Key()), e); err != nil {
			return err
		}
	}
	for _, k := range cs.Dropped {
		batch.Delete(entryKey(k))
	}

	created := make(map[string]bool, len(cs.Created))
	for _, p := range cs.Created {
		k := paymentKey(p.Key())
		exists, err := s.db.Has(k, nil)
		if err != nil {
			return err
		}
		if exists || created[string(k)] {
			return fmt.Errorf("%w: %s", payment.ErrPaymentExists, p.Key())
		}
		created[string(k)] = true
		if err := putJSON(batch, k, p); err != nil {
			return err
		}
	}

	for _, p := range cs.Updated {
		k := paymentKey(p.Key())
		exists, err := s.db.Has(k, nil)
		if err != nil {
			return err
		}
		if !exists && !created[string(k)] {
			return fmt.Errorf("%w: %s", payment.ErrPaymentNotFound, p.Key())
		}
		if err := putJSON(batch, k, p); err != nil {
			return err
		}
	}

	for _, k := range cs.Removed {
		batch.Delete(paymentKey(k))
	}

	for _, m := range cs.Movements {
		k := movementKey(m.At, m.ID)
		if err := putJSON(batch, k, m); err != nil {
			return err
		}
		batch.Put(movementIndexKey(m.ID), k)
	}

	for _, mid := range cs.Retracted {
		idx := movementIndexKey(mid)
		k, err := s.db.Get(idx, nil)
		switch {
		case errors.Is(err, ldb.ErrNotFound):
			continue
		case err != nil:
			return err
		}
		batch.Delete(k)
		batch.Delete(idx)
	}

	if cs.Roles != nil {
		if err := putJSON(batch, []byte(keyRoles), cs.Roles); err != nil {
			return err
		}
	}

	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// ==================== Core ====================

// Migrate is a no-op; the key layout needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	if errors.Is(err, ldb.ErrClosed) {
		return store.ErrClosed
	}
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Helpers ====================

func (s *Store) get(key []byte, v any) error {
	raw, err := s.db.Get(key, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (s *Store) scan(prefix []byte, fn func(raw []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func putJSON(batch *ldb.Batch, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("escrow/leveldb: encode %s: %w", key, err)
	}
	batch.Put(key, raw)
	return nil
}

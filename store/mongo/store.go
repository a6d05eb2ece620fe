// Package mongo implements store.Store on MongoDB through grove. Commit runs
// inside a multi-document session transaction, which requires a replica set
// or sharded deployment.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	escrowstore "github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
)

// Collection name constants.
const (
	colEntries   = "escrow_entries"
	colPayments  = "escrow_payments"
	colMovements = "escrow_movements"
	colRoles     = "escrow_roles"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all escrow collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("escrow/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryDocID(key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, treasury.ErrEntryNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) ListEntries(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	var models []entryModel

	filter := bson.M{}
	if opts.Campaign != (common.Address{}) {
		filter["campaign"] = opts.Campaign.Hex()
	}
	if opts.Currency != (common.Address{}) {
		filter["currency"] = opts.Currency.Hex()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "campaign", Value: 1}, {Key: "currency", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list entries: %w", err)
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

	filter := bson.M{}
	if opts.Campaign != (common.Address{}) {
		filter["campaign"] = opts.Campaign.Hex()
	}
	if opts.Currency != (common.Address{}) {
		filter["currency"] = opts.Currency.Hex()
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.Reference != "" {
		filter["reference"] = opts.Reference
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list movements: %w", err)
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
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentDocID(key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{"campaign": campaign.Hex()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "reference", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list payments: %w", err)
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
	var m rolesModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": rolesDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return &access.State{}, nil
		}
		return nil, fmt.Errorf("escrow/mongo: get roles: %w", err)
	}
	return fromRolesModel(&m), nil
}

// ==================== Commit ====================

func (s *Store) Commit(ctx context.Context, cs *escrowstore.Changeset) error {
	if cs.Empty() {
		return nil
	}

	client := s.mdb.Collection(colPayments).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("escrow/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.apply(ctx, cs)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", payment.ErrPaymentExists, err)
		}
		return err
	}
	return nil
}

func (s *Store) apply(ctx context.Context, cs *escrowstore.Changeset) error {
	upsert := options.UpdateOne().SetUpsert(true)

	entries := s.mdb.Collection(colEntries)
	for _, e := range cs.Entries {
		m := toEntryModel(e)
		_, err := entries.UpdateOne(ctx, bson.M{"_id": m.Key}, bson.M{
			"$set": bson.M{
				"campaign":   m.Campaign,
				"currency":   m.Currency,
				"available":  m.Available,
				"pending":    m.Pending,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}, upsert)
		if err != nil {
			return fmt.Errorf("escrow/mongo: upsert entry %s: %w", m.Key, err)
		}
	}
	for _, k := range cs.Dropped {
		if _, err := entries.DeleteOne(ctx, bson.M{"_id": entryDocID(k)}); err != nil {
			return fmt.Errorf("escrow/mongo: drop entry %s: %w", k, err)
		}
	}

	payments := s.mdb.Collection(colPayments)
	for _, p := range cs.Created {
		if _, err := payments.InsertOne(ctx, toPaymentModel(p)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", payment.ErrPaymentExists, p.Key())
			}
			return fmt.Errorf("escrow/mongo: insert payment %s: %w", p.Key(), err)
		}
	}
	for _, p := range cs.Updated {
		m := toPaymentModel(p)
		res, err := payments.ReplaceOne(ctx, bson.M{"_id": m.Key}, m)
		if err != nil {
			return fmt.Errorf("escrow/mongo: update payment %s: %w", p.Key(), err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s", payment.ErrPaymentNotFound, p.Key())
		}
	}
	for _, k := range cs.Removed {
		if _, err := payments.DeleteOne(ctx, bson.M{"_id": paymentDocID(k)}); err != nil {
			return fmt.Errorf("escrow/mongo: delete payment %s: %w", k, err)
		}
	}

	movements := s.mdb.Collection(colMovements)
	if len(cs.Movements) > 0 {
		docs := make([]any, len(cs.Movements))
		for i, m := range cs.Movements {
			docs[i] = toMovementModel(m)
		}
		if _, err := movements.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("escrow/mongo: insert movements: %w", err)
		}
	}
	if len(cs.Retracted) > 0 {
		ids := make([]string, len(cs.Retracted))
		for i, mid := range cs.Retracted {
			ids[i] = mid.String()
		}
		if _, err := movements.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return fmt.Errorf("escrow/mongo: retract movements: %w", err)
		}
	}

	if cs.Roles != nil {
		m := toRolesModel(cs.Roles)
		_, err := s.mdb.Collection(colRoles).ReplaceOne(ctx, bson.M{"_id": rolesDocID}, m,
			options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("escrow/mongo: write roles: %w", err)
		}
	}
	return nil
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all escrow collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "campaign", Value: 1}, {Key: "currency", Value: 1}}},
			{Keys: bson.D{{Key: "currency", Value: 1}}},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "campaign", Value: 1}, {Key: "reference", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "payment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "campaign", Value: 1}, {Key: "status", Value: 1}}},
		},
		colMovements: {
			{Keys: bson.D{{Key: "campaign", Value: 1}, {Key: "currency", Value: 1}, {Key: "at", Value: 1}}},
			{Keys: bson.D{{Key: "at", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
}

package treasury

import "context"

type Store interface {
	GetEntry(ctx context.Context, key Key) (*Entry, error)
	ListEntries(ctx context.Context, opts ListOpts) ([]*Entry, error)
	ListMovements(ctx context.Context, opts MovementOpts) ([]*Movement, error)
}

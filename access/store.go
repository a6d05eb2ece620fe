package access

import "context"

type Store interface {
	// GetRoles returns the persisted role state, or the zero State when
	// none has been written yet.
	GetRoles(ctx context.Context) (*State, error)
}

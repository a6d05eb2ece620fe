package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAdmin           = errors.New("escrow: caller is not the administrator")
	ErrNotOperator        = errors.New("escrow: caller is not an operator")
	ErrNotProgramCaller   = errors.New("escrow: must be from a smart contract")
	ErrAlreadyInitialised = errors.New("escrow: already initialised")
	ErrNotInitialised     = errors.New("escrow: access controller not initialised")
	ErrInvalidAddress     = errors.New("escrow: invalid address")
)

// Change describes a role mutation for hooks and audit.
type Change struct {
	Action  string         `json:"action"`
	Subject common.Address `json:"subject"`
	By      common.Address `json:"by"`
}

// IsZero reports whether c describes no change at all.
func (c Change) IsZero() bool { return c.Action == "" }

// Role change actions.
const (
	ActionInitialised        = "initialised"
	ActionOperatorGranted    = "operator_granted"
	ActionOperatorRevoked    = "operator_revoked"
	ActionIntegrationAdded   = "integration_added"
	ActionIntegrationRemoved = "integration_removed"
)

// Controller answers authorization questions against the installed role
// state. Mutations are computed against a snapshot and only become visible
// once the owner installs the result, which lets the engine persist the new
// state before anyone can act on it.
type Controller struct {
	mu    sync.RWMutex
	state State
}

// NewController returns an uninitialised controller.
func NewController() *Controller {
	return &Controller{}
}

// Load replaces the installed state with the persisted one.
func (c *Controller) Load(ctx context.Context, store Store) error {
	s, err := store.GetRoles(ctx)
	if err != nil {
		return fmt.Errorf("access: load roles: %w", err)
	}
	if s == nil {
		s = &State{}
	}
	c.Install(*s)
	return nil
}

// Snapshot returns a deep copy of the installed state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Install makes s the authoritative state.
func (c *Controller) Install(s State) {
	c.mu.Lock()
	c.state = s.Clone()
	c.mu.Unlock()
}

// Initialised reports whether an administrator has been set.
func (c *Controller) Initialised() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Initialised
}

// RequireAdmin fails unless caller is the administrator.
func (c *Controller) RequireAdmin(caller Caller) error {
	return c.Snapshot().RequireAdmin(caller)
}

// RequireOperator fails unless caller holds the operator role.
func (c *Controller) RequireOperator(caller Caller) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.Initialised {
		return ErrNotInitialised
	}
	if !c.state.IsOperator(caller.Address) {
		return fmt.Errorf("%w: %s", ErrNotOperator, caller.Address.Hex())
	}
	return nil
}

// RequireProgram fails unless caller is a program and is allow-listed as
// an integration. Accounts never pass, even when their address is listed.
func (c *Controller) RequireProgram(caller Caller) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if caller.Kind != KindProgram || !c.state.IsIntegration(caller.Address) {
		return fmt.Errorf("%w: %s", ErrNotProgramCaller, caller)
	}
	return nil
}

// RequireAdmin fails unless caller is the administrator of s.
func (s State) RequireAdmin(caller Caller) error {
	if !s.Initialised {
		return ErrNotInitialised
	}
	if s.Admin != caller.Address {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller.Address.Hex())
	}
	return nil
}

// Initialise sets the administrator. It succeeds exactly once.
func (s State) Initialise(admin common.Address, at time.Time) (State, Change, error) {
	if s.Initialised {
		return s, Change{}, ErrAlreadyInitialised
	}
	if admin == (common.Address{}) {
		return s, Change{}, fmt.Errorf("%w: empty administrator", ErrInvalidAddress)
	}
	next := s.Clone()
	next.Admin = admin
	next.Initialised = true
	next.UpdatedAt = at.UTC()
	return next, Change{Action: ActionInitialised, Subject: admin, By: admin}, nil
}

// GrantOperator adds who to the operator set. Granting an existing operator
// succeeds with a zero Change and leaves s untouched.
func (s State) GrantOperator(caller Caller, who common.Address, at time.Time) (State, Change, error) {
	return s.mutate(caller, who, at, ActionOperatorGranted, func(n *State) (changed bool) {
		n.Operators, changed = insert(n.Operators, who)
		return changed
	})
}

// RevokeOperator removes who from the operator set. Revoking an address
// that is not an operator succeeds with a zero Change.
func (s State) RevokeOperator(caller Caller, who common.Address, at time.Time) (State, Change, error) {
	return s.mutate(caller, who, at, ActionOperatorRevoked, func(n *State) (changed bool) {
		n.Operators, changed = remove(n.Operators, who)
		return changed
	})
}

// RegisterIntegration allow-lists program as a payment-creating integration.
func (s State) RegisterIntegration(caller Caller, program common.Address, at time.Time) (State, Change, error) {
	return s.mutate(caller, program, at, ActionIntegrationAdded, func(n *State) (changed bool) {
		n.Integrations, changed = insert(n.Integrations, program)
		return changed
	})
}

// RemoveIntegration drops program from the integration allow-list.
func (s State) RemoveIntegration(caller Caller, program common.Address, at time.Time) (State, Change, error) {
	return s.mutate(caller, program, at, ActionIntegrationRemoved, func(n *State) (changed bool) {
		n.Integrations, changed = remove(n.Integrations, program)
		return changed
	})
}

// mutate applies a role change to a copy of s. When apply reports no
// change, s is returned as is with a zero Change.
func (s State) mutate(caller Caller, subject common.Address, at time.Time, action string, apply func(*State) bool) (State, Change, error) {
	if err := s.RequireAdmin(caller); err != nil {
		return s, Change{}, err
	}
	if subject == (common.Address{}) {
		return s, Change{}, fmt.Errorf("%w: %s with empty subject", ErrInvalidAddress, action)
	}
	next := s.Clone()
	if !apply(&next) {
		return s, Change{}, nil
	}
	next.UpdatedAt = at.UTC()
	return next, Change{Action: action, Subject: subject, By: caller.Address}, nil
}

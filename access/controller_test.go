package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin    = common.HexToAddress("0xad")
	operator = common.HexToAddress("0x0b")
	program  = common.HexToAddress("0x9a")
	stranger = common.HexToAddress("0x57")
	now      = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

type staticStore struct {
	state *State
	err   error
}

func (s staticStore) GetRoles(context.Context) (*State, error) { return s.state, s.err }

func initialised(t *testing.T) State {
	t.Helper()
	s, change, err := State{}.Initialise(admin, now)
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if change.Action != ActionInitialised || change.Subject != admin {
		t.Errorf("unexpected change %+v", change)
	}
	return s
}

func TestInitialiseOnce(t *testing.T) {
	s := initialised(t)
	if !s.IsAdmin(admin) {
		t.Fatal("admin not set")
	}
	if _, _, err := s.Initialise(stranger, now); !errors.Is(err, ErrAlreadyInitialised) {
		t.Errorf("second initialise: got %v", err)
	}
	if s.Admin != admin {
		t.Error("second initialise changed the admin")
	}
	if _, _, err := (State{}).Initialise(common.Address{}, now); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("zero admin: got %v", err)
	}
}

func TestRoleMutationsRequireAdmin(t *testing.T) {
	s := initialised(t)

	tests := []struct {
		name string
		fn   func(State, Caller) (State, Change, error)
	}{
		{"grant", func(s State, c Caller) (State, Change, error) { return s.GrantOperator(c, operator, now) }},
		{"revoke", func(s State, c Caller) (State, Change, error) { return s.RevokeOperator(c, operator, now) }},
		{"register", func(s State, c Caller) (State, Change, error) { return s.RegisterIntegration(c, program, now) }},
		{"remove", func(s State, c Caller) (State, Change, error) { return s.RemoveIntegration(c, program, now) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.fn(s, Account(stranger)); !errors.Is(err, ErrNotAdmin) {
				t.Errorf("stranger: got %v, want ErrNotAdmin", err)
			}
			if _, _, err := tt.fn(State{}, Account(admin)); !errors.Is(err, ErrNotInitialised) {
				t.Errorf("uninitialised: got %v, want ErrNotInitialised", err)
			}
			if _, _, err := tt.fn(s, Account(admin)); err != nil {
				t.Errorf("admin: %v", err)
			}
		})
	}
}

func TestGrantRevoke(t *testing.T) {
	s := initialised(t)

	next, change, err := s.GrantOperator(Account(admin), operator, now)
	if err != nil {
		t.Fatal(err)
	}
	if change.Action != ActionOperatorGranted || change.By != admin {
		t.Errorf("unexpected change %+v", change)
	}
	if s.IsOperator(operator) {
		t.Error("grant mutated the original state")
	}
	if !next.IsOperator(operator) {
		t.Fatal("operator not granted")
	}
	if next.IsOperator(admin) {
		t.Error("admin must not be implicitly an operator")
	}

	again, _, err := next.GrantOperator(Account(admin), operator, now)
	if err != nil || len(again.Operators) != 1 {
		t.Errorf("re-grant: %v, %d operators", err, len(again.Operators))
	}

	revoked, _, err := next.RevokeOperator(Account(admin), operator, now)
	if err != nil {
		t.Fatal(err)
	}
	if revoked.IsOperator(operator) {
		t.Error("operator still present after revoke")
	}

	if _, _, err := s.GrantOperator(Account(admin), common.Address{}, now); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("grant zero address: got %v", err)
	}
}

func TestNoOpMutationsReportNoChange(t *testing.T) {
	s := initialised(t)
	s, _, err := s.GrantOperator(Account(admin), operator, now)
	if err != nil {
		t.Fatal(err)
	}
	s, _, err = s.RegisterIntegration(Account(admin), program, now)
	if err != nil {
		t.Fatal(err)
	}
	later := now.Add(time.Hour)

	tests := []struct {
		name string
		fn   func(State) (State, Change, error)
	}{
		{"grant existing", func(s State) (State, Change, error) { return s.GrantOperator(Account(admin), operator, later) }},
		{"revoke absent", func(s State) (State, Change, error) { return s.RevokeOperator(Account(admin), stranger, later) }},
		{"register existing", func(s State) (State, Change, error) { return s.RegisterIntegration(Account(admin), program, later) }},
		{"remove absent", func(s State) (State, Change, error) { return s.RemoveIntegration(Account(admin), stranger, later) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, change, err := tt.fn(s)
			if err != nil {
				t.Fatal(err)
			}
			if !change.IsZero() {
				t.Errorf("expected zero change, got %+v", change)
			}
			if !next.UpdatedAt.Equal(s.UpdatedAt) {
				t.Errorf("UpdatedAt moved to %s", next.UpdatedAt)
			}
			if len(next.Operators) != 1 || len(next.Integrations) != 1 {
				t.Errorf("sets changed: %d operators, %d integrations", len(next.Operators), len(next.Integrations))
			}
		})
	}

	_, change, err := s.RevokeOperator(Account(admin), operator, later)
	if err != nil || change.IsZero() {
		t.Errorf("real revoke: %v, %+v", err, change)
	}
}

func TestControllerChecks(t *testing.T) {
	s := initialised(t)
	s, _, _ = s.GrantOperator(Account(admin), operator, now)
	s, _, _ = s.RegisterIntegration(Account(admin), program, now)

	c := NewController()
	if err := c.RequireOperator(Account(operator)); !errors.Is(err, ErrNotInitialised) {
		t.Errorf("before install: got %v", err)
	}
	c.Install(s)

	if err := c.RequireAdmin(Account(admin)); err != nil {
		t.Errorf("admin: %v", err)
	}
	if err := c.RequireAdmin(Account(operator)); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("operator as admin: got %v", err)
	}
	if err := c.RequireOperator(Account(operator)); err != nil {
		t.Errorf("operator: %v", err)
	}
	if err := c.RequireOperator(Account(admin)); !errors.Is(err, ErrNotOperator) {
		t.Errorf("admin as operator: got %v", err)
	}

	if err := c.RequireProgram(Program(program)); err != nil {
		t.Errorf("registered program: %v", err)
	}
	if err := c.RequireProgram(Account(program)); !errors.Is(err, ErrNotProgramCaller) {
		t.Errorf("account at program address: got %v", err)
	}
	if err := c.RequireProgram(Program(stranger)); !errors.Is(err, ErrNotProgramCaller) {
		t.Errorf("unregistered program: got %v", err)
	}
}

func TestControllerSnapshotIsolation(t *testing.T) {
	s := initialised(t)
	c := NewController()
	c.Install(s)

	snap := c.Snapshot()
	snap.Operators = append(snap.Operators, stranger)
	if err := c.RequireOperator(Account(stranger)); err == nil {
		t.Error("mutating a snapshot leaked into the controller")
	}
}

func TestControllerLoad(t *testing.T) {
	s := initialised(t)
	c := NewController()

	if err := c.Load(context.Background(), staticStore{state: &s}); err != nil {
		t.Fatal(err)
	}
	if !c.Initialised() {
		t.Error("loaded state not installed")
	}

	if err := c.Load(context.Background(), staticStore{}); err != nil {
		t.Fatal(err)
	}
	if c.Initialised() {
		t.Error("nil state should reset the controller")
	}

	boom := errors.New("boom")
	if err := c.Load(context.Background(), staticStore{err: boom}); !errors.Is(err, boom) {
		t.Errorf("load error: got %v", err)
	}
}

func TestSetOrdering(t *testing.T) {
	var set []common.Address
	for _, a := range []common.Address{program, admin, operator, stranger} {
		set, _ = insert(set, a)
	}
	for i := 1; i < len(set); i++ {
		if compareAddr(set[i-1], set[i]) >= 0 {
			t.Fatalf("set not sorted: %v", set)
		}
	}
	if _, ok := remove(set, common.HexToAddress("0x01")); ok {
		t.Error("removed absent address")
	}
}

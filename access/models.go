// Package access implements administrator, operator and program-integration
// authorization for the escrow engine.
package access

import (
	"bytes"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies the origin of a call.
type Kind uint8

const (
	// KindAccount is an externally owned account acting directly.
	KindAccount Kind = iota
	// KindProgram is a deployed program, such as a voucher contract
	// instance, acting on its own behalf.
	KindProgram
)

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindProgram:
		return "program"
	default:
		return "unknown"
	}
}

// Caller is the authenticated identity behind an operation.
type Caller struct {
	Address common.Address `json:"address"`
	Kind    Kind           `json:"kind"`
}

// Account returns a caller acting as an externally owned account.
func Account(addr common.Address) Caller {
	return Caller{Address: addr, Kind: KindAccount}
}

// Program returns a caller acting as a deployed program.
func Program(addr common.Address) Caller {
	return Caller{Address: addr, Kind: KindProgram}
}

func (c Caller) String() string {
	return c.Kind.String() + ":" + c.Address.Hex()
}

// State is the persisted role assignment. The zero value is uninitialised.
type State struct {
	Admin        common.Address   `json:"admin"`
	Initialised  bool             `json:"initialised"`
	Operators    []common.Address `json:"operators,omitempty"`
	Integrations []common.Address `json:"integrations,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.Operators = slices.Clone(s.Operators)
	s.Integrations = slices.Clone(s.Integrations)
	return s
}

// IsAdmin reports whether addr is the administrator of an initialised state.
func (s State) IsAdmin(addr common.Address) bool {
	return s.Initialised && s.Admin == addr
}

// IsOperator reports whether addr holds the operator role.
func (s State) IsOperator(addr common.Address) bool {
	return contains(s.Operators, addr)
}

// IsIntegration reports whether addr is an allow-listed program integration.
func (s State) IsIntegration(addr common.Address) bool {
	return contains(s.Integrations, addr)
}

func compareAddr(a, b common.Address) int {
	return bytes.Compare(a[:], b[:])
}

func contains(set []common.Address, addr common.Address) bool {
	_, found := slices.BinarySearchFunc(set, addr, compareAddr)
	return found
}

// insert adds addr to the sorted set and reports whether it was absent.
func insert(set []common.Address, addr common.Address) ([]common.Address, bool) {
	i, found := slices.BinarySearchFunc(set, addr, compareAddr)
	if found {
		return set, false
	}
	return slices.Insert(set, i, addr), true
}

// remove deletes addr from the sorted set and reports whether it was present.
func remove(set []common.Address, addr common.Address) ([]common.Address, bool) {
	i, found := slices.BinarySearchFunc(set, addr, compareAddr)
	if !found {
		return set, false
	}
	return slices.Delete(set, i, i+1), true
}

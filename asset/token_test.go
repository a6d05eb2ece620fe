package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

var (
	alice   = common.HexToAddress("0xa11ce")
	bob     = common.HexToAddress("0xb0b")
	spender = common.HexToAddress("0x5e")
)

func balance(t *testing.T, tok *Token, addr common.Address) uint64 {
	t.Helper()
	b, err := tok.BalanceOf(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	return b.Uint256().Uint64()
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("USDC", 6)
	if err := tok.Mint(alice, types.NewAmount(100)); err != nil {
		t.Fatal(err)
	}

	if err := tok.Transfer(ctx, alice, bob, types.NewAmount(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if balance(t, tok, alice) != 60 || balance(t, tok, bob) != 40 {
		t.Errorf("balances: alice=%d bob=%d", balance(t, tok, alice), balance(t, tok, bob))
	}

	if err := tok.Transfer(ctx, alice, bob, types.NewAmount(61)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v", err)
	}
	if balance(t, tok, alice) != 60 {
		t.Error("failed transfer moved funds")
	}
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()
	tok := NewToken("USDC", 6)
	_ = tok.Mint(alice, types.NewAmount(100))

	if err := tok.TransferFrom(ctx, spender, alice, bob, types.NewAmount(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("without allowance: got %v", err)
	}

	tok.Approve(alice, spender, types.NewAmount(50))
	if err := tok.TransferFrom(ctx, spender, alice, bob, types.NewAmount(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(alice, spender); !got.Equal(types.NewAmount(20)) {
		t.Errorf("allowance: got %s, want 20", got)
	}
	if balance(t, tok, bob) != 30 {
		t.Errorf("bob: got %d", balance(t, tok, bob))
	}

	tok.Approve(alice, spender, types.NewAmount(500))
	if err := tok.TransferFrom(ctx, spender, alice, bob, types.NewAmount(80)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw with allowance: got %v", err)
	}
	if got := tok.Allowance(alice, spender); !got.Equal(types.NewAmount(500)) {
		t.Errorf("failed transfer consumed allowance: %s", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	addr := common.HexToAddress("0xcafe")
	tok := NewToken("DAI", 18)
	r.Register(addr, tok)

	got, err := r.Get(addr)
	if err != nil || got.Symbol() != "DAI" || got.Decimals() != 18 {
		t.Fatalf("get: %v %v", got, err)
	}
	if _, err := r.Get(bob); !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("unknown: got %v", err)
	}
	if len(r.Addresses()) != 1 {
		t.Errorf("addresses: %v", r.Addresses())
	}
}

package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

func TestBuildCommit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	campaign := common.HexToAddress("0xca")
	entry := treasury.NewEntry(treasury.Key{Campaign: campaign, Currency: common.HexToAddress("0xcc")}, now)
	p := payment.New(payment.Key{Campaign: campaign, Reference: "o-1"}, common.HexToAddress("0x1"),
		common.HexToAddress("0x2"), common.HexToAddress("0xcc"), 1, types.NewAmount(5), "", now)

	stmt, args, err := buildCommit(&store.Changeset{
		Entries:   []*treasury.Entry{&entry},
		Created:   []*payment.Payment{p},
		Movements: []*treasury.Movement{{ID: id.NewMovementID(), Kind: treasury.KindEscrow, At: now}},
		Roles:     &access.State{},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"w0 AS (INSERT INTO escrow_entries", "w1 AS (INSERT INTO escrow_payments",
		"w2 AS (INSERT INTO escrow_movements", "w3 AS (INSERT INTO escrow_roles", "(SELECT COUNT(*) FROM w3)"} {
		if !strings.Contains(stmt, want) {
			t.Errorf("statement missing %q:\n%s", want, stmt)
		}
	}
	if want := 6 + 14 + 9 + 1; len(args) != want {
		t.Errorf("args: got %d, want %d", len(args), want)
	}
	if !strings.Contains(stmt, "$30") || strings.Contains(stmt, "$31") {
		t.Errorf("placeholders do not match args:\n%s", stmt)
	}
}

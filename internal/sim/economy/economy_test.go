package economy

import (
	"testing"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

func testItems(t *testing.T) *catalogs.ItemCatalog {
	t.Helper()
	c, err := catalogs.Build(nil, []catalogs.ItemDef{
		{ID: "LOG", SellValue: 2},
		{ID: "ORE", SellValue: 3},
		{ID: "RING", SellValue: 100},
	}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return &c.Items
}

func TestProceedsMatchesApply(t *testing.T) {
	items := testItems(t)
	s := state.New(10)
	s, _ = s.WithItemAdded("LOG", 5)
	s, _ = s.WithItemAdded("ORE", 2)

	p := SellPolicy{Kind: SellAll}
	want := p.Proceeds(s, items)
	sold, sales := p.Apply(s, items)
	if sold.Gold != want {
		t.Fatalf("expected gold %d, got %d", want, sold.Gold)
	}
	if len(sales) != 2 || sold.Inventory.UsedSlots() != 0 {
		t.Fatalf("expected full liquidation, got %v slots=%d", sales, sold.Inventory.UsedSlots())
	}
	// Hypothetical proceeds must not touch the source state.
	if s.Gold != 0 || s.Count("LOG") != 5 {
		t.Fatalf("source state mutated")
	}
}

func TestSellAllExceptKeepsSet(t *testing.T) {
	items := testItems(t)
	s := state.New(10)
	s, _ = s.WithItemAdded("LOG", 5)
	s, _ = s.WithItemAdded("RING", 1)

	p := SellPolicy{Kind: SellAllExcept, Keep: map[string]bool{"RING": true}}
	sold, sales := p.Apply(s, items)
	if sold.Count("RING") != 1 {
		t.Fatalf("expected RING kept, got %d", sold.Count("RING"))
	}
	if len(sales) != 1 || sales[0].Item != "LOG" || sold.Gold != 10 {
		t.Fatalf("expected only LOG sold for 10, got %v gold=%d", sales, sold.Gold)
	}
}

func TestEffectiveCredits(t *testing.T) {
	items := testItems(t)
	s := state.New(10).WithGold(7)
	s, _ = s.WithItemAdded("ORE", 3)
	if got := EffectiveCredits(s, items); got != 16 {
		t.Fatalf("expected 16, got %d", got)
	}
}

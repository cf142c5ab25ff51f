// Package economy prices inventory and applies sell policies. A policy is
// consumed two ways: to compute hypothetical proceeds without touching state,
// and to execute a sale returning the new state.
package economy

import (
	"sort"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

type PolicyKind int

const (
	SellAll PolicyKind = iota + 1
	SellAllExcept
)

type SellPolicy struct {
	Kind PolicyKind `json:"kind"`
	// Keep lists item ids exempt from liquidation (SellAllExcept only).
	Keep map[string]bool `json:"keep,omitempty"`
}

type Sale struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
	Gold  int64  `json:"gold"`
}

func (p SellPolicy) sells(item string) bool {
	switch p.Kind {
	case SellAll:
		return true
	case SellAllExcept:
		return !p.Keep[item]
	default:
		return false
	}
}

// Proceeds computes what Apply would earn, without applying it.
func (p SellPolicy) Proceeds(s state.GameState, items *catalogs.ItemCatalog) int64 {
	var total int64
	for item, n := range s.Inventory.Stacks {
		if !p.sells(item) || n <= 0 {
			continue
		}
		total += items.ByID[item].SellValue * int64(n)
	}
	return total
}

// Apply liquidates every stack the policy allows, crediting gold. Stacks are
// visited in sorted order so the sale list is stable.
func (p SellPolicy) Apply(s state.GameState, items *catalogs.ItemCatalog) (state.GameState, []Sale) {
	ids := make([]string, 0, len(s.Inventory.Stacks))
	for item := range s.Inventory.Stacks {
		if p.sells(item) {
			ids = append(ids, item)
		}
	}
	sort.Strings(ids)

	var sales []Sale
	for _, item := range ids {
		n := s.Inventory.Count(item)
		if n <= 0 {
			continue
		}
		gold := items.ByID[item].SellValue * int64(n)
		next, ok := s.WithItemRemoved(item, n)
		if !ok {
			continue
		}
		s = next.WithGold(next.Gold + gold)
		sales = append(sales, Sale{Item: item, Count: n, Gold: gold})
	}
	return s, sales
}

// LiquidationValue prices the whole inventory at sell value.
func LiquidationValue(s state.GameState, items *catalogs.ItemCatalog) int64 {
	return SellPolicy{Kind: SellAll}.Proceeds(s, items)
}

// EffectiveCredits is gold plus what the inventory would fetch if sold.
func EffectiveCredits(s state.GameState, items *catalogs.ItemCatalog) int64 {
	return s.Gold + LiquidationValue(s, items)
}

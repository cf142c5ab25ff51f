package coupled

import (
	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// Watch observes state between produce/consume phases for opportunities worth
// replanning over. Watches never change state.
type Watch interface {
	Check(s state.GameState) (boundary.Boundary, bool)
}

// UnlockWatch fires when a skill crosses its plan-time level.
type UnlockWatch struct {
	Skill         string
	BaselineLevel int
}

func (w UnlockWatch) Check(s state.GameState) (boundary.Boundary, bool) {
	lvl := s.SkillLevel(w.Skill)
	if lvl > w.BaselineLevel {
		return boundary.UnexpectedUnlock{Skill: w.Skill, Level: lvl}, true
	}
	return nil, false
}

// UpgradeWatch fires when an unpurchased upgrade becomes affordable ahead of
// its planned slot.
type UpgradeWatch struct {
	Def catalogs.ShopDef
}

func (w UpgradeWatch) Check(s state.GameState) (boundary.Boundary, bool) {
	if s.Purchases[w.Def.ID] > 0 {
		return nil, false
	}
	if s.Gold >= w.Def.CostGold {
		return boundary.UpgradeAffordableEarly{PurchaseID: w.Def.ID}, true
	}
	return nil, false
}

func checkWatches(s state.GameState, watches []Watch) (boundary.Boundary, bool) {
	for _, w := range watches {
		if b, material := w.Check(s); material {
			return b, true
		}
	}
	return nil, false
}

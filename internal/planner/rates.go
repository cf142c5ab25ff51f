package planner

import (
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/rates"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// BuildRates computes the per-tick rate table for the current state. Drops
// contribute their expected value; locked actions still get per-action rates
// (a plan may schedule them past an unlock) but are excluded from the
// per-skill best.
func BuildRates(s state.GameState, cats *catalogs.Catalogs) rates.Table {
	t := rates.Table{
		XPPerTick:          map[string]float64{},
		ItemsPerTick:       map[string]map[string]float64{},
		BestSkillXPPerTick: map[string]float64{},
	}
	for id, def := range cats.Actions.ByID {
		dur := float64(def.DurationTicks)
		xpRate := float64(def.XP) / dur
		t.XPPerTick[id] = xpRate

		items := map[string]float64{}
		for _, out := range def.Outputs {
			items[out.Item] += float64(out.Count) / dur
		}
		for _, d := range def.Drops {
			items[d.Item] += d.Chance * float64(d.Count) / dur
		}
		for _, in := range def.Inputs {
			items[in.Item] -= float64(in.Count) / dur
		}
		t.ItemsPerTick[id] = items

		if s.Unlocked(def) && xpRate > t.BestSkillXPPerTick[def.Skill] {
			t.BestSkillXPPerTick[def.Skill] = xpRate
		}
	}
	return t
}

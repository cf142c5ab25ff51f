// Package rates carries the precomputed per-tick rate table the engine
// consumes for tick estimates. The planner (or any external ranker) computes
// it; the execution core only reads it.
package rates

type Table struct {
	// XPPerTick is expected skill XP per tick while an action runs.
	XPPerTick map[string]float64
	// ItemsPerTick is expected net yield of an item per tick per action.
	ItemsPerTick map[string]map[string]float64
	// BestSkillXPPerTick is the best known XP rate per skill across unlocked
	// actions, used when a wait is not pinned to one action.
	BestSkillXPPerTick map[string]float64
}

func (t Table) XPRate(actionID string) float64 {
	return t.XPPerTick[actionID]
}

func (t Table) ItemRate(actionID, item string) float64 {
	if m, ok := t.ItemsPerTick[actionID]; ok {
		return m[item]
	}
	return 0
}

func (t Table) SkillRate(skill string) float64 {
	return t.BestSkillXPPerTick[skill]
}

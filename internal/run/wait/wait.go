// Package wait defines the stopping conditions the consume-until driver runs
// against. A predicate answers three questions: is it satisfied, how far along
// is the run (a monotone stall metric), and roughly how many ticks remain.
package wait

import (
	"fmt"
	"math"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rates"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// TicksUnknown is returned when no rate is available to estimate with.
const TicksUnknown = 1 << 30

type WaitFor interface {
	IsSatisfied(s state.GameState) bool
	// FindSatisfied reports which predicate fired; composites return the
	// winning child so callers can see which branch ended the wait.
	FindSatisfied(s state.GameState) (WaitFor, bool)
	// Progress is a monotone non-decreasing stall metric under normal
	// operation of the waited-on action.
	Progress(s state.GameState) float64
	EstimateTicks(s state.GameState, r rates.Table) int
	Describe() string
}

// --- skill XP ---

type SkillXPAbove struct {
	Skill string
	XP    int64
	// ActionID, when set, pins the estimate to one action's XP rate.
	ActionID string
}

func (w SkillXPAbove) IsSatisfied(s state.GameState) bool {
	return s.SkillXP[w.Skill] >= w.XP
}

func (w SkillXPAbove) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w SkillXPAbove) Progress(s state.GameState) float64 {
	return float64(s.SkillXP[w.Skill])
}

func (w SkillXPAbove) EstimateTicks(s state.GameState, r rates.Table) int {
	remaining := w.XP - s.SkillXP[w.Skill]
	if remaining <= 0 {
		return 0
	}
	rate := r.SkillRate(w.Skill)
	if w.ActionID != "" {
		rate = r.XPRate(w.ActionID)
	}
	return estimate(float64(remaining), rate)
}

func (w SkillXPAbove) Describe() string {
	return fmt.Sprintf("skill %s xp >= %d", w.Skill, w.XP)
}

// SkillLevelAbove waits for a level instead of raw XP.
func SkillLevelAbove(skill string, level int, actionID string) SkillXPAbove {
	return SkillXPAbove{Skill: skill, XP: state.XPForLevel(level), ActionID: actionID}
}

// --- inventory ---

type InventoryAtLeast struct {
	Item     string
	Count    int
	ActionID string
}

func (w InventoryAtLeast) IsSatisfied(s state.GameState) bool {
	return s.Count(w.Item) >= w.Count
}

func (w InventoryAtLeast) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InventoryAtLeast) Progress(s state.GameState) float64 {
	return float64(s.Count(w.Item))
}

func (w InventoryAtLeast) EstimateTicks(s state.GameState, r rates.Table) int {
	remaining := w.Count - s.Count(w.Item)
	if remaining <= 0 {
		return 0
	}
	return estimate(float64(remaining), r.ItemRate(w.ActionID, w.Item))
}

func (w InventoryAtLeast) Describe() string {
	return fmt.Sprintf("inventory %s >= %d", w.Item, w.Count)
}

// InventoryDelta waits for the item count to grow by Delta over the baseline
// captured at construction.
type InventoryDelta struct {
	Item     string
	Baseline int
	Delta    int
	ActionID string
}

func NewInventoryDelta(s state.GameState, item string, delta int) InventoryDelta {
	return InventoryDelta{Item: item, Baseline: s.Count(item), Delta: delta}
}

func (w InventoryDelta) IsSatisfied(s state.GameState) bool {
	return s.Count(w.Item)-w.Baseline >= w.Delta
}

func (w InventoryDelta) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InventoryDelta) Progress(s state.GameState) float64 {
	return float64(s.Count(w.Item) - w.Baseline)
}

func (w InventoryDelta) EstimateTicks(s state.GameState, r rates.Table) int {
	remaining := w.Delta - (s.Count(w.Item) - w.Baseline)
	if remaining <= 0 {
		return 0
	}
	return estimate(float64(remaining), r.ItemRate(w.ActionID, w.Item))
}

func (w InventoryDelta) Describe() string {
	return fmt.Sprintf("inventory %s +%d over %d", w.Item, w.Delta, w.Baseline)
}

// InventoryPercentAbove fires when used slots cross a fraction of capacity.
type InventoryPercentAbove struct {
	Percent float64
}

func (w InventoryPercentAbove) IsSatisfied(s state.GameState) bool {
	cap := s.Inventory.Capacity
	if cap <= 0 {
		return true
	}
	return float64(s.Inventory.UsedSlots())/float64(cap) >= w.Percent
}

func (w InventoryPercentAbove) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InventoryPercentAbove) Progress(s state.GameState) float64 {
	return float64(s.Inventory.UsedSlots())
}

func (w InventoryPercentAbove) EstimateTicks(state.GameState, rates.Table) int {
	return TicksUnknown
}

func (w InventoryPercentAbove) Describe() string {
	return fmt.Sprintf("inventory >= %.0f%% of slots", w.Percent*100)
}

type InventoryFull struct{}

func (w InventoryFull) IsSatisfied(s state.GameState) bool {
	return s.Inventory.UsedSlots() >= s.Inventory.Capacity
}

func (w InventoryFull) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InventoryFull) Progress(s state.GameState) float64 {
	return float64(s.Inventory.UsedSlots())
}

func (w InventoryFull) EstimateTicks(state.GameState, rates.Table) int {
	return TicksUnknown
}

func (w InventoryFull) Describe() string { return "inventory full" }

// --- action inputs ---

// InputsDepleted fires when the action can no longer pay for one completion.
type InputsDepleted struct {
	Def catalogs.ActionDef
}

func (w InputsDepleted) IsSatisfied(s state.GameState) bool {
	return !s.HasInputs(w.Def)
}

func (w InputsDepleted) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InputsDepleted) Progress(s state.GameState) float64 {
	// Inputs deplete downward; negate so the metric rises toward the stop.
	var held int
	for _, in := range w.Def.Inputs {
		held += s.Count(in.Item)
	}
	return -float64(held)
}

func (w InputsDepleted) EstimateTicks(s state.GameState, r rates.Table) int {
	return TicksUnknown
}

func (w InputsDepleted) Describe() string {
	return fmt.Sprintf("inputs depleted for %s", w.Def.ID)
}

// InputsSufficient fires when the inputs cover Completions runs of the action.
type InputsSufficient struct {
	Def         catalogs.ActionDef
	Completions int
}

func (w InputsSufficient) IsSatisfied(s state.GameState) bool {
	for _, in := range w.Def.Inputs {
		if s.Count(in.Item) < in.Count*w.Completions {
			return false
		}
	}
	return true
}

func (w InputsSufficient) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w InputsSufficient) Progress(s state.GameState) float64 {
	var held int
	for _, in := range w.Def.Inputs {
		held += s.Count(in.Item)
	}
	return float64(held)
}

func (w InputsSufficient) EstimateTicks(s state.GameState, r rates.Table) int {
	return TicksUnknown
}

func (w InputsSufficient) Describe() string {
	return fmt.Sprintf("inputs for %d x %s", w.Completions, w.Def.ID)
}

// --- credits ---

// CreditsAtLeast waits on effective credits: gold plus liquidation value.
type CreditsAtLeast struct {
	Amount int64
	Items  *catalogs.ItemCatalog
}

func (w CreditsAtLeast) IsSatisfied(s state.GameState) bool {
	return economy.EffectiveCredits(s, w.Items) >= w.Amount
}

func (w CreditsAtLeast) FindSatisfied(s state.GameState) (WaitFor, bool) {
	return find(w, s)
}

func (w CreditsAtLeast) Progress(s state.GameState) float64 {
	return float64(economy.EffectiveCredits(s, w.Items))
}

func (w CreditsAtLeast) EstimateTicks(s state.GameState, r rates.Table) int {
	return TicksUnknown
}

func (w CreditsAtLeast) Describe() string {
	return fmt.Sprintf("effective credits >= %d", w.Amount)
}

// --- composite ---

// AnyOf fires when any child fires. Ties resolve by declaration order.
type AnyOf struct {
	Children []WaitFor
}

func (w AnyOf) IsSatisfied(s state.GameState) bool {
	for _, c := range w.Children {
		if c.IsSatisfied(s) {
			return true
		}
	}
	return false
}

func (w AnyOf) FindSatisfied(s state.GameState) (WaitFor, bool) {
	for _, c := range w.Children {
		if c.IsSatisfied(s) {
			return c, true
		}
	}
	return nil, false
}

func (w AnyOf) Progress(s state.GameState) float64 {
	var total float64
	for _, c := range w.Children {
		total += c.Progress(s)
	}
	return total
}

func (w AnyOf) EstimateTicks(s state.GameState, r rates.Table) int {
	best := TicksUnknown
	for _, c := range w.Children {
		if est := c.EstimateTicks(s, r); est < best {
			best = est
		}
	}
	return best
}

func (w AnyOf) Describe() string {
	out := "any of ["
	for i, c := range w.Children {
		if i > 0 {
			out += "; "
		}
		out += c.Describe()
	}
	return out + "]"
}

func find(w WaitFor, s state.GameState) (WaitFor, bool) {
	if w.IsSatisfied(s) {
		return w, true
	}
	return nil, false
}

func estimate(remaining, rate float64) int {
	if rate <= 0 {
		return TicksUnknown
	}
	return int(math.Ceil(remaining / rate))
}

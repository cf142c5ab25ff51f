// Package boundary defines the closed set of reasons execution pauses.
// Boundaries are routine online-planning values, not errors: every layer
// returns them upward untouched, and only the replanning driver reacts to
// the CausesReplan flag.
package boundary

import "fmt"

type Boundary interface {
	// IsExpected distinguishes normal online-planning events from defects.
	IsExpected() bool
	// CausesReplan reports whether the remaining plan must be discarded.
	CausesReplan() bool
	Describe() string
}

// --- expected, no replan ---

// WaitConditionSatisfied: the wait ended cleanly. Branch names the predicate
// that fired (composites report the winning child).
type WaitConditionSatisfied struct {
	Branch string
}

func (WaitConditionSatisfied) IsExpected() bool   { return true }
func (WaitConditionSatisfied) CausesReplan() bool { return false }
func (b WaitConditionSatisfied) Describe() string {
	return fmt.Sprintf("wait satisfied: %s", b.Branch)
}

type GoalReached struct{}

func (GoalReached) IsExpected() bool   { return true }
func (GoalReached) CausesReplan() bool { return false }
func (GoalReached) Describe() string   { return "goal reached" }

// Death is expected: hazardous actions kill occasionally and recovery
// restarts them.
type Death struct {
	ActionID  string
	LostItem  string
	LostCount int
}

func (Death) IsExpected() bool   { return true }
func (Death) CausesReplan() bool { return false }
func (b Death) Describe() string {
	if b.LostItem != "" {
		return fmt.Sprintf("died during %s, lost %dx %s", b.ActionID, b.LostCount, b.LostItem)
	}
	return fmt.Sprintf("died during %s", b.ActionID)
}

// --- expected, replan required ---

type InputsDepleted struct {
	ActionID string
	Item     string
}

func (InputsDepleted) IsExpected() bool   { return true }
func (InputsDepleted) CausesReplan() bool { return true }
func (b InputsDepleted) Describe() string {
	return fmt.Sprintf("inputs depleted for %s (missing %s)", b.ActionID, b.Item)
}

type InventoryFull struct{}

func (InventoryFull) IsExpected() bool   { return true }
func (InventoryFull) CausesReplan() bool { return true }
func (InventoryFull) Describe() string   { return "inventory full" }

// InventoryPressure is the soft form of InventoryFull: slots are nearly gone
// but nothing has been blocked yet.
type InventoryPressure struct {
	UsedSlots   int
	Capacity    int
	BlockedItem string
}

func (InventoryPressure) IsExpected() bool   { return true }
func (InventoryPressure) CausesReplan() bool { return true }
func (b InventoryPressure) Describe() string {
	if b.BlockedItem != "" {
		return fmt.Sprintf("inventory pressure %d/%d (blocked %s)", b.UsedSlots, b.Capacity, b.BlockedItem)
	}
	return fmt.Sprintf("inventory pressure %d/%d", b.UsedSlots, b.Capacity)
}

// UnexpectedUnlock: a level crossed earlier than the plan assumed, opening
// actions the plan did not rank.
type UnexpectedUnlock struct {
	Skill string
	Level int
}

func (UnexpectedUnlock) IsExpected() bool   { return true }
func (UnexpectedUnlock) CausesReplan() bool { return true }
func (b UnexpectedUnlock) Describe() string {
	return fmt.Sprintf("unlock observed: %s level %d", b.Skill, b.Level)
}

type UpgradeAffordableEarly struct {
	PurchaseID string
}

func (UpgradeAffordableEarly) IsExpected() bool   { return true }
func (UpgradeAffordableEarly) CausesReplan() bool { return true }
func (b UpgradeAffordableEarly) Describe() string {
	return fmt.Sprintf("upgrade affordable early: %s", b.PurchaseID)
}

// SegmentStopReason is the coarse pacing reason a planned segment ended.
type SegmentStopReason int

const (
	SegmentGoal SegmentStopReason = iota + 1
	SegmentHorizonCap
	SegmentInventoryPressure
	SegmentUnlockCrossed
)

func (r SegmentStopReason) String() string {
	switch r {
	case SegmentGoal:
		return "goal"
	case SegmentHorizonCap:
		return "horizon_cap"
	case SegmentInventoryPressure:
		return "inventory_pressure"
	case SegmentUnlockCrossed:
		return "unlock_crossed"
	default:
		return fmt.Sprintf("segment(%d)", int(r))
	}
}

// PlannedSegmentStop wraps a voluntary pacing stop the planner scheduled.
type PlannedSegmentStop struct {
	Reason SegmentStopReason
}

func (PlannedSegmentStop) IsExpected() bool   { return true }
func (PlannedSegmentStop) CausesReplan() bool { return true }
func (b PlannedSegmentStop) Describe() string {
	return fmt.Sprintf("planned segment stop: %s", b.Reason)
}

// --- errors, always replan ---

type CannotAfford struct {
	PurchaseID string
	Cost       int64
	Gold       int64
}

func (CannotAfford) IsExpected() bool   { return false }
func (CannotAfford) CausesReplan() bool { return true }
func (b CannotAfford) Describe() string {
	return fmt.Sprintf("cannot afford %s (cost %d, gold %d)", b.PurchaseID, b.Cost, b.Gold)
}

type ActionUnavailable struct {
	ActionID string
	Reason   string
}

func (ActionUnavailable) IsExpected() bool   { return false }
func (ActionUnavailable) CausesReplan() bool { return true }
func (b ActionUnavailable) Describe() string {
	return fmt.Sprintf("action %s unavailable: %s", b.ActionID, b.Reason)
}

type NoProgressPossible struct {
	Reason string
}

func (NoProgressPossible) IsExpected() bool   { return false }
func (NoProgressPossible) CausesReplan() bool { return true }
func (b NoProgressPossible) Describe() string {
	return fmt.Sprintf("no progress possible: %s", b.Reason)
}

// --- terminal guardrails, never replan ---

type ReplanLimitExceeded struct {
	Replans int
}

func (ReplanLimitExceeded) IsExpected() bool   { return true }
func (ReplanLimitExceeded) CausesReplan() bool { return false }
func (b ReplanLimitExceeded) Describe() string {
	return fmt.Sprintf("replan limit exceeded after %d replans", b.Replans)
}

type TimeBudgetExceeded struct {
	Ticks uint64
}

func (TimeBudgetExceeded) IsExpected() bool   { return true }
func (TimeBudgetExceeded) CausesReplan() bool { return false }
func (b TimeBudgetExceeded) Describe() string {
	return fmt.Sprintf("time budget exceeded at %d ticks", b.Ticks)
}

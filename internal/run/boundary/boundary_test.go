package boundary

import (
	"testing"

	"github.com/eseidel/better-idle-sub009/internal/sim/tick"
)

func TestTaxonomyFlags(t *testing.T) {
	cases := []struct {
		b        Boundary
		expected bool
		replans  bool
	}{
		{WaitConditionSatisfied{Branch: "x"}, true, false},
		{GoalReached{}, true, false},
		{Death{ActionID: "pickpocket"}, true, false},
		{InputsDepleted{ActionID: "burn_log", Item: "LOG"}, true, true},
		{InventoryFull{}, true, true},
		{InventoryPressure{UsedSlots: 9, Capacity: 10}, true, true},
		{UnexpectedUnlock{Skill: "woodcutting", Level: 20}, true, true},
		{UpgradeAffordableEarly{PurchaseID: "axe_iron"}, true, true},
		{PlannedSegmentStop{Reason: SegmentHorizonCap}, true, true},
		{CannotAfford{PurchaseID: "axe_iron"}, false, true},
		{ActionUnavailable{ActionID: "x"}, false, true},
		{NoProgressPossible{Reason: "stalled"}, false, true},
		{ReplanLimitExceeded{Replans: 25}, true, false},
		{TimeBudgetExceeded{Ticks: 1}, true, false},
	}
	for _, c := range cases {
		if c.b.IsExpected() != c.expected {
			t.Fatalf("%s: expected IsExpected=%v", c.b.Describe(), c.expected)
		}
		if c.b.CausesReplan() != c.replans {
			t.Fatalf("%s: expected CausesReplan=%v", c.b.Describe(), c.replans)
		}
	}
}

func TestFromStopTotal(t *testing.T) {
	if b, ok := FromStop(tick.StopStillRunning, "a", ""); ok || b != nil {
		t.Fatalf("still_running should not be a boundary, got %v", b)
	}
	b, ok := FromStop(tick.StopOutOfInputs, "burn_log", "LOG")
	if !ok {
		t.Fatalf("expected boundary")
	}
	if dep, isDep := b.(InputsDepleted); !isDep || dep.Item != "LOG" {
		t.Fatalf("expected InputsDepleted{LOG}, got %#v", b)
	}
	if b, _ := FromStop(tick.StopInventoryFull, "a", ""); b != (Boundary)(InventoryFull{}) {
		t.Fatalf("expected InventoryFull, got %#v", b)
	}
	if b, _ := FromStop(tick.StopDied, "pickpocket", ""); b.(Death).ActionID != "pickpocket" {
		t.Fatalf("expected Death{pickpocket}, got %#v", b)
	}
	if b, _ := FromStop(tick.StopReason(99), "a", ""); !b.CausesReplan() {
		t.Fatalf("unknown stop must force a replan, got %#v", b)
	}
}

func TestSegmentStopNeverCollapsesPacingToGoal(t *testing.T) {
	if _, isGoal := FromSegmentStop(SegmentGoal).(GoalReached); !isGoal {
		t.Fatalf("goal stop should map to GoalReached")
	}
	for _, r := range []SegmentStopReason{SegmentHorizonCap, SegmentInventoryPressure, SegmentUnlockCrossed} {
		b := FromSegmentStop(r)
		if _, isGoal := b.(GoalReached); isGoal {
			t.Fatalf("pacing stop %v collapsed into GoalReached", r)
		}
		if !b.CausesReplan() {
			t.Fatalf("pacing stop %v should replan", r)
		}
	}
}

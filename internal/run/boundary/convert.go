package boundary

import "github.com/eseidel/better-idle-sub009/internal/sim/tick"

// FromStop maps a structural stop reason to its boundary. The mapping is
// total: StopStillRunning yields (nil, false) because a running action is not
// a pause, and any unrecognized value becomes NoProgressPossible so callers
// always get a well-typed answer.
func FromStop(stop tick.StopReason, actionID, missingItem string) (Boundary, bool) {
	switch stop {
	case tick.StopStillRunning:
		return nil, false
	case tick.StopOutOfInputs:
		return InputsDepleted{ActionID: actionID, Item: missingItem}, true
	case tick.StopInventoryFull:
		return InventoryFull{}, true
	case tick.StopDied:
		return Death{ActionID: actionID}, true
	default:
		return NoProgressPossible{Reason: "unrecognized stop reason " + stop.String()}, true
	}
}

// FromSegmentStop maps a segment's coarse pacing reason to a boundary. Only a
// genuine goal stop becomes GoalReached; every voluntary pacing stop (horizon
// cap, inventory pressure, unlock crossed) stays a PlannedSegmentStop so the
// driver replans instead of declaring success.
func FromSegmentStop(reason SegmentStopReason) Boundary {
	if reason == SegmentGoal {
		return GoalReached{}
	}
	return PlannedSegmentStop{Reason: reason}
}

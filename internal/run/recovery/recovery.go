// Package recovery decides what happens after a boundary: retry in place,
// declare the wait complete, or hand the problem back to the replanner.
// Recovery is deliberately narrow; it never substitutes an alternate action.
package recovery

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

type Outcome int

const (
	RecoveredRetry Outcome = iota + 1
	Completed
	ReplanRequired
)

func (o Outcome) String() string {
	switch o {
	case RecoveredRetry:
		return "retry"
	case Completed:
		return "completed"
	case ReplanRequired:
		return "replan_required"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	State    state.GameState
	Outcome  Outcome
	Attempts int
	// Boundary carries the (possibly replaced) boundary when the outcome is
	// ReplanRequired, and the original otherwise.
	Boundary boundary.Boundary
	// Sales records liquidations performed during inventory recovery.
	Sales []economy.Sale
}

// Handle applies the per-boundary recovery decision. attempts is the count of
// penalized recoveries so far; maxAttempts is the ceiling. The rng is threaded
// for parity with every other engine entry point; current recovery paths are
// deterministic. Priority order matters and is covered by tests.
func Handle(s state.GameState, b boundary.Boundary, policy *economy.SellPolicy, items *catalogs.ItemCatalog, rng *rngx.RNG, attempts, maxAttempts int) Result {
	// Completion short-circuits even at the attempt ceiling.
	switch b.(type) {
	case boundary.WaitConditionSatisfied, boundary.GoalReached:
		return Result{State: s, Outcome: Completed, Attempts: attempts, Boundary: b}
	}

	if attempts >= maxAttempts {
		return Result{
			State:    s,
			Outcome:  ReplanRequired,
			Attempts: attempts,
			Boundary: boundary.NoProgressPossible{Reason: fmt.Sprintf("recovery attempts exhausted (%d)", attempts)},
		}
	}

	switch b.(type) {
	case boundary.InventoryFull:
		return recoverInventory(s, b, policy, items, attempts, true)
	case boundary.InventoryPressure:
		return recoverInventory(s, b, policy, items, attempts, false)
	case boundary.Death:
		// Deaths are absorbed without penalty; the caller restarts the action.
		return Result{State: s, Outcome: RecoveredRetry, Attempts: attempts, Boundary: b}
	case boundary.InputsDepleted,
		boundary.NoProgressPossible,
		boundary.UnexpectedUnlock,
		boundary.UpgradeAffordableEarly,
		boundary.PlannedSegmentStop,
		boundary.CannotAfford,
		boundary.ActionUnavailable,
		boundary.ReplanLimitExceeded,
		boundary.TimeBudgetExceeded:
		return Result{State: s, Outcome: ReplanRequired, Attempts: attempts, Boundary: b}
	default:
		return Result{State: s, Outcome: ReplanRequired, Attempts: attempts, Boundary: b}
	}
}

// recoverInventory handles both inventory boundaries. hard=true is
// InventoryFull (progress is blocked); hard=false is InventoryPressure, which
// is always the softer outcome: when selling can't help, pressure retries
// without penalty while full replans.
func recoverInventory(s state.GameState, b boundary.Boundary, policy *economy.SellPolicy, items *catalogs.ItemCatalog, attempts int, hard bool) Result {
	soften := func() Result {
		if hard {
			return Result{State: s, Outcome: ReplanRequired, Attempts: attempts, Boundary: b}
		}
		return Result{State: s, Outcome: RecoveredRetry, Attempts: attempts, Boundary: b}
	}

	if policy == nil {
		return soften()
	}
	if policy.Proceeds(s, items) <= 0 {
		return soften()
	}

	before := s.Inventory.UsedSlots()
	sold, sales := policy.Apply(s, items)
	if sold.Inventory.UsedSlots() >= before {
		// Sale went through but freed nothing; committed state moves forward.
		if hard {
			return Result{State: sold, Outcome: ReplanRequired, Attempts: attempts, Boundary: b, Sales: sales}
		}
		return Result{State: sold, Outcome: RecoveredRetry, Attempts: attempts, Boundary: b, Sales: sales}
	}
	return Result{State: sold, Outcome: RecoveredRetry, Attempts: attempts + 1, Boundary: b, Sales: sales}
}

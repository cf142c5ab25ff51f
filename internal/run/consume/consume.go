// Package consume drives the tick primitive until a wait predicate fires or
// the action stops structurally. It advances one completion at a time so
// predicate checks land exactly on completion edges, and it carries the stall
// and horizon guards that keep a bad wait from looping forever.
package consume

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
	"github.com/eseidel/better-idle-sub009/internal/sim/tick"
)

type Guards struct {
	// StallIterations aborts after this many consecutive zero-tick loops.
	StallIterations int
	// HorizonTicks aborts when this many ticks pass with no increase in the
	// predicate's progress metric since loop entry.
	HorizonTicks int
}

func DefaultGuards() Guards {
	return Guards{StallIterations: 3, HorizonTicks: 60000}
}

type Result struct {
	State  state.GameState
	Ticks  int
	Deaths int
	// Boundary is nil on clean satisfaction, except for the idempotent case:
	// a predicate already satisfied at entry reports WaitConditionSatisfied
	// with zero ticks.
	Boundary boundary.Boundary
	// Satisfied is the predicate branch that fired, when one did.
	Satisfied wait.WaitFor
}

// Run switches to actionID (starting it if needed) and loops the primitive
// until w fires or the action stops for a structural reason. Death never ends
// the loop: the same action restarts and the death count accumulates.
func Run(s state.GameState, actionID string, w wait.WaitFor, g Guards, cats *catalogs.Catalogs, rng *rngx.RNG) Result {
	if branch, ok := w.FindSatisfied(s); ok {
		return Result{
			State:     s,
			Boundary:  boundary.WaitConditionSatisfied{Branch: branch.Describe()},
			Satisfied: branch,
		}
	}

	def, ok := cats.Actions.Action(actionID)
	if !ok {
		return Result{State: s, Boundary: boundary.ActionUnavailable{ActionID: actionID, Reason: "not in catalog"}}
	}
	if !s.Unlocked(def) {
		return Result{State: s, Boundary: boundary.ActionUnavailable{
			ActionID: actionID,
			Reason:   fmt.Sprintf("requires %s level %d", def.Skill, def.LevelRequired),
		}}
	}

	res := Result{State: s}
	if b := ensureActive(&res, def, rng); b != nil {
		res.Boundary = b
		return res
	}

	entryProgress := w.Progress(res.State)
	zeroRuns := 0

	for {
		budget := res.State.Active.DurationTicks - res.State.Active.ProgressTicks
		tr, err := tick.Advance(res.State, budget, cats, rng)
		if err != nil {
			res.Boundary = boundary.NoProgressPossible{Reason: err.Error()}
			return res
		}
		res.State = tr.State
		res.Ticks += tr.TicksUsed
		res.Deaths += tr.Deaths

		if branch, ok := w.FindSatisfied(res.State); ok {
			res.Satisfied = branch
			return res
		}

		if b, stopped := boundary.FromStop(tr.Stop, def.ID, missingInput(res.State, def)); stopped {
			if _, died := b.(boundary.Death); died {
				// Auto-restart after death; only a structural blocker ends it.
				if restart := ensureActive(&res, def, rng); restart != nil {
					res.Boundary = restart
					return res
				}
				continue
			}
			res.Boundary = b
			return res
		}

		if tr.TicksUsed == 0 {
			zeroRuns++
			if zeroRuns >= g.StallIterations {
				res.Boundary = boundary.NoProgressPossible{
					Reason: fmt.Sprintf("%d zero-tick iterations waiting for %s", zeroRuns, w.Describe()),
				}
				return res
			}
		} else {
			zeroRuns = 0
		}

		if g.HorizonTicks > 0 && res.Ticks >= g.HorizonTicks && w.Progress(res.State) <= entryProgress {
			res.Boundary = boundary.NoProgressPossible{
				Reason: fmt.Sprintf("no progress after %d ticks waiting for %s", res.Ticks, w.Describe()),
			}
			return res
		}
	}
}

// ensureActive starts def when it is not already the active action. A nil
// return means the action is running.
func ensureActive(res *Result, def catalogs.ActionDef, rng *rngx.RNG) boundary.Boundary {
	if res.State.Active != nil && res.State.Active.ActionID == def.ID {
		return nil
	}
	if !res.State.HasInputs(def) {
		item, _ := res.State.MissingInput(def)
		return boundary.InputsDepleted{ActionID: def.ID, Item: item}
	}
	if !res.State.CanHoldOutputs(def) {
		return boundary.InventoryFull{}
	}
	res.State = res.State.WithActive(def.ID, rng.Jitter(def.DurationTicks, def.JitterTicks))
	return nil
}

func missingInput(s state.GameState, def catalogs.ActionDef) string {
	item, _ := s.MissingInput(def)
	return item
}

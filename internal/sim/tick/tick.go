// Package tick advances the active action by a tick budget, resolving as many
// completions as the budget covers. It is the only code that rolls drops,
// grants XP or rerolls durations; everything above it works in whole
// completions and boundaries.
package tick

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// StopReason is the structural reason Advance stopped consuming budget.
type StopReason int

const (
	// StopStillRunning: budget exhausted, the action remains active.
	StopStillRunning StopReason = iota + 1
	// StopOutOfInputs: inputs could not cover another completion; action cleared.
	StopOutOfInputs
	// StopInventoryFull: an output had no slot to land in; action cleared.
	StopInventoryFull
	// StopDied: the hazard roll killed the player; action cleared but restartable.
	StopDied
)

func (r StopReason) String() string {
	switch r {
	case StopStillRunning:
		return "still_running"
	case StopOutOfInputs:
		return "out_of_inputs"
	case StopInventoryFull:
		return "inventory_full"
	case StopDied:
		return "died"
	default:
		return fmt.Sprintf("stop(%d)", int(r))
	}
}

// Change is one entry in the side-channel log of what a completion did.
type Change struct {
	Kind  string `json:"kind"` // "item", "skill_xp", "mastery_xp"
	ID    string `json:"id"`
	Delta int64  `json:"delta"`
}

type Result struct {
	State       state.GameState
	TicksUsed   int
	Completions int
	Deaths      int
	Stop        StopReason
	Changes     []Change
}

// SkillMasteryShare is the fraction of the action-level mastery gain credited
// to the skill-wide mastery pool, minimum 1 XP per completion.
const SkillMasteryShare = 4 // divisor: 25%

// Advance runs the active action for at most budget ticks. A zero budget or an
// idle state is a no-op reported as StopStillRunning. A returned error means a
// defect (active action missing from the catalog), never a gameplay outcome.
func Advance(s state.GameState, budget int, cats *catalogs.Catalogs, rng *rngx.RNG) (Result, error) {
	res := Result{State: s, Stop: StopStillRunning}
	if budget <= 0 || s.Active == nil {
		return res, nil
	}
	def, ok := cats.Actions.Action(s.Active.ActionID)
	if !ok {
		return res, fmt.Errorf("active action %q not in catalog", s.Active.ActionID)
	}

	for budget > 0 {
		active := res.State.Active
		remaining := active.DurationTicks - active.ProgressTicks
		if remaining > budget {
			res.State = res.State.WithProgress(active.ProgressTicks+budget, active.DurationTicks)
			res.TicksUsed += budget
			res.Stop = StopStillRunning
			return res, nil
		}

		res.TicksUsed += remaining
		budget -= remaining

		stop, done := completeOnce(&res, def, rng)
		if done {
			res.Stop = stop
			return res, nil
		}

		// Restart check: clear when another completion is structurally illegal.
		if !res.State.HasInputs(def) {
			res.State = res.State.WithActiveCleared()
			res.Stop = StopOutOfInputs
			return res, nil
		}
		if !res.State.CanHoldOutputs(def) {
			res.State = res.State.WithActiveCleared()
			res.Stop = StopInventoryFull
			return res, nil
		}
		next := rng.Jitter(def.DurationTicks, def.JitterTicks)
		res.State = res.State.WithActive(def.ID, next)
	}
	res.Stop = StopStillRunning
	return res, nil
}

// completeOnce applies one completion: inputs, outputs, drops, XP, hazard.
// done=true means the stop reason ends this Advance call.
func completeOnce(res *Result, def catalogs.ActionDef, rng *rngx.RNG) (StopReason, bool) {
	// Inputs first; consumption may free the slots outputs need.
	for _, in := range def.Inputs {
		next, ok := res.State.WithItemRemoved(in.Item, in.Count)
		if !ok {
			res.State = res.State.WithActiveCleared()
			return StopOutOfInputs, true
		}
		res.State = next
		res.Changes = append(res.Changes, Change{Kind: "item", ID: in.Item, Delta: -int64(in.Count)})
	}

	for _, out := range def.Outputs {
		next, ok := res.State.WithItemAdded(out.Item, out.Count)
		if !ok {
			res.State = res.State.WithActiveCleared()
			return StopInventoryFull, true
		}
		res.State = next
		res.Changes = append(res.Changes, Change{Kind: "item", ID: out.Item, Delta: int64(out.Count)})
	}

	// Drops are independent rolls. Every drop's chance is drawn even when a
	// prior add failed, keeping the draw stream aligned across replays.
	blocked := false
	for _, d := range def.Drops {
		if !rng.Chance(d.Chance) {
			continue
		}
		next, ok := res.State.WithItemAdded(d.Item, d.Count)
		if !ok {
			blocked = true
			continue
		}
		res.State = next
		res.Changes = append(res.Changes, Change{Kind: "item", ID: d.Item, Delta: int64(d.Count)})
	}

	res.State = res.State.WithSkillXPAdded(def.Skill, int64(def.XP))
	res.Changes = append(res.Changes, Change{Kind: "skill_xp", ID: def.Skill, Delta: int64(def.XP)})

	actionMastery := int64(def.XP)
	skillMastery := actionMastery / SkillMasteryShare
	if skillMastery < 1 {
		skillMastery = 1
	}
	res.State = res.State.WithMasteryXPAdded(def.ID, actionMastery)
	res.State = res.State.WithMasteryXPAdded(def.Skill, skillMastery)
	res.Changes = append(res.Changes,
		Change{Kind: "mastery_xp", ID: def.ID, Delta: actionMastery},
		Change{Kind: "mastery_xp", ID: def.Skill, Delta: skillMastery},
	)

	res.Completions++

	if rng.Chance(def.DeathChance) {
		res.Deaths++
		res.State = res.State.WithActiveCleared()
		return StopDied, true
	}
	if blocked {
		res.State = res.State.WithActiveCleared()
		return StopInventoryFull, true
	}
	return StopStillRunning, false
}

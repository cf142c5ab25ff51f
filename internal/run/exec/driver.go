package exec

import (
	"context"
	"log"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// Planner produces the next plan from the current state. last is the boundary
// that ended the previous plan (nil on the first call and after a plan that
// ran to completion). done=true means the goal is already satisfied.
type Planner interface {
	NextPlan(s state.GameState, last boundary.Boundary) (*Plan, bool, error)
}

// ReplanEvent records one replanning decision.
type ReplanEvent struct {
	Replans     int    `json:"replans"`
	PlanID      string `json:"plan_id"`
	StepIndex   int    `json:"step_index"`
	Trigger     string `json:"trigger"`
	Ticks       int    `json:"ticks"`
	StateDigest string `json:"state_digest"`
}

// Driver loops plan execution and replanning until the goal is reached or a
// guardrail trips.
type Driver struct {
	Planner  Planner
	Cats     *catalogs.Catalogs
	RNG      *rngx.RNG
	Fallback *economy.SellPolicy
	Cfg      Config

	// MaxReplans ends the run when exceeded; zero means no limit.
	MaxReplans int
	// MaxTotalTicks caps simulated time across all plans; zero means no cap.
	MaxTotalTicks uint64

	Hooks    Hooks
	OnReplan func(ev ReplanEvent)
	Logger   *log.Logger
}

type DriveResult struct {
	State   state.GameState
	Ticks   int
	Deaths  int
	Replans int
	Sales   []economy.Sale
	Events  []ReplanEvent
	// Boundary is the terminal outcome: GoalReached on success, a guardrail
	// or error boundary otherwise.
	Boundary boundary.Boundary
}

// Run drives plans until a terminal boundary. The context is checked between
// plans; cancellation returns the partial result with ctx.Err().
func (d *Driver) Run(ctx context.Context, s state.GameState) (DriveResult, error) {
	res := DriveResult{State: s}
	var last boundary.Boundary

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		plan, done, err := d.Planner.NextPlan(res.State, last)
		if err != nil {
			res.Boundary = boundary.NoProgressPossible{Reason: err.Error()}
			return res, nil
		}
		if done {
			res.Boundary = boundary.GoalReached{}
			return res, nil
		}

		pr := ExecutePlan(res.State, plan, d.Fallback, d.Cats, d.RNG, d.Cfg, d.Hooks)
		res.State = pr.State
		res.Ticks += pr.Ticks
		res.Deaths += pr.Deaths
		res.Sales = append(res.Sales, pr.Sales...)

		if d.MaxTotalTicks > 0 && uint64(res.Ticks) >= d.MaxTotalTicks {
			res.Boundary = boundary.TimeBudgetExceeded{Ticks: uint64(res.Ticks)}
			return res, nil
		}

		if pr.Boundary == nil {
			// Plan ran out of steps; ask the planner what comes next.
			last = nil
			continue
		}
		if !pr.Boundary.CausesReplan() {
			// A no-replan stop from inside the plan (a goal marker) ends the run.
			res.Boundary = pr.Boundary
			return res, nil
		}

		res.Replans++
		ev := ReplanEvent{
			Replans:     res.Replans,
			PlanID:      plan.ID,
			StepIndex:   pr.StepIndex,
			Trigger:     pr.Boundary.Describe(),
			Ticks:       res.Ticks,
			StateDigest: res.State.Digest(),
		}
		res.Events = append(res.Events, ev)
		if d.OnReplan != nil {
			d.OnReplan(ev)
		}
		if d.Logger != nil {
			d.Logger.Printf("replan %d after step %d of %s: %s (tick %d)",
				ev.Replans, ev.StepIndex, ev.PlanID, ev.Trigger, ev.Ticks)
		}

		if d.MaxReplans > 0 && res.Replans > d.MaxReplans {
			res.Boundary = boundary.ReplanLimitExceeded{Replans: res.Replans}
			return res, nil
		}
		last = pr.Boundary
	}
}

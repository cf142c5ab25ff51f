package exec

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/consume"
	"github.com/eseidel/better-idle-sub009/internal/run/coupled"
	"github.com/eseidel/better-idle-sub009/internal/run/recovery"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
	"github.com/eseidel/better-idle-sub009/internal/sim/tuning"
)

type Config struct {
	Guards      consume.Guards
	MaxAttempts int
	PressurePct float64
	StallCycles int
}

func DefaultConfig() Config {
	return Config{Guards: consume.DefaultGuards(), MaxAttempts: 3, PressurePct: 0.90, StallCycles: 3}
}

func ConfigFromTuning(tn tuning.Tuning) Config {
	return Config{
		Guards: consume.Guards{
			StallIterations: tn.StallIterations,
			HorizonTicks:    tn.NoProgressHorizon,
		},
		MaxAttempts: tn.MaxRecoveryTries,
		PressurePct: tn.InventoryPressurePct,
		StallCycles: tn.StallIterations,
	}
}

// ProgressEvent is emitted after every executed step.
type ProgressEvent struct {
	PlanID      string `json:"plan_id"`
	StepIndex   int    `json:"step_index"`
	StepKind    string `json:"step_kind"`
	Label       string `json:"label,omitempty"`
	Ticks       int    `json:"ticks"`
	TotalTicks  int    `json:"total_ticks"`
	Deaths      int    `json:"deaths"`
	Gold        int64  `json:"gold"`
	StateDigest string `json:"state_digest"`
	Boundary    string `json:"boundary,omitempty"`
}

// Hooks receive execution telemetry. Nil fields are skipped.
type Hooks struct {
	OnProgress func(ev ProgressEvent)
	OnBoundary func(stepIndex int, b boundary.Boundary, s state.GameState)
}

func (h Hooks) progress(ev ProgressEvent) {
	if h.OnProgress != nil {
		h.OnProgress(ev)
	}
}

func (h Hooks) boundary(i int, b boundary.Boundary, s state.GameState) {
	if h.OnBoundary != nil {
		h.OnBoundary(i, b, s)
	}
}

type StepResult struct {
	State    state.GameState
	Ticks    int
	Deaths   int
	Boundary boundary.Boundary
	Attempts int
	Sales    []economy.Sale
}

// BoundaryRecord is one entry of a plan's boundary history.
type BoundaryRecord struct {
	StepIndex int
	Boundary  boundary.Boundary
}

type PlanResult struct {
	State  state.GameState
	Ticks  int
	Deaths int
	Sales  []economy.Sale
	// Boundary is nil when every step ran to completion.
	Boundary boundary.Boundary
	// StepIndex is where execution stopped when Boundary is non-nil.
	StepIndex int
	History   []BoundaryRecord
}

// ExecutePlan runs steps in order until one ends on a boundary that requires
// replanning, or a goal marker declares the run complete. Expected no-replan
// boundaries (a satisfied wait, an absorbed death) never stop the plan.
func ExecutePlan(s state.GameState, p *Plan, fallback *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config, hooks Hooks) PlanResult {
	res := PlanResult{State: s, StepIndex: -1}
	for i, step := range p.Steps {
		policy := p.PolicyFor(i, fallback)
		sr := ExecuteStep(res.State, step, policy, cats, rng, cfg)
		res.State = sr.State
		res.Ticks += sr.Ticks
		res.Deaths += sr.Deaths
		res.Sales = append(res.Sales, sr.Sales...)

		ev := ProgressEvent{
			PlanID:      p.ID,
			StepIndex:   i,
			StepKind:    string(step.Kind),
			Label:       step.Label,
			Ticks:       sr.Ticks,
			TotalTicks:  res.Ticks,
			Deaths:      res.Deaths,
			Gold:        res.State.Gold,
			StateDigest: res.State.Digest(),
		}
		if sr.Boundary != nil {
			ev.Boundary = sr.Boundary.Describe()
			res.History = append(res.History, BoundaryRecord{StepIndex: i, Boundary: sr.Boundary})
			hooks.boundary(i, sr.Boundary, res.State)
		}
		hooks.progress(ev)

		if sr.Boundary != nil && sr.Boundary.CausesReplan() {
			res.Boundary = sr.Boundary
			res.StepIndex = i
			return res
		}
		if _, goal := sr.Boundary.(boundary.GoalReached); goal {
			// A goal marker ends the plan; later steps never run.
			res.Boundary = sr.Boundary
			res.StepIndex = i
			return res
		}
	}
	return res
}

// ExecuteStep dispatches one step. The returned boundary is nil on clean
// completion.
func ExecuteStep(s state.GameState, step Step, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) StepResult {
	switch step.Kind {
	case StepSegment:
		// Markers carry policy scope; a scheduled stop reason ends the plan.
		if step.Stop != 0 {
			return StepResult{State: s, Boundary: boundary.FromSegmentStop(step.Stop)}
		}
		return StepResult{State: s}
	case StepBuy:
		return executeBuy(s, step, cats)
	case StepSell:
		return executeSell(s, policy, cats)
	case StepWait:
		return executeWait(s, step, policy, cats, rng, cfg)
	case StepMacro:
		return executeMacro(s, step, policy, cats, rng, cfg)
	default:
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{
			Reason: fmt.Sprintf("unknown step kind %q", step.Kind),
		}}
	}
}

func executeBuy(s state.GameState, step Step, cats *catalogs.Catalogs) StepResult {
	def, ok := cats.Shop.Upgrade(step.PurchaseID)
	if !ok {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{
			Reason: fmt.Sprintf("upgrade %q not in catalog", step.PurchaseID),
		}}
	}
	if def.Skill != "" && s.SkillLevel(def.Skill) < def.LevelRequired {
		return StepResult{State: s, Boundary: boundary.ActionUnavailable{
			ActionID: def.ID,
			Reason:   fmt.Sprintf("requires %s level %d", def.Skill, def.LevelRequired),
		}}
	}
	if s.Gold < def.CostGold {
		return StepResult{State: s, Boundary: boundary.CannotAfford{
			PurchaseID: def.ID, Cost: def.CostGold, Gold: s.Gold,
		}}
	}
	s = s.WithGold(s.Gold - def.CostGold).WithPurchase(def.ID)
	return StepResult{State: s}
}

func executeSell(s state.GameState, policy *economy.SellPolicy, cats *catalogs.Catalogs) StepResult {
	if policy == nil {
		return StepResult{State: s}
	}
	next, sales := policy.Apply(s, &cats.Items)
	return StepResult{State: next, Sales: sales}
}

func executeWait(s state.GameState, step Step, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) StepResult {
	if step.Until == nil {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{
			Reason: fmt.Sprintf("wait step for %s has no predicate", step.ActionID),
		}}
	}
	primary, err := step.Until.Compile(step.ActionID, cats)
	if err != nil {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{Reason: err.Error()}}
	}

	res := StepResult{State: s}
	w := wait.WaitFor(primary)
	if policy != nil {
		// Sell before the bag blocks the action instead of waiting for full.
		w = wait.AnyOf{Children: []wait.WaitFor{primary, wait.InventoryPercentAbove{Percent: cfg.PressurePct}}}
	}
	for {
		cr := consume.Run(res.State, step.ActionID, w, cfg.Guards, cats, rng)
		res.State = cr.State
		res.Ticks += cr.Ticks
		res.Deaths += cr.Deaths

		var b boundary.Boundary
		switch cr.Boundary.(type) {
		case nil, boundary.WaitConditionSatisfied:
			// The primary predicate may itself be a percent wait, so the fired
			// branch is settled against the live state, not by predicate type.
			if primary.IsSatisfied(res.State) {
				return res
			}
			b = boundary.InventoryPressure{
				UsedSlots: res.State.Inventory.UsedSlots(),
				Capacity:  res.State.Inventory.Capacity,
			}
		case boundary.InventoryFull:
			b = cr.Boundary
		default:
			res.Boundary = cr.Boundary
			return res
		}

		rec := recovery.Handle(res.State, b, policy, &cats.Items, rng, res.Attempts, cfg.MaxAttempts)
		res.State = rec.State
		res.Attempts = rec.Attempts
		res.Sales = append(res.Sales, rec.Sales...)
		if rec.Outcome != recovery.RecoveredRetry {
			res.Boundary = rec.Boundary
			return res
		}
	}
}

func executeMacro(s state.GameState, step Step, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) StepResult {
	if step.Macro == nil {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{Reason: "macro step has no macro"}}
	}
	if step.Until == nil {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{
			Reason: fmt.Sprintf("macro step for %s has no predicate", step.Macro.ConsumeActionID),
		}}
	}
	primary, err := step.Until.Compile(step.Macro.ConsumeActionID, cats)
	if err != nil {
		return StepResult{State: s, Boundary: boundary.NoProgressPossible{Reason: err.Error()}}
	}
	ccfg := coupled.Config{
		Guards:      cfg.Guards,
		MaxAttempts: cfg.MaxAttempts,
		PressurePct: cfg.PressurePct,
		StallCycles: cfg.StallCycles,
	}
	cr := coupled.Run(s, *step.Macro, primary, step.Watches, policy, cats, rng, ccfg)
	return StepResult{
		State:    cr.State,
		Ticks:    cr.Ticks,
		Deaths:   cr.Deaths,
		Boundary: cr.Boundary,
		Attempts: cr.Attempts,
		Sales:    cr.Sales,
	}
}

// Package coupled trains a consuming skill by alternating buffered production
// and consumption. Every action id is planner-fixed: the consuming action,
// the per-input producer map, and whatever the chain resolver derives for
// multi-tier inputs. No runtime action search happens here, which keeps
// execution traces reproducible.
package coupled

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/chain"
	"github.com/eseidel/better-idle-sub009/internal/run/consume"
	"github.com/eseidel/better-idle-sub009/internal/run/recovery"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// Macro carries the planner-fixed fields. All three are required; execution
// fails fast with NoProgressPossible when one is absent.
type Macro struct {
	ConsumeActionID string `json:"consumeActionId"`
	// BufferTarget is how many consuming completions to buffer inputs for
	// (roughly five minutes of consumption at plan time).
	BufferTarget int `json:"bufferTarget"`
	// Producers maps each input item to its fixed producer action id.
	Producers map[string]string `json:"producers"`
}

type Config struct {
	Guards      consume.Guards
	MaxAttempts int
	// PressurePct is the used-slot fraction that pauses consumption to sell.
	PressurePct float64
	// StallCycles aborts after this many produce/consume cycles without
	// primary-stop progress.
	StallCycles int
}

func DefaultConfig() Config {
	return Config{Guards: consume.DefaultGuards(), MaxAttempts: 3, PressurePct: 0.90, StallCycles: 3}
}

type Result struct {
	State  state.GameState
	Ticks  int
	Deaths int
	// Boundary is nil when the primary stop was satisfied.
	Boundary boundary.Boundary
	Attempts int
	Sales    []economy.Sale
}

// Run alternates PRODUCE and CONSUME until primaryStop fires, a watch becomes
// material, or a boundary requires replanning.
func Run(s state.GameState, m Macro, primaryStop wait.WaitFor, watches []Watch, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) Result {
	res := Result{State: s}

	if b := validate(m, cats); b != nil {
		res.Boundary = b
		return res
	}
	consumeDef, _ := cats.Actions.Action(m.ConsumeActionID)

	lastProgress := primaryStop.Progress(res.State)
	stalled := 0

	for {
		if primaryStop.IsSatisfied(res.State) {
			return res
		}
		if b, material := checkWatches(res.State, watches); material {
			res.Boundary = b
			return res
		}

		if b := produce(&res, m, consumeDef, policy, cats, rng, cfg); b != nil {
			res.Boundary = b
			return res
		}
		if primaryStop.IsSatisfied(res.State) {
			return res
		}

		done, b := consumePhase(&res, m, consumeDef, primaryStop, policy, cats, rng, cfg)
		if b != nil {
			res.Boundary = b
			return res
		}
		if done {
			return res
		}

		if p := primaryStop.Progress(res.State); p > lastProgress {
			lastProgress = p
			stalled = 0
		} else {
			stalled++
			if stalled >= cfg.StallCycles {
				res.Boundary = boundary.NoProgressPossible{
					Reason: fmt.Sprintf("%d produce/consume cycles without progress toward %s", stalled, primaryStop.Describe()),
				}
				return res
			}
		}
	}
}

func validate(m Macro, cats *catalogs.Catalogs) boundary.Boundary {
	if m.ConsumeActionID == "" {
		return boundary.NoProgressPossible{Reason: "macro missing consumeActionId"}
	}
	if m.BufferTarget <= 0 {
		return boundary.NoProgressPossible{Reason: "macro missing bufferTarget"}
	}
	def, ok := cats.Actions.Action(m.ConsumeActionID)
	if !ok {
		return boundary.NoProgressPossible{Reason: fmt.Sprintf("macro consume action %q not in catalog", m.ConsumeActionID)}
	}
	if len(def.Inputs) == 0 {
		return boundary.NoProgressPossible{Reason: fmt.Sprintf("macro consume action %q takes no inputs", m.ConsumeActionID)}
	}
	for _, in := range def.Inputs {
		if m.Producers[in.Item] == "" {
			return boundary.NoProgressPossible{Reason: fmt.Sprintf("macro missing producer for %s", in.Item)}
		}
	}
	return nil
}

// produce fills each required input up to the buffer target, chain-resolving
// inputs whose fixed producer itself consumes items.
func produce(res *Result, m Macro, consumeDef catalogs.ActionDef, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) boundary.Boundary {
	for _, in := range consumeDef.Inputs {
		target := m.BufferTarget * in.Count
		if res.State.Count(in.Item) >= target {
			continue
		}
		producerID := m.Producers[in.Item]
		producerDef, ok := cats.Actions.Action(producerID)
		if !ok {
			return boundary.NoProgressPossible{Reason: fmt.Sprintf("macro producer %q not in catalog", producerID)}
		}

		if len(producerDef.Inputs) > 0 {
			resolved, err := chain.Resolve(res.State, in.Item, target, cats)
			if err != nil {
				return boundary.NoProgressPossible{Reason: err.Error()}
			}
			if resolved.Outcome == chain.ChainNeedsUnlock {
				return boundary.ActionUnavailable{
					ActionID: producerID,
					Reason:   fmt.Sprintf("requires %s level %d", resolved.UnlockSkill, resolved.UnlockLevel),
				}
			}
			ctx := &chain.ExecContext{
				Attempts:    res.Attempts,
				MaxAttempts: cfg.MaxAttempts,
				Guards:      cfg.Guards,
			}
			next, b := chain.ProduceBottomUp(res.State, resolved.Root, policy, cats, rng, ctx)
			res.State = next
			res.Ticks += ctx.Ticks
			res.Deaths += ctx.Deaths
			res.Attempts = ctx.Attempts
			res.Sales = append(res.Sales, ctx.Sales...)
			if b != nil {
				return b
			}
			continue
		}

		if b := produceFlat(res, producerID, in.Item, target, policy, cats, rng, cfg); b != nil {
			return b
		}
	}
	return nil
}

func produceFlat(res *Result, producerID, item string, target int, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) boundary.Boundary {
	w := wait.InventoryAtLeast{Item: item, Count: target, ActionID: producerID}
	for {
		cr := consume.Run(res.State, producerID, w, cfg.Guards, cats, rng)
		res.State = cr.State
		res.Ticks += cr.Ticks
		res.Deaths += cr.Deaths

		switch cr.Boundary.(type) {
		case nil, boundary.WaitConditionSatisfied:
			return nil
		case boundary.InventoryFull:
			rec := recovery.Handle(res.State, cr.Boundary, policy, &cats.Items, rng, res.Attempts, cfg.MaxAttempts)
			res.State = rec.State
			res.Attempts = rec.Attempts
			res.Sales = append(res.Sales, rec.Sales...)
			if rec.Outcome == recovery.RecoveredRetry {
				continue
			}
			return rec.Boundary
		default:
			return cr.Boundary
		}
	}
}

// consumePhase runs the consuming action until the primary stop, depletion,
// or inventory pressure. done=true means the primary stop fired.
func consumePhase(res *Result, m Macro, consumeDef catalogs.ActionDef, primaryStop wait.WaitFor, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, cfg Config) (bool, boundary.Boundary) {
	depleted := wait.InputsDepleted{Def: consumeDef}
	pressure := wait.InventoryPercentAbove{Percent: cfg.PressurePct}
	combined := wait.AnyOf{Children: []wait.WaitFor{primaryStop, depleted, pressure}}

	cr := consume.Run(res.State, m.ConsumeActionID, combined, cfg.Guards, cats, rng)
	res.State = cr.State
	res.Ticks += cr.Ticks
	res.Deaths += cr.Deaths

	switch cr.Boundary.(type) {
	case nil, boundary.WaitConditionSatisfied:
		// Settle the fired branch against the live state in declaration order:
		// the primary stop may itself be a percent or depletion predicate.
		switch {
		case primaryStop.IsSatisfied(res.State):
			return true, nil
		case depleted.IsSatisfied(res.State):
			return false, nil // back to PRODUCE
		default:
			b := boundary.InventoryPressure{
				UsedSlots: res.State.Inventory.UsedSlots(),
				Capacity:  res.State.Inventory.Capacity,
			}
			rec := recovery.Handle(res.State, b, policy, &cats.Items, rng, res.Attempts, cfg.MaxAttempts)
			res.State = rec.State
			res.Attempts = rec.Attempts
			res.Sales = append(res.Sales, rec.Sales...)
			if rec.Outcome == recovery.RecoveredRetry {
				return false, nil
			}
			return false, rec.Boundary
		}
	case boundary.InputsDepleted:
		// Structural depletion mid-completion; same answer as the predicate.
		return false, nil
	case boundary.InventoryFull:
		rec := recovery.Handle(res.State, cr.Boundary, policy, &cats.Items, rng, res.Attempts, cfg.MaxAttempts)
		res.State = rec.State
		res.Attempts = rec.Attempts
		res.Sales = append(res.Sales, rec.Sales...)
		if rec.Outcome == recovery.RecoveredRetry {
			return false, nil
		}
		return false, rec.Boundary
	default:
		return false, cr.Boundary
	}
}

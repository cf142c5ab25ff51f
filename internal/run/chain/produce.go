package chain

import (
	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/consume"
	"github.com/eseidel/better-idle-sub009/internal/run/recovery"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// ExecContext threads the accumulators every nested producer call shares.
type ExecContext struct {
	Ticks    int
	Deaths   int
	Attempts int
	Sales    []economy.Sale
	// MaxAttempts caps penalized recoveries for the whole chain execution.
	MaxAttempts int
	Guards      consume.Guards
}

// ProduceBottomUp executes the resolved tree: children before parents, each
// node's need recomputed from live inventory (already-sufficient children are
// skipped), InventoryFull routed through recovery. The first boundary
// propagates immediately; sibling branches are not attempted.
func ProduceBottomUp(s state.GameState, n *Node, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, ctx *ExecContext) (state.GameState, boundary.Boundary) {
	for _, child := range n.Children {
		if s.Count(child.Item) >= child.Quantity {
			continue
		}
		var b boundary.Boundary
		s, b = ProduceBottomUp(s, child, policy, cats, rng, ctx)
		if b != nil {
			return s, b
		}
	}
	return produceNode(s, n, policy, cats, rng, ctx)
}

func produceNode(s state.GameState, n *Node, policy *economy.SellPolicy, cats *catalogs.Catalogs, rng *rngx.RNG, ctx *ExecContext) (state.GameState, boundary.Boundary) {
	target := wait.InventoryAtLeast{Item: n.Item, Count: n.Quantity, ActionID: n.ProducingActionID}
	for {
		res := consume.Run(s, n.ProducingActionID, target, ctx.Guards, cats, rng)
		s = res.State
		ctx.Ticks += res.Ticks
		ctx.Deaths += res.Deaths

		switch res.Boundary.(type) {
		case nil, boundary.WaitConditionSatisfied:
			return s, nil
		case boundary.InventoryFull:
			rec := recovery.Handle(s, res.Boundary, policy, &cats.Items, rng, ctx.Attempts, ctx.MaxAttempts)
			s = rec.State
			ctx.Attempts = rec.Attempts
			ctx.Sales = append(ctx.Sales, rec.Sales...)
			if rec.Outcome == recovery.RecoveredRetry {
				continue
			}
			return s, rec.Boundary
		default:
			return s, res.Boundary
		}
	}
}

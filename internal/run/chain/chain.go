// Package chain resolves and executes multi-tier production trees: to make an
// item, first make the inputs of its best unlocked producer, bottom-up.
package chain

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// MaxDepth bounds recursion; production trees deeper than this are a data
// error, not a plan.
const MaxDepth = 8

type Node struct {
	Item              string  `json:"item"`
	Quantity          int     `json:"quantity"`
	ProducingActionID string  `json:"producing_action_id"`
	ActionsNeeded     int     `json:"actions_needed"`
	TicksNeeded       int     `json:"ticks_needed"`
	Children          []*Node `json:"children,omitempty"`
}

// TotalTicks sums TicksNeeded over the whole tree.
func (n *Node) TotalTicks() int {
	total := n.TicksNeeded
	for _, c := range n.Children {
		total += c.TotalTicks()
	}
	return total
}

type Outcome int

const (
	ChainBuilt Outcome = iota + 1
	ChainNeedsUnlock
)

type Resolved struct {
	Outcome Outcome
	Root    *Node
	// Unlock fields are set when Outcome is ChainNeedsUnlock.
	UnlockItem  string
	UnlockSkill string
	UnlockLevel int
}

// Resolve builds the production tree for quantity of item. A locked best
// producer stops resolution and reports the unlock requirement instead of
// descending further. An error means the chain is structurally unbuildable
// (no producer, a cycle, or excessive depth) — a defect for the caller to
// surface as NoProgressPossible.
func Resolve(s state.GameState, item string, quantity int, cats *catalogs.Catalogs) (Resolved, error) {
	visited := map[string]bool{}
	return resolve(s, item, quantity, cats, visited, 0)
}

func resolve(s state.GameState, item string, quantity int, cats *catalogs.Catalogs, visited map[string]bool, depth int) (Resolved, error) {
	if depth > MaxDepth {
		return Resolved{}, fmt.Errorf("chain for %s exceeds max depth %d", item, MaxDepth)
	}
	if visited[item] {
		return Resolved{}, fmt.Errorf("chain for %s revisits %s", item, item)
	}
	visited[item] = true
	defer delete(visited, item)

	def, ok := bestProducer(s, item, cats)
	if !ok {
		// Producers exist but all are locked: report the cheapest unlock.
		if cheapest, any := cheapestProducer(item, cats); any {
			return Resolved{
				Outcome:     ChainNeedsUnlock,
				UnlockItem:  item,
				UnlockSkill: cheapest.Skill,
				UnlockLevel: cheapest.LevelRequired,
			}, nil
		}
		return Resolved{}, fmt.Errorf("no producer for %s", item)
	}

	out := def.OutputCount(item)
	actions := (quantity + out - 1) / out
	node := &Node{
		Item:              item,
		Quantity:          quantity,
		ProducingActionID: def.ID,
		ActionsNeeded:     actions,
		TicksNeeded:       actions * def.DurationTicks,
	}
	for _, in := range def.Inputs {
		child, err := resolve(s, in.Item, actions*in.Count, cats, visited, depth+1)
		if err != nil {
			return Resolved{}, err
		}
		if child.Outcome == ChainNeedsUnlock {
			return child, nil
		}
		node.Children = append(node.Children, child.Root)
	}
	return Resolved{Outcome: ChainBuilt, Root: node}, nil
}

// bestProducer picks the highest-requirement unlocked action producing item.
// Producer order from the catalog is level-descending and stable.
func bestProducer(s state.GameState, item string, cats *catalogs.Catalogs) (catalogs.ActionDef, bool) {
	for _, id := range cats.Actions.ProducersOf(item) {
		def, ok := cats.Actions.Action(id)
		if !ok {
			continue
		}
		if s.Unlocked(def) {
			return def, true
		}
	}
	return catalogs.ActionDef{}, false
}

func cheapestProducer(item string, cats *catalogs.Catalogs) (catalogs.ActionDef, bool) {
	producers := cats.Actions.ProducersOf(item)
	if len(producers) == 0 {
		return catalogs.ActionDef{}, false
	}
	// Producer lists are level-descending; the last entry is the cheapest.
	def, ok := cats.Actions.Action(producers[len(producers)-1])
	return def, ok
}

// Package exec executes plans step by step and drives replanning around them.
// A plan is a flat list of steps; segment markers scope sell policies over the
// steps that follow them.
package exec

import (
	"fmt"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/coupled"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
)

type StepKind string

const (
	// StepSegment marks a segment boundary and carries its sell policy.
	StepSegment StepKind = "segment"
	// StepBuy purchases one shop upgrade.
	StepBuy StepKind = "buy"
	// StepSell liquidates per the resolved sell policy right now.
	StepSell StepKind = "sell"
	// StepWait runs one action until the wait predicate fires.
	StepWait StepKind = "wait"
	// StepMacro runs the coupled produce/consume loop.
	StepMacro StepKind = "macro"
)

type Plan struct {
	ID    string `json:"id"`
	Steps []Step `json:"steps"`
	// DefaultPolicy applies to steps before the first segment marker.
	DefaultPolicy *economy.SellPolicy `json:"default_policy,omitempty"`
}

type Step struct {
	Kind  StepKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	// Segment fields. A nonzero Stop ends the plan at this marker with a
	// scheduled pacing boundary instead of falling through to the next step.
	Policy *economy.SellPolicy        `json:"policy,omitempty"`
	Stop   boundary.SegmentStopReason `json:"stop,omitempty"`

	// Buy fields.
	PurchaseID string `json:"purchase_id,omitempty"`

	// Wait fields.
	ActionID string    `json:"action_id,omitempty"`
	Until    *WaitSpec `json:"until,omitempty"`

	// Macro fields.
	Macro *coupled.Macro `json:"macro,omitempty"`
	// Watches are planner-attached opportunity checks; in-memory only.
	Watches []coupled.Watch `json:"-"`
}

// WaitSpec is the serializable form of a wait predicate. Compile turns it
// into the live variant.
type WaitSpec struct {
	Type   string  `json:"type"`
	Skill  string  `json:"skill,omitempty"`
	XP     int64   `json:"xp,omitempty"`
	Level  int     `json:"level,omitempty"`
	Item   string  `json:"item,omitempty"`
	Count  int     `json:"count,omitempty"`
	Amount int64   `json:"amount,omitempty"`
	Pct    float64 `json:"pct,omitempty"`
}

func (ws WaitSpec) Compile(actionID string, cats *catalogs.Catalogs) (wait.WaitFor, error) {
	switch ws.Type {
	case "skill_xp":
		return wait.SkillXPAbove{Skill: ws.Skill, XP: ws.XP, ActionID: actionID}, nil
	case "skill_level":
		return wait.SkillLevelAbove(ws.Skill, ws.Level, actionID), nil
	case "inventory_at_least":
		return wait.InventoryAtLeast{Item: ws.Item, Count: ws.Count, ActionID: actionID}, nil
	case "inventory_percent":
		return wait.InventoryPercentAbove{Percent: ws.Pct}, nil
	case "inventory_full":
		return wait.InventoryFull{}, nil
	case "credits":
		return wait.CreditsAtLeast{Amount: ws.Amount, Items: &cats.Items}, nil
	default:
		return nil, fmt.Errorf("unknown wait type %q", ws.Type)
	}
}

// PolicyFor resolves the sell policy in effect at step index i: the step's
// own policy, else the nearest preceding segment marker's, else the plan
// default, else fallback.
func (p *Plan) PolicyFor(i int, fallback *economy.SellPolicy) *economy.SellPolicy {
	if i >= 0 && i < len(p.Steps) && p.Steps[i].Policy != nil {
		return p.Steps[i].Policy
	}
	for j := i - 1; j >= 0; j-- {
		if p.Steps[j].Kind == StepSegment && p.Steps[j].Policy != nil {
			return p.Steps[j].Policy
		}
	}
	if p.DefaultPolicy != nil {
		return p.DefaultPolicy
	}
	return fallback
}

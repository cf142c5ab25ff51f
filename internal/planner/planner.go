// Package planner builds plans for the replanning driver. The heuristic is
// deliberately greedy: rank unlocked actions by rate toward the goal, fix the
// action ids into the plan, and let execution boundaries trigger the next
// ranking. Optimality comes from replanning often, not from search depth.
package planner

import (
	"fmt"
	"sort"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/coupled"
	"github.com/eseidel/better-idle-sub009/internal/run/exec"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
	"github.com/eseidel/better-idle-sub009/internal/sim/tuning"
)

type GoalKind int

const (
	GoalSkillLevel GoalKind = iota + 1
	GoalCredits
)

type Goal struct {
	Kind   GoalKind
	Skill  string
	Level  int
	Amount int64
}

func (g Goal) Satisfied(s state.GameState, items *catalogs.ItemCatalog) bool {
	switch g.Kind {
	case GoalSkillLevel:
		return s.SkillLevel(g.Skill) >= g.Level
	case GoalCredits:
		return economy.EffectiveCredits(s, items) >= g.Amount
	default:
		return false
	}
}

func (g Goal) String() string {
	switch g.Kind {
	case GoalSkillLevel:
		return fmt.Sprintf("%s level %d", g.Skill, g.Level)
	case GoalCredits:
		return fmt.Sprintf("credits %d", g.Amount)
	default:
		return "unknown goal"
	}
}

// Naive is the greedy planner. It implements exec.Planner.
type Naive struct {
	Goal   Goal
	Cats   *catalogs.Catalogs
	Tuning tuning.Tuning
	// Policy is the liquidation policy attached to every emitted segment.
	Policy *economy.SellPolicy

	seq int
}

var _ exec.Planner = (*Naive)(nil)

func (p *Naive) NextPlan(s state.GameState, last boundary.Boundary) (*exec.Plan, bool, error) {
	if p.Goal.Satisfied(s, &p.Cats.Items) {
		return nil, true, nil
	}
	p.seq++

	var steps []exec.Step
	steps = append(steps, exec.Step{Kind: exec.StepSegment, Policy: p.Policy})

	// An upgrade that became affordable mid-plan is bought before new work.
	if up, ok := last.(boundary.UpgradeAffordableEarly); ok {
		steps = append(steps,
			exec.Step{Kind: exec.StepSell, Label: "liquidate for upgrade"},
			exec.Step{Kind: exec.StepBuy, PurchaseID: up.PurchaseID, Label: "buy " + up.PurchaseID},
		)
	}

	var body []exec.Step
	var err error
	switch p.Goal.Kind {
	case GoalSkillLevel:
		body, err = p.skillSteps(s)
	case GoalCredits:
		body, err = p.creditSteps(s)
	default:
		err = fmt.Errorf("unknown goal kind %d", p.Goal.Kind)
	}
	if err != nil {
		return nil, false, err
	}
	steps = append(steps, body...)

	return &exec.Plan{
		ID:    fmt.Sprintf("plan-%03d", p.seq),
		Steps: steps,
	}, false, nil
}

func (p *Naive) skillSteps(s state.GameState) ([]exec.Step, error) {
	best, ok := bestBySkillRate(s, p.Goal.Skill, p.Cats)
	if !ok {
		return nil, fmt.Errorf("no unlocked action trains %s", p.Goal.Skill)
	}
	until := &exec.WaitSpec{Type: "skill_level", Skill: p.Goal.Skill, Level: p.Goal.Level}
	watches := p.watches(s)

	if len(best.Inputs) == 0 {
		return []exec.Step{{
			Kind:     exec.StepWait,
			Label:    "train " + p.Goal.Skill + " via " + best.ID,
			ActionID: best.ID,
			Until:    until,
		}}, nil
	}

	macro := coupled.Macro{
		ConsumeActionID: best.ID,
		BufferTarget:    p.bufferTarget(best),
		Producers:       map[string]string{},
	}
	for _, in := range best.Inputs {
		prod, ok := bestProducerFor(s, in.Item, p.Cats)
		if !ok {
			return nil, fmt.Errorf("no unlocked producer for %s", in.Item)
		}
		macro.Producers[in.Item] = prod.ID
	}
	return []exec.Step{{
		Kind:    exec.StepMacro,
		Label:   "train " + p.Goal.Skill + " via " + best.ID,
		Until:   until,
		Macro:   &macro,
		Watches: watches,
	}}, nil
}

func (p *Naive) creditSteps(s state.GameState) ([]exec.Step, error) {
	best, ok := bestByGoldRate(s, p.Cats)
	if !ok {
		return nil, fmt.Errorf("no unlocked action earns gold")
	}
	return []exec.Step{{
		Kind:     exec.StepWait,
		Label:    "earn via " + best.ID,
		ActionID: best.ID,
		Until:    &exec.WaitSpec{Type: "credits", Amount: p.Goal.Amount},
	}}, nil
}

// bufferTarget converts the tuned buffer minutes into consuming completions.
func (p *Naive) bufferTarget(def catalogs.ActionDef) int {
	tickMs := p.Tuning.TickDurationMs
	if tickMs <= 0 {
		tickMs = 600
	}
	bufTicks := p.Tuning.BufferMinutes * 60 * 1000 / tickMs
	n := bufTicks / def.DurationTicks
	if n < 1 {
		n = 1
	}
	return n
}

// watches attach the opportunity checks: the trained skill crossing its
// current level, and any unpurchased upgrade for that skill.
func (p *Naive) watches(s state.GameState) []coupled.Watch {
	ws := []coupled.Watch{
		coupled.UnlockWatch{Skill: p.Goal.Skill, BaselineLevel: s.SkillLevel(p.Goal.Skill)},
	}
	ids := make([]string, 0, len(p.Cats.Shop.ByID))
	for id := range p.Cats.Shop.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		def := p.Cats.Shop.ByID[id]
		if def.Skill != p.Goal.Skill || s.Purchases[id] > 0 {
			continue
		}
		ws = append(ws, coupled.UpgradeWatch{Def: def})
	}
	return ws
}

// bestBySkillRate ranks unlocked actions of skill by XP per tick.
func bestBySkillRate(s state.GameState, skill string, cats *catalogs.Catalogs) (catalogs.ActionDef, bool) {
	var best catalogs.ActionDef
	bestRate := -1.0
	for _, id := range sortedActionIDs(cats) {
		def := cats.Actions.ByID[id]
		if def.Skill != skill || !s.Unlocked(def) {
			continue
		}
		rate := float64(def.XP) / float64(def.DurationTicks)
		if rate > bestRate {
			best, bestRate = def, rate
		}
	}
	return best, bestRate >= 0
}

// bestByGoldRate ranks unlocked actions by net sell value per tick.
func bestByGoldRate(s state.GameState, cats *catalogs.Catalogs) (catalogs.ActionDef, bool) {
	var best catalogs.ActionDef
	bestRate := 0.0
	found := false
	for _, id := range sortedActionIDs(cats) {
		def := cats.Actions.ByID[id]
		if !s.Unlocked(def) {
			continue
		}
		var value int64
		for _, out := range def.Outputs {
			value += cats.Items.ByID[out.Item].SellValue * int64(out.Count)
		}
		for _, in := range def.Inputs {
			value -= cats.Items.ByID[in.Item].SellValue * int64(in.Count)
		}
		if value <= 0 {
			continue
		}
		rate := float64(value) / float64(def.DurationTicks)
		if rate > bestRate {
			best, bestRate = def, rate
			found = true
		}
	}
	return best, found
}

func bestProducerFor(s state.GameState, item string, cats *catalogs.Catalogs) (catalogs.ActionDef, bool) {
	for _, id := range cats.Actions.ProducersOf(item) {
		def := cats.Actions.ByID[id]
		if s.Unlocked(def) {
			return def, true
		}
	}
	return catalogs.ActionDef{}, false
}

func sortedActionIDs(cats *catalogs.Catalogs) []string {
	ids := make([]string, 0, len(cats.Actions.ByID))
	for id := range cats.Actions.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

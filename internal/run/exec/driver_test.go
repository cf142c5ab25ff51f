package exec

import (
	"context"
	"strings"
	"testing"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

// scriptPlanner hands out a fixed plan sequence and reports done after it.
type scriptPlanner struct {
	plans []*Plan
	next  int
	calls []boundary.Boundary
}

func (p *scriptPlanner) NextPlan(s state.GameState, last boundary.Boundary) (*Plan, bool, error) {
	p.calls = append(p.calls, last)
	if p.next >= len(p.plans) {
		return nil, true, nil
	}
	pl := p.plans[p.next]
	p.next++
	return pl, false, nil
}

func gatherPlan(id string, logs int) *Plan {
	return &Plan{ID: id, Steps: []Step{
		{Kind: StepWait, ActionID: "chop_normal",
			Until: &WaitSpec{Type: "inventory_at_least", Item: "LOG", Count: logs}},
	}}
}

func burnPlan(id string, xp int64) *Plan {
	return &Plan{ID: id, Steps: []Step{
		{Kind: StepWait, ActionID: "burn_log",
			Until: &WaitSpec{Type: "skill_xp", Skill: "firemaking", XP: xp}},
	}}
}

func TestDriverReachesGoalWithoutReplanning(t *testing.T) {
	cats := execCatalogs(t)
	planner := &scriptPlanner{plans: []*Plan{gatherPlan("gather", 5)}}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig(), MaxReplans: 25}

	res, err := d.Run(context.Background(), state.New(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := res.Boundary.(boundary.GoalReached); !ok {
		t.Fatalf("expected GoalReached, got %#v", res.Boundary)
	}
	if res.Replans != 0 || res.Ticks != 25 {
		t.Fatalf("expected 25 ticks with no replans, got %d ticks %d replans", res.Ticks, res.Replans)
	}
}

func TestDriverReplansOnDepletion(t *testing.T) {
	cats := execCatalogs(t)
	planner := &scriptPlanner{plans: []*Plan{
		// Optimistic: burn to 80 xp with only 5 logs banked.
		burnPlan("burn-1", 80),
		// Revised after depletion: top up logs, then finish the burn.
		{ID: "burn-2", Steps: []Step{
			{Kind: StepWait, ActionID: "chop_normal",
				Until: &WaitSpec{Type: "inventory_at_least", Item: "LOG", Count: 5}},
			{Kind: StepWait, ActionID: "burn_log",
				Until: &WaitSpec{Type: "skill_xp", Skill: "firemaking", XP: 80}},
		}},
	}}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig(), MaxReplans: 25}

	s := state.New(10)
	s, _ = s.WithItemAdded("LOG", 5)
	res, err := d.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := res.Boundary.(boundary.GoalReached); !ok {
		t.Fatalf("expected GoalReached, got %#v", res.Boundary)
	}
	if res.Replans != 1 {
		t.Fatalf("expected exactly one replan, got %d", res.Replans)
	}
	if len(res.Events) != 1 || !strings.Contains(res.Events[0].Trigger, "inputs depleted") {
		t.Fatalf("unexpected replan events %+v", res.Events)
	}
	if res.State.SkillXP["firemaking"] != 80 {
		t.Fatalf("expected 80 firemaking xp, got %d", res.State.SkillXP["firemaking"])
	}
	// 5 burns, 5 chops, 5 burns.
	if res.Ticks != 15+25+15 {
		t.Fatalf("unexpected tick total %d", res.Ticks)
	}
	// The planner must see the depletion boundary on its second call.
	if len(planner.calls) < 2 || planner.calls[1] == nil {
		t.Fatalf("planner never saw the boundary: %+v", planner.calls)
	}
}

func TestDriverEndsAtGoalMarker(t *testing.T) {
	cats := execCatalogs(t)
	planner := &scriptPlanner{plans: []*Plan{
		{ID: "marked", Steps: []Step{
			{Kind: StepWait, ActionID: "chop_normal",
				Until: &WaitSpec{Type: "inventory_at_least", Item: "LOG", Count: 2}},
			{Kind: StepSegment, Stop: boundary.SegmentGoal},
			{Kind: StepWait, ActionID: "chop_normal",
				Until: &WaitSpec{Type: "inventory_at_least", Item: "LOG", Count: 99}},
		}},
	}}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig(), MaxReplans: 25}

	res, err := d.Run(context.Background(), state.New(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := res.Boundary.(boundary.GoalReached); !ok {
		t.Fatalf("expected GoalReached, got %#v", res.Boundary)
	}
	if res.Replans != 0 || res.Ticks != 10 {
		t.Fatalf("expected 10 ticks and no replans, got %d ticks %d replans", res.Ticks, res.Replans)
	}
	if len(planner.calls) != 1 {
		t.Fatalf("the planner must not be consulted after a goal marker, calls=%d", len(planner.calls))
	}
}

func TestDriverStopsAtReplanLimit(t *testing.T) {
	cats := execCatalogs(t)
	// Every plan burns with an empty bag, failing immediately.
	failing := make([]*Plan, 50)
	for i := range failing {
		failing[i] = burnPlan("hopeless", 80)
	}
	planner := &scriptPlanner{plans: failing}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig(), MaxReplans: 3}

	res, err := d.Run(context.Background(), state.New(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rl, ok := res.Boundary.(boundary.ReplanLimitExceeded)
	if !ok {
		t.Fatalf("expected ReplanLimitExceeded, got %#v", res.Boundary)
	}
	if rl.Replans != 4 {
		t.Fatalf("expected termination on replan 4, got %d", rl.Replans)
	}
}

func TestDriverStopsAtTickBudget(t *testing.T) {
	cats := execCatalogs(t)
	planner := &scriptPlanner{plans: []*Plan{gatherPlan("gather", 5), gatherPlan("more", 10)}}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig(), MaxReplans: 25, MaxTotalTicks: 20}

	res, err := d.Run(context.Background(), state.New(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	tb, ok := res.Boundary.(boundary.TimeBudgetExceeded)
	if !ok {
		t.Fatalf("expected TimeBudgetExceeded, got %#v", res.Boundary)
	}
	if tb.Ticks < 20 {
		t.Fatalf("budget boundary below the cap: %d", tb.Ticks)
	}
}

func TestDriverHonorsCancellation(t *testing.T) {
	cats := execCatalogs(t)
	planner := &scriptPlanner{plans: []*Plan{gatherPlan("gather", 5)}}
	d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(1), Cfg: DefaultConfig()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Run(ctx, state.New(10)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDriverDeterministicAcrossRuns(t *testing.T) {
	cats := execCatalogs(t)
	run := func() DriveResult {
		planner := &scriptPlanner{plans: []*Plan{
			{ID: "wild", Steps: []Step{
				{Kind: StepWait, ActionID: "chop_wild",
					Until: &WaitSpec{Type: "inventory_at_least", Item: "LOG", Count: 8}},
			}},
		}}
		d := &Driver{Planner: planner, Cats: cats, RNG: rngx.New(99), Cfg: DefaultConfig(), MaxReplans: 25}
		res, err := d.Run(context.Background(), state.New(10))
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if a.Ticks != b.Ticks || a.State.Digest() != b.State.Digest() {
		t.Fatalf("runs diverged: %d vs %d ticks", a.Ticks, b.Ticks)
	}
}

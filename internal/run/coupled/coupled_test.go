package coupled

import (
	"strings"
	"testing"

	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/wait"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
)

func firemakingCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Build([]catalogs.ActionDef{
		{
			ID: "chop_normal", Skill: "woodcutting", DurationTicks: 5, XP: 10,
			Outputs: []catalogs.ItemCount{{Item: "LOG", Count: 1}},
		},
		// Strictly better LOG source that no macro names; the loop must never
		// reach for it on its own.
		{
			ID: "chop_fast", Skill: "woodcutting", DurationTicks: 1, XP: 100,
			Outputs: []catalogs.ItemCount{{Item: "LOG", Count: 1}},
		},
		{
			ID: "burn_log", Skill: "firemaking", DurationTicks: 3, XP: 8,
			Inputs:  []catalogs.ItemCount{{Item: "LOG", Count: 1}},
			Outputs: []catalogs.ItemCount{{Item: "ASH", Count: 1}},
		},
	}, []catalogs.ItemDef{
		{ID: "LOG", SellValue: 2}, {ID: "ASH", SellValue: 1},
	}, []catalogs.ShopDef{
		{ID: "better_axe", CostGold: 50, Skill: "woodcutting", LevelRequired: 1},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return c
}

func logMacro() Macro {
	return Macro{
		ConsumeActionID: "burn_log",
		BufferTarget:    5,
		Producers:       map[string]string{"LOG": "chop_normal"},
	}
}

func TestMissingBufferTargetFailsFast(t *testing.T) {
	cats := firemakingCatalogs(t)
	s := state.New(10)
	before := s.Digest()
	m := logMacro()
	m.BufferTarget = 0

	res := Run(s, m, wait.SkillXPAbove{Skill: "firemaking", XP: 80}, nil, nil, cats, rngx.New(1), DefaultConfig())
	np, ok := res.Boundary.(boundary.NoProgressPossible)
	if !ok {
		t.Fatalf("expected NoProgressPossible, got %#v", res.Boundary)
	}
	if !strings.Contains(np.Reason, "bufferTarget") {
		t.Fatalf("expected reason to name bufferTarget, got %q", np.Reason)
	}
	if res.Ticks != 0 || res.State.Digest() != before {
		t.Fatalf("expected zero work on invalid macro, got %d ticks", res.Ticks)
	}
}

func TestMissingProducerFailsFast(t *testing.T) {
	cats := firemakingCatalogs(t)
	m := logMacro()
	m.Producers = nil

	res := Run(state.New(10), m, wait.SkillXPAbove{Skill: "firemaking", XP: 80}, nil, nil, cats, rngx.New(1), DefaultConfig())
	np, ok := res.Boundary.(boundary.NoProgressPossible)
	if !ok {
		t.Fatalf("expected NoProgressPossible, got %#v", res.Boundary)
	}
	if !strings.Contains(np.Reason, "producer for LOG") {
		t.Fatalf("expected reason to name the missing producer, got %q", np.Reason)
	}
}

func TestAlternatesProduceAndConsume(t *testing.T) {
	cats := firemakingCatalogs(t)
	res := Run(state.New(10), logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 80}, nil, nil, cats, rngx.New(1), DefaultConfig())
	if res.Boundary != nil {
		t.Fatalf("expected clean finish, got %v", res.Boundary.Describe())
	}
	if got := res.State.SkillXP["firemaking"]; got != 80 {
		t.Fatalf("expected exactly 80 firemaking xp, got %d", got)
	}
	// Two full cycles: 5 chops + 5 burns each.
	want := 2 * (5*5 + 5*3)
	if res.Ticks != want {
		t.Fatalf("expected %d ticks, got %d", want, res.Ticks)
	}
	if res.Attempts != 0 {
		t.Fatalf("depletion must not spend recovery attempts, got %d", res.Attempts)
	}
}

func TestOnlyPlannerFixedActionsRun(t *testing.T) {
	cats := firemakingCatalogs(t)
	res := Run(state.New(10), logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 80}, nil, nil, cats, rngx.New(1), DefaultConfig())
	if res.Boundary != nil {
		t.Fatalf("expected clean finish, got %v", res.Boundary.Describe())
	}
	// 10 logs through chop_normal only; chop_fast would have left 100 xp per
	// log and far fewer ticks.
	if got := res.State.SkillXP["woodcutting"]; got != 100 {
		t.Fatalf("expected 100 woodcutting xp from the fixed producer, got %d", got)
	}
}

func TestInventoryPressureSellsAndContinues(t *testing.T) {
	cats := firemakingCatalogs(t)
	policy := &economy.SellPolicy{Kind: economy.SellAllExcept, Keep: map[string]bool{"LOG": true}}

	res := Run(state.New(2), logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 24}, nil, policy, cats, rngx.New(1), DefaultConfig())
	if res.Boundary != nil {
		t.Fatalf("expected clean finish, got %v", res.Boundary.Describe())
	}
	if got := res.State.SkillXP["firemaking"]; got != 24 {
		t.Fatalf("expected 24 firemaking xp, got %d", got)
	}
	// Every burn after the first fills the two-slot bag; ash is sold twice
	// before the third burn hits the target.
	if len(res.Sales) != 2 {
		t.Fatalf("expected 2 pressure sales, got %d", len(res.Sales))
	}
	if res.Ticks != 25+3+5+3+5+3 {
		t.Fatalf("unexpected tick total %d", res.Ticks)
	}
}

func TestPercentPrimaryStopIsNotPressure(t *testing.T) {
	cats := firemakingCatalogs(t)
	// The primary stop shares a predicate type with the injected pressure
	// guard; its firing must end the loop, not trigger a liquidation.
	policy := &economy.SellPolicy{Kind: economy.SellAll}

	res := Run(state.New(4), logMacro(), wait.InventoryPercentAbove{Percent: 0.5}, nil, policy, cats, rngx.New(1), DefaultConfig())
	if res.Boundary != nil {
		t.Fatalf("expected clean finish, got %v", res.Boundary.Describe())
	}
	// 5 chops fill one slot; the first burn adds the ash stack, 2 of 4 slots.
	if res.Ticks != 25+3 {
		t.Fatalf("expected 28 ticks, got %d", res.Ticks)
	}
	if len(res.Sales) != 0 {
		t.Fatalf("nothing may be sold when the primary stop fires, got %d sales", len(res.Sales))
	}
	if res.State.Inventory.UsedSlots() != 2 {
		t.Fatalf("expected 2 used slots at the stop, got %d", res.State.Inventory.UsedSlots())
	}
}

func TestUpgradeWatchStopsTheLoop(t *testing.T) {
	cats := firemakingCatalogs(t)
	def, _ := cats.Shop.Upgrade("better_axe")
	s := state.New(10).WithGold(60)

	res := Run(s, logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 80},
		[]Watch{UpgradeWatch{Def: def}}, nil, cats, rngx.New(1), DefaultConfig())
	up, ok := res.Boundary.(boundary.UpgradeAffordableEarly)
	if !ok {
		t.Fatalf("expected UpgradeAffordableEarly, got %#v", res.Boundary)
	}
	if up.PurchaseID != "better_axe" || res.Ticks != 0 {
		t.Fatalf("expected immediate stop for better_axe, got %+v after %d ticks", up, res.Ticks)
	}
}

func TestUnlockWatchStopsTheLoop(t *testing.T) {
	cats := firemakingCatalogs(t)
	// Training woodcutting as a side effect crosses the baseline mid-run.
	watches := []Watch{UnlockWatch{Skill: "woodcutting", BaselineLevel: 1}}

	res := Run(state.New(10), logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 8000}, watches, nil, cats, rngx.New(1), DefaultConfig())
	if _, ok := res.Boundary.(boundary.UnexpectedUnlock); !ok {
		t.Fatalf("expected UnexpectedUnlock, got %#v", res.Boundary)
	}
}

func TestStallGuardAbortsUnreachableTarget(t *testing.T) {
	cats := firemakingCatalogs(t)
	// Cooking never trains here, so the primary metric cannot move.
	res := Run(state.New(10), logMacro(), wait.SkillXPAbove{Skill: "cooking", XP: 100}, nil, nil, cats, rngx.New(1), DefaultConfig())
	np, ok := res.Boundary.(boundary.NoProgressPossible)
	if !ok {
		t.Fatalf("expected NoProgressPossible, got %#v", res.Boundary)
	}
	if !strings.Contains(np.Reason, "cycles") {
		t.Fatalf("expected stall reason, got %q", np.Reason)
	}
}

func TestDeterministicCoupledRuns(t *testing.T) {
	cats := firemakingCatalogs(t)
	run := func() Result {
		return Run(state.New(10), logMacro(), wait.SkillXPAbove{Skill: "firemaking", XP: 160}, nil, nil, cats, rngx.New(9), DefaultConfig())
	}
	a, b := run(), run()
	if a.Ticks != b.Ticks || a.State.Digest() != b.State.Digest() {
		t.Fatalf("runs diverged: %d vs %d ticks", a.Ticks, b.Ticks)
	}
}

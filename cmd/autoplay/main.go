package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"log"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/eseidel/better-idle-sub009/internal/persistence/rundb"
	"github.com/eseidel/better-idle-sub009/internal/persistence/runlog"
	"github.com/eseidel/better-idle-sub009/internal/planner"
	"github.com/eseidel/better-idle-sub009/internal/run/boundary"
	"github.com/eseidel/better-idle-sub009/internal/run/exec"
	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
	"github.com/eseidel/better-idle-sub009/internal/sim/economy"
	"github.com/eseidel/better-idle-sub009/internal/sim/rngx"
	"github.com/eseidel/better-idle-sub009/internal/sim/state"
	"github.com/eseidel/better-idle-sub009/internal/sim/tuning"
	"github.com/eseidel/better-idle-sub009/internal/transport/wsfeed"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "schema directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Uint64("seed", 1337, "rng seed")
		capacity   = flag.Int("capacity", 28, "inventory slots")
		gold       = flag.Int64("gold", 0, "starting gold")

		goalSkill   = flag.String("skill", "", "goal: train this skill")
		goalLevel   = flag.Int("level", 0, "goal: target level for -skill")
		goalCredits = flag.Int64("credits", 0, "goal: effective credits target (gold + liquidation)")

		planPath = flag.String("plan", "", "run a fixed plan file instead of the heuristic planner")
		keep     = flag.String("keep", "", "comma-separated item ids the sell policy never liquidates")

		listen    = flag.String("listen", "", "ws feed listen address (empty to disable)")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite run history")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[autoplay] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	policy := &economy.SellPolicy{Kind: economy.SellAll}
	if *keep != "" {
		policy = &economy.SellPolicy{Kind: economy.SellAllExcept, Keep: map[string]bool{}}
		for _, id := range strings.Split(*keep, ",") {
			if id = strings.TrimSpace(id); id != "" {
				policy.Keep[id] = true
			}
		}
	}

	goal, p, err := buildPlanner(cats, tune, policy, *goalSkill, *goalLevel, *goalCredits, *planPath, *schemaDir)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	runID := fmt.Sprintf("run-%d", time.Now().UTC().Unix())
	runDir := filepath.Join(*dataDir, "runs", runID)

	logw := runlog.NewWriter(runDir, "run")
	defer logw.Close()

	var history *rundb.History
	if !*disableDB {
		history, err = rundb.Open(filepath.Join(*dataDir, "history.db"))
		if err != nil {
			logger.Fatalf("open history: %v", err)
		}
		defer history.Close()
	}

	var feed *wsfeed.Feed
	if *listen != "" {
		feed = wsfeed.New(log.New(os.Stdout, "[wsfeed] ", log.LstdFlags|log.Lmicroseconds))
		defer feed.Close()
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/feed", feed.Handler())
		srv := &http.Server{Addr: *listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("ws feed: %v", err)
			}
		}()
		defer srv.Close()
		logger.Printf("ws feed on %s/v1/feed", *listen)
	}

	start := runlog.StartInfo{
		RunID:         runID,
		Goal:          goal,
		Seed:          *seed,
		ActionsDigest: cats.Actions.Digest,
		ItemsDigest:   cats.Items.Digest,
		ShopDigest:    cats.Shop.Digest,
	}
	if err := logw.WriteStart(start); err != nil {
		logger.Fatalf("write run log: %v", err)
	}
	if history != nil {
		tj, _ := json.Marshal(tune)
		if err := history.StartRun(start, tj); err != nil {
			logger.Fatalf("record run: %v", err)
		}
	}
	if feed != nil {
		feed.BroadcastStart(start)
	}

	d := &exec.Driver{
		Planner:       p,
		Cats:          cats,
		RNG:           rngx.New(*seed),
		Fallback:      policy,
		Cfg:           exec.ConfigFromTuning(tune),
		MaxReplans:    tune.MaxReplans,
		MaxTotalTicks: tune.MaxTotalTicks,
		Logger:        logger,
		Hooks: exec.Hooks{
			OnProgress: func(ev exec.ProgressEvent) {
				_ = logw.WriteProgress(ev)
				if history != nil {
					history.WriteProgress(runID, ev)
				}
				if feed != nil {
					feed.BroadcastProgress(ev)
				}
			},
		},
		OnReplan: func(ev exec.ReplanEvent) {
			_ = logw.WriteReplan(ev)
			if history != nil {
				history.WriteReplan(runID, ev)
			}
			if feed != nil {
				feed.BroadcastReplan(ev)
			}
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := state.New(*capacity).WithGold(*gold)
	logger.Printf("run %s: %s (seed %d)", runID, goal, *seed)

	res, err := d.Run(ctx, s)
	if err != nil {
		logger.Printf("interrupted after %d ticks: %v", res.Ticks, err)
	}

	term := runlog.TerminalInfo{
		Ticks:       res.Ticks,
		Deaths:      res.Deaths,
		Replans:     res.Replans,
		Gold:        res.State.Gold,
		StateDigest: res.State.Digest(),
	}
	if res.Boundary != nil {
		term.Boundary = res.Boundary.Describe()
	} else {
		term.Boundary = "interrupted"
	}
	_ = logw.WriteTerminal(term)
	if history != nil {
		history.FinishRun(runID, term)
	}
	if feed != nil {
		feed.BroadcastTerminal(term)
	}

	wall := time.Duration(res.Ticks) * time.Duration(tune.TickDurationMs) * time.Millisecond
	logger.Printf("finished: %s", term.Boundary)
	logger.Printf("ticks=%d (%s of play) deaths=%d replans=%d gold=%d", res.Ticks, wall, res.Deaths, res.Replans, res.State.Gold)
	if _, ok := res.Boundary.(boundary.GoalReached); !ok && err == nil {
		os.Exit(1)
	}
}

func buildPlanner(cats *catalogs.Catalogs, tune tuning.Tuning, policy *economy.SellPolicy,
	skill string, level int, credits int64, planPath, schemaDir string) (string, exec.Planner, error) {

	if planPath != "" {
		plan, err := loadPlan(planPath, schemaDir)
		if err != nil {
			return "", nil, err
		}
		return "fixed plan " + plan.ID, &fixedPlanner{plan: plan}, nil
	}

	var goal planner.Goal
	switch {
	case skill != "" && level > 0:
		goal = planner.Goal{Kind: planner.GoalSkillLevel, Skill: skill, Level: level}
	case credits > 0:
		goal = planner.Goal{Kind: planner.GoalCredits, Amount: credits}
	default:
		return "", nil, fmt.Errorf("no goal: pass -skill with -level, -credits, or -plan")
	}
	return goal.String(), &planner.Naive{Goal: goal, Cats: cats, Tuning: tune, Policy: policy}, nil
}

// loadPlan validates a plan file against the schema before decoding it.
func loadPlan(path, schemaDir string) (*exec.Plan, error) {
	schema, err := jsonschema.Compile(filepath.Join(schemaDir, "plan.schema.json"))
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	var plan exec.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &plan, nil
}

// fixedPlanner serves one plan and never revises it: a replan boundary ends
// the run instead of producing a new plan.
type fixedPlanner struct {
	plan   *exec.Plan
	served bool
}

func (p *fixedPlanner) NextPlan(s state.GameState, last boundary.Boundary) (*exec.Plan, bool, error) {
	if last != nil {
		return nil, false, fmt.Errorf("fixed plan stopped: %s", last.Describe())
	}
	if p.served {
		return nil, true, nil
	}
	p.served = true
	return p.plan, false, nil
}

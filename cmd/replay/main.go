// Command replay inspects recorded runs: the compressed JSONL run log is the
// source of truth, and the sqlite history answers the cross-run queries.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eseidel/better-idle-sub009/internal/persistence/rundb"
	"github.com/eseidel/better-idle-sub009/internal/persistence/runlog"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		runID   = flag.String("run", "", "run id to inspect (empty: list runs)")
		replans = flag.Bool("replans", false, "show the replan history for -run")
		steps   = flag.Bool("steps", false, "show every executed step for -run")
	)
	flag.Parse()

	if *runID == "" {
		listRuns(*dataDir)
		return
	}

	entries, err := runlog.ReadDir(filepath.Join(*dataDir, "runs", *runID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read run log:", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no log entries for run", *runID)
		os.Exit(1)
	}

	printSummary(entries)
	if *steps {
		printSteps(entries)
	}
	if *replans {
		printReplans(*dataDir, *runID)
	}
}

func listRuns(dataDir string) {
	h, err := rundb.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open history:", err)
		os.Exit(1)
	}
	defer h.Close()

	runs, err := h.Runs()
	if err != nil {
		fmt.Fprintln(os.Stderr, "query runs:", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  started=%s  goal=%q  seed=%d  ticks=%d  deaths=%d  replans=%d  gold=%d  %s\n",
			r.RunID, r.StartedAt, r.Goal, r.Seed, r.Ticks, r.Deaths, r.Replans, r.Gold, r.Boundary)
	}
}

func printSummary(entries []runlog.Entry) {
	var start *runlog.StartInfo
	var term *runlog.TerminalInfo
	var nSteps, nReplans int
	for i := range entries {
		switch entries[i].Kind {
		case runlog.EntryStart:
			start = entries[i].Start
		case runlog.EntryProgress:
			nSteps++
		case runlog.EntryReplan:
			nReplans++
		case runlog.EntryTerminal:
			term = entries[i].Terminal
		}
	}
	if start != nil {
		fmt.Printf("run %s  goal=%q  seed=%d\n", start.RunID, start.Goal, start.Seed)
		fmt.Printf("catalogs actions=%s items=%s shop=%s\n",
			short(start.ActionsDigest), short(start.ItemsDigest), short(start.ShopDigest))
	}
	fmt.Printf("steps=%d replans=%d\n", nSteps, nReplans)
	if term != nil {
		fmt.Printf("outcome: %s  ticks=%d deaths=%d gold=%d state=%s\n",
			term.Boundary, term.Ticks, term.Deaths, term.Gold, short(term.StateDigest))
	} else {
		fmt.Println("outcome: (run still open or log truncated)")
	}
}

func printSteps(entries []runlog.Entry) {
	fmt.Println("steps:")
	for i := range entries {
		p := entries[i].Progress
		if p == nil {
			continue
		}
		line := fmt.Sprintf("  %s step %d (%s)", p.PlanID, p.StepIndex, p.StepKind)
		if p.Label != "" {
			line += " " + p.Label
		}
		line += fmt.Sprintf(": %d ticks (total %d)", p.Ticks, p.TotalTicks)
		if p.Boundary != "" {
			line += "  [" + p.Boundary + "]"
		}
		fmt.Println(line)
	}
}

func printReplans(dataDir, runID string) {
	h, err := rundb.Open(filepath.Join(dataDir, "history.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open history:", err)
		os.Exit(1)
	}
	defer h.Close()

	rows, err := h.Replans(runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query replans:", err)
		os.Exit(1)
	}
	fmt.Println("replans:")
	for _, r := range rows {
		fmt.Printf("  #%d at tick %d, step %d of %s: %s\n", r.Replans, r.Ticks, r.StepIndex, r.PlanID, r.Trigger)
	}
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	if digest == "" {
		return "-"
	}
	return digest
}

package runlog

import (
	"testing"

	"github.com/eseidel/better-idle-sub009/internal/run/exec"
)

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "run")

	if err := w.WriteStart(StartInfo{RunID: "r1", Goal: "firemaking level 10", Seed: 42}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.WriteProgress(exec.ProgressEvent{PlanID: "plan-001", StepIndex: 0, StepKind: "wait", Ticks: 25}); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := w.WriteReplan(exec.ReplanEvent{Replans: 1, PlanID: "plan-001", Trigger: "inputs depleted for burn_log (missing LOG)"}); err != nil {
		t.Fatalf("replan: %v", err)
	}
	if err := w.WriteTerminal(TerminalInfo{Boundary: "goal reached", Ticks: 40, Replans: 1}); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Kind != EntryStart || entries[0].Start.RunID != "r1" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Progress == nil || entries[1].Progress.PlanID != "plan-001" {
		t.Fatalf("unexpected progress entry %+v", entries[1])
	}
	if entries[3].Terminal == nil || entries[3].Terminal.Boundary != "goal reached" {
		t.Fatalf("unexpected terminal entry %+v", entries[3])
	}
	for _, e := range entries {
		if e.At == "" {
			t.Fatalf("entry missing timestamp: %+v", e)
		}
	}
}

func TestReadEmptyDir(t *testing.T) {
	entries, err := ReadDir(t.TempDir())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

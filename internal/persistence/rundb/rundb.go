// Package rundb keeps a sqlite history of runs: one row per run plus the
// per-step and per-replan event streams. All writes funnel through a single
// goroutine; callers never block on the database, and events are dropped
// rather than stalling execution (the runlog JSONL remains authoritative).
package rundb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eseidel/better-idle-sub009/internal/persistence/runlog"
	"github.com/eseidel/better-idle-sub009/internal/run/exec"
)

type History struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqProgress reqKind = iota + 1
	reqReplan
	reqFinish
)

type req struct {
	kind     reqKind
	runID    string
	progress exec.ProgressEvent
	replan   exec.ReplanEvent
	terminal runlog.TerminalInfo
}

func Open(path string) (*History, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	h := &History{
		db: db,
		ch: make(chan req, 65536),
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop()
	}()
	return h, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			goal TEXT NOT NULL,
			seed INTEGER NOT NULL,
			actions_digest TEXT,
			items_digest TEXT,
			shop_digest TEXT,
			tuning_json TEXT,
			finished_at TEXT,
			boundary TEXT,
			ticks INTEGER,
			deaths INTEGER,
			replans INTEGER,
			gold INTEGER,
			state_digest TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			plan_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			step_kind TEXT NOT NULL,
			label TEXT,
			ticks INTEGER NOT NULL,
			total_ticks INTEGER NOT NULL,
			boundary TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_plan ON steps(run_id, plan_id);`,
		`CREATE TABLE IF NOT EXISTS replans (
			run_id TEXT NOT NULL,
			replans INTEGER NOT NULL,
			plan_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			reason TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			state_digest TEXT NOT NULL,
			PRIMARY KEY (run_id, replans)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) Close() error {
	var err error
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.ch)
		h.wg.Wait()
		err = h.db.Close()
	})
	return err
}

// StartRun records the run header synchronously so it exists even if the
// process dies mid-run.
func (h *History) StartRun(info runlog.StartInfo, tuningJSON []byte) error {
	if h == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := h.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO runs(run_id,started_at,goal,seed,actions_digest,items_digest,shop_digest,tuning_json)
		 VALUES(?,?,?,?,?,?,?,?)`,
		info.RunID, now, info.Goal, int64(info.Seed),
		info.ActionsDigest, info.ItemsDigest, info.ShopDigest, string(tuningJSON),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (h *History) WriteProgress(runID string, ev exec.ProgressEvent) {
	if h == nil || h.closed.Load() {
		return
	}
	select {
	case h.ch <- req{kind: reqProgress, runID: runID, progress: ev}:
	default:
		// Drop if the indexer falls behind.
	}
}

func (h *History) WriteReplan(runID string, ev exec.ReplanEvent) {
	if h == nil || h.closed.Load() {
		return
	}
	select {
	case h.ch <- req{kind: reqReplan, runID: runID, replan: ev}:
	default:
	}
}

func (h *History) FinishRun(runID string, info runlog.TerminalInfo) {
	if h == nil || h.closed.Load() {
		return
	}
	select {
	case h.ch <- req{kind: reqFinish, runID: runID, terminal: info}:
	default:
	}
}

func (h *History) loop() {
	ctx := context.Background()

	insertStep, _ := h.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,seq,plan_id,step_index,step_kind,label,ticks,total_ticks,boundary,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertReplan, _ := h.db.Prepare(`INSERT OR REPLACE INTO replans(run_id,replans,plan_id,step_index,reason,ticks,state_digest) VALUES(?,?,?,?,?,?,?)`)
	finishRun, _ := h.db.Prepare(`UPDATE runs SET finished_at=?,boundary=?,ticks=?,deaths=?,replans=?,gold=?,state_digest=? WHERE run_id=?`)
	defer func() {
		if insertStep != nil {
			_ = insertStep.Close()
		}
		if insertReplan != nil {
			_ = insertReplan.Close()
		}
		if finishRun != nil {
			_ = finishRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
		seq           int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := h.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range h.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqProgress:
			seq++
			raw, _ := json.Marshal(r.progress)
			if insertStep != nil {
				_, _ = tx.Stmt(insertStep).Exec(
					r.runID, seq, r.progress.PlanID, r.progress.StepIndex,
					r.progress.StepKind, r.progress.Label, r.progress.Ticks,
					r.progress.TotalTicks, r.progress.Boundary, string(raw),
				)
			}
		case reqReplan:
			if insertReplan != nil {
				_, _ = tx.Stmt(insertReplan).Exec(
					r.runID, r.replan.Replans, r.replan.PlanID, r.replan.StepIndex,
					r.replan.Trigger, r.replan.Ticks, r.replan.StateDigest,
				)
			}
		case reqFinish:
			if finishRun != nil {
				now := time.Now().UTC().Format(time.RFC3339Nano)
				_, _ = tx.Stmt(finishRun).Exec(
					now, r.terminal.Boundary, r.terminal.Ticks, r.terminal.Deaths,
					r.terminal.Replans, r.terminal.Gold, r.terminal.StateDigest, r.runID,
				)
			}
			commit()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

// RunRow is the queryable run header plus terminal columns.
type RunRow struct {
	RunID     string
	StartedAt string
	Goal      string
	Seed      int64
	Boundary  string
	Ticks     int
	Deaths    int
	Replans   int
	Gold      int64
}

// Runs lists run headers, newest first.
func (h *History) Runs() ([]RunRow, error) {
	rows, err := h.db.Query(`SELECT run_id,started_at,goal,seed,
		COALESCE(boundary,''),COALESCE(ticks,0),COALESCE(deaths,0),COALESCE(replans,0),COALESCE(gold,0)
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.Goal, &r.Seed,
			&r.Boundary, &r.Ticks, &r.Deaths, &r.Replans, &r.Gold); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepRow is one executed step of a run.
type StepRow struct {
	Seq       int
	PlanID    string
	StepIndex int
	StepKind  string
	Label     string
	Ticks     int
	Boundary  string
}

// Steps lists one run's steps in execution order.
func (h *History) Steps(runID string) ([]StepRow, error) {
	rows, err := h.db.Query(`SELECT seq,plan_id,step_index,step_kind,COALESCE(label,''),ticks,COALESCE(boundary,'')
		FROM steps WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var r StepRow
		if err := rows.Scan(&r.Seq, &r.PlanID, &r.StepIndex, &r.StepKind, &r.Label, &r.Ticks, &r.Boundary); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplanRow is one replanning decision of a run.
type ReplanRow struct {
	Replans   int
	PlanID    string
	StepIndex int
	Trigger   string
	Ticks     int
}

// Replans lists one run's replans in order.
func (h *History) Replans(runID string) ([]ReplanRow, error) {
	rows, err := h.db.Query(`SELECT replans,plan_id,step_index,reason,ticks
		FROM replans WHERE run_id=? ORDER BY replans`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplanRow
	for rows.Next() {
		var r ReplanRow
		if err := rows.Scan(&r.Replans, &r.PlanID, &r.StepIndex, &r.Trigger, &r.Ticks); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Package runlog persists run telemetry as zstd-compressed JSONL. The log is
// the source of truth for a run; the sqlite history is a queryable index over
// the same events.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/eseidel/better-idle-sub009/internal/run/exec"
)

type EntryKind string

const (
	EntryStart    EntryKind = "start"
	EntryProgress EntryKind = "progress"
	EntryReplan   EntryKind = "replan"
	EntryTerminal EntryKind = "terminal"
)

type StartInfo struct {
	RunID         string `json:"run_id"`
	Goal          string `json:"goal"`
	Seed          uint64 `json:"seed"`
	ActionsDigest string `json:"actions_digest,omitempty"`
	ItemsDigest   string `json:"items_digest,omitempty"`
	ShopDigest    string `json:"shop_digest,omitempty"`
}

type TerminalInfo struct {
	Boundary    string `json:"boundary"`
	Ticks       int    `json:"ticks"`
	Deaths      int    `json:"deaths"`
	Replans     int    `json:"replans"`
	Gold        int64  `json:"gold"`
	StateDigest string `json:"state_digest"`
}

type Entry struct {
	Kind     EntryKind           `json:"kind"`
	At       string              `json:"at"`
	Start    *StartInfo          `json:"start,omitempty"`
	Progress *exec.ProgressEvent `json:"progress,omitempty"`
	Replan   *exec.ReplanEvent   `json:"replan,omitempty"`
	Terminal *TerminalInfo       `json:"terminal,omitempty"`
}

// Writer appends compressed JSONL entries, rotating files hourly.
type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{baseDir: baseDir, prefix: prefix}
}

func (w *Writer) WriteStart(info StartInfo) error {
	return w.write(Entry{Kind: EntryStart, Start: &info})
}

func (w *Writer) WriteProgress(ev exec.ProgressEvent) error {
	return w.write(Entry{Kind: EntryProgress, Progress: &ev})
}

func (w *Writer) WriteReplan(ev exec.ReplanEvent) error {
	return w.write(Entry{Kind: EntryReplan, Replan: &ev})
}

func (w *Writer) WriteTerminal(info TerminalInfo) error {
	return w.write(Entry{Kind: EntryTerminal, Terminal: &info})
}

func (w *Writer) write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	e.At = now.Format(time.RFC3339Nano)
	if hour := now.Format("2006-01-02-15"); hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// The log is the source of truth for a run; every entry must survive a
	// crash, so the compressed frame is flushed too, not just the buffer.
	return w.enc.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour)
	f, err := os.OpenFile(filepath.Join(w.baseDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// ReadFile decodes every entry of one compressed log file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// ReadDir decodes every log file of a run directory in name order.
func ReadDir(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, p := range paths {
		es, err := ReadFile(p)
		if err != nil {
			return out, err
		}
		out = append(out, es...)
	}
	return out, nil
}

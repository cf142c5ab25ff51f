// Package wsfeed broadcasts live run telemetry to websocket observers. The
// feed never blocks the engine: slow subscribers lose events instead of
// stalling execution.
package wsfeed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eseidel/better-idle-sub009/internal/persistence/runlog"
	"github.com/eseidel/better-idle-sub009/internal/run/exec"
)

type msgType string

const (
	msgStart    msgType = "START"
	msgProgress msgType = "PROGRESS"
	msgReplan   msgType = "REPLAN"
	msgTerminal msgType = "TERMINAL"
)

type envelope struct {
	Type     msgType              `json:"type"`
	At       string               `json:"at"`
	Start    *runlog.StartInfo    `json:"start,omitempty"`
	Progress *exec.ProgressEvent  `json:"progress,omitempty"`
	Replan   *exec.ReplanEvent    `json:"replan,omitempty"`
	Terminal *runlog.TerminalInfo `json:"terminal,omitempty"`
}

type Feed struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	nextID atomic.Uint64

	mu     sync.Mutex
	subs   map[uint64]chan []byte
	closed bool
}

func New(logger *log.Logger) *Feed {
	return &Feed{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[uint64]chan []byte{},
	}
}

func (f *Feed) BroadcastStart(info runlog.StartInfo) {
	f.broadcast(envelope{Type: msgStart, Start: &info})
}

func (f *Feed) BroadcastProgress(ev exec.ProgressEvent) {
	f.broadcast(envelope{Type: msgProgress, Progress: &ev})
}

func (f *Feed) BroadcastReplan(ev exec.ReplanEvent) {
	f.broadcast(envelope{Type: msgReplan, Replan: &ev})
}

func (f *Feed) BroadcastTerminal(info runlog.TerminalInfo) {
	f.broadcast(envelope{Type: msgTerminal, Terminal: &info})
}

func (f *Feed) broadcast(e envelope) {
	e.At = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- b:
		default:
			// Subscriber is behind; drop the event for them.
			_ = id
		}
	}
}

// Handler upgrades the connection and streams events until the client leaves.
func (f *Feed) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, ch, ok := f.subscribe()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
				time.Now().Add(time.Second))
			return
		}
		defer f.unsubscribe(id)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				// Reads only detect disconnect; inbound messages are ignored.
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case b, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
						time.Now().Add(time.Second))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func (f *Feed) subscribe() (uint64, chan []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, nil, false
	}
	id := f.nextID.Add(1)
	ch := make(chan []byte, 256)
	f.subs[id] = ch
	if f.log != nil {
		f.log.Printf("observer %d connected (%d total)", id, len(f.subs))
	}
	return id, ch, true
}

func (f *Feed) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	if f.log != nil {
		f.log.Printf("observer %d disconnected (%d total)", id, len(f.subs))
	}
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

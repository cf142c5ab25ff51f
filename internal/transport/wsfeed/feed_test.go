package wsfeed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eseidel/better-idle-sub009/internal/run/exec"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	f := New(nil)
	defer f.Close()
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	// Connection registration races the broadcast; poll until the subscriber
	// is visible.
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.subs)
		f.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.BroadcastProgress(exec.ProgressEvent{PlanID: "plan-001", StepKind: "wait", TotalTicks: 25})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e envelope
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != msgProgress || e.Progress == nil || e.Progress.PlanID != "plan-001" {
		t.Fatalf("unexpected envelope %+v", e)
	}
	if e.At == "" {
		t.Fatalf("envelope missing timestamp")
	}
}

func TestBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	f := New(nil)
	defer f.Close()
	f.BroadcastProgress(exec.ProgressEvent{PlanID: "plan-001"})
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	f := New(nil)
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.subs)
		f.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after feed shutdown")
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

func TestHubSinkEventShapes(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("")
	defer hub.Unsubscribe(ch)

	ctx := context.Background()
	info := summary.RunInfo{ID: "r1", Category: prompt.Lecture, Mode: summary.ModeFile, StartedAt: time.Now()}
	_ = hub.RunStarted(ctx, info)
	_ = hub.WindowCompleted(ctx, info, summary.Window{
		ParsedWindow: summary.ParsedWindow{Outcome: summary.OutcomeRaw, ChunkPart: "notes"},
		Ordinal:      1,
	})
	_ = hub.RunFinished(ctx, info, summary.Report{Text: "final", Generated: true})

	for _, want := range []string{"run_started", "window_completed", "report_ready"} {
		select {
		case msg := <-ch:
			var payload map[string]any
			if err := json.Unmarshal(msg, &payload); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if payload["type"] != want {
				t.Fatalf("expected event type %s, got %#v", want, payload["type"])
			}
			if payload["run_id"] != "r1" {
				t.Fatalf("expected run_id r1, got %#v", payload["run_id"])
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("")
	defer hub.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		hub.Broadcast("r1", []byte("x"))
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func TestHubFiltersByRun(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe("")
	one := hub.Subscribe("r2")
	defer hub.Unsubscribe(all)
	defer hub.Unsubscribe(one)

	hub.Broadcast("r1", []byte("a"))
	hub.Broadcast("r2", []byte("b"))

	if len(all) != 2 {
		t.Fatalf("expected unfiltered subscriber to get 2 events, got %d", len(all))
	}
	if len(one) != 1 || string(<-one) != "b" {
		t.Fatal("expected filtered subscriber to get only r2's event")
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		got := len(hub.clients)
		hub.mu.RUnlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSStreamsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub, newStoreStub(), nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connection event failed: %v", err)
	}
	if !strings.Contains(string(first), `"connection"`) {
		t.Fatalf("expected connection event, got %s", first)
	}

	waitForSubscribers(t, hub, 1)

	_ = hub.RunStarted(context.Background(), summary.RunInfo{ID: "live-1", Category: prompt.Call, Mode: summary.ModeLive})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	if !strings.Contains(string(msg), `"run_started"`) || !strings.Contains(string(msg), "live-1") {
		t.Fatalf("unexpected event %s", msg)
	}
}

func TestWSRunFilter(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub, newStoreStub(), nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?run=wanted"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connection event failed: %v", err)
	}
	if !strings.Contains(string(first), `"run_id":"wanted"`) {
		t.Fatalf("expected connection event to echo the filter, got %s", first)
	}
	waitForSubscribers(t, hub, 1)

	ctx := context.Background()
	_ = hub.RunStarted(ctx, summary.RunInfo{ID: "other", Mode: summary.ModeFile})
	_ = hub.RunStarted(ctx, summary.RunInfo{ID: "wanted", Mode: summary.ModeLive})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	if !strings.Contains(string(msg), `"wanted"`) {
		t.Fatalf("expected only the filtered run's event, got %s", msg)
	}
}

func TestWSRejectsBadRunFilter(t *testing.T) {
	srv := httptest.NewServer(Handler(NewHub(), newStoreStub(), nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?run=../etc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}

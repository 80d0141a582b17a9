package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

// Hub fans run events out to websocket subscribers. It is a summary.Sink;
// slow subscribers miss events instead of blocking the run.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]string)}
}

// Subscribe registers a subscriber for runID's events, or for every run
// when runID is empty.
func (h *Hub) Subscribe(runID string) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = runID
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) Broadcast(runID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, filter := range h.clients {
		if filter != "" && filter != runID {
			continue
		}
		select {
		case ch <- msg:
		default:
			slog.Debug("ws subscriber full, dropping event", "run", runID)
		}
	}
}

func (h *Hub) RunStarted(_ context.Context, info summary.RunInfo) error {
	h.broadcastEvent(info.ID, RunStartedEvent{
		Event:    newEvent("run_started", info.StartedAt),
		RunID:    info.ID,
		Category: string(info.Category),
		Mode:     string(info.Mode),
		Source:   info.Source,
	})
	return nil
}

func (h *Hub) WindowCompleted(_ context.Context, info summary.RunInfo, w summary.Window) error {
	h.broadcastEvent(info.ID, WindowCompletedEvent{
		Event:     newEvent("window_completed", w.CompletedAt),
		RunID:     info.ID,
		Ordinal:   w.Ordinal,
		Outcome:   w.Outcome.String(),
		ChunkPart: w.ChunkPart,
		Context:   w.Context,
	})
	return nil
}

func (h *Hub) RunFinished(_ context.Context, info summary.RunInfo, r summary.Report) error {
	h.broadcastEvent(info.ID, ReportReadyEvent{
		Event:           newEvent("report_ready", r.FinishedAt),
		RunID:           info.ID,
		Report:          r.Text,
		Generated:       r.Generated,
		Fallback:        r.Fallback,
		Windows:         r.Windows,
		DegradedWindows: r.DegradedWindows,
		Unprocessed:     r.Unprocessed,
	})
	return nil
}

func (h *Hub) broadcastEvent(runID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("event marshal error", "error", err)
		return
	}
	h.Broadcast(runID, payload)
}

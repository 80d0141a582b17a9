package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type RunStartedEvent struct {
	Event
	RunID    string `json:"run_id"`
	Category string `json:"category"`
	Mode     string `json:"mode"`
	Source   string `json:"source,omitempty"`
}

type WindowCompletedEvent struct {
	Event
	RunID     string `json:"run_id"`
	Ordinal   int    `json:"ordinal"`
	Outcome   string `json:"outcome"`
	ChunkPart string `json:"chunk_part"`
	Context   string `json:"context"`
}

type ReportReadyEvent struct {
	Event
	RunID           string `json:"run_id"`
	Report          string `json:"report"`
	Generated       bool   `json:"generated"`
	Fallback        bool   `json:"fallback"`
	Windows         int    `json:"windows"`
	DegradedWindows int    `json:"degraded_windows"`
	Unprocessed     string `json:"unprocessed,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool   `json:"connected"`
	RunID     string `json:"run_id,omitempty"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

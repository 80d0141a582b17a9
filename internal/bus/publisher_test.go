package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

type published struct {
	subject string
	data    []byte
}

type publishRecorder struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (r *publishRecorder) publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{subject: subject, data: data})
	return r.err
}

func TestPublisherSubjectsAndEnvelope(t *testing.T) {
	rec := &publishRecorder{}
	p := NewPublisher(rec.publish)
	p.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	info := summary.RunInfo{ID: "run-1", Category: prompt.Meeting, Mode: summary.ModeTranscript}
	_ = p.RunStarted(ctx, info)
	_ = p.WindowCompleted(ctx, info, summary.Window{
		ParsedWindow: summary.ParsedWindow{Outcome: summary.OutcomeParsed, ChunkPart: "- decided", Context: "ctx"},
		Ordinal:      1,
	})
	_ = p.RunFinished(ctx, info, summary.Report{Text: "# Minutes", Generated: true, Windows: 1})

	want := []string{SubjectRunStarted, SubjectWindowCompleted, SubjectReportReady}
	if len(rec.msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(rec.msgs))
	}
	for i, subject := range want {
		if rec.msgs[i].subject != subject {
			t.Fatalf("message %d: expected subject %s, got %s", i, subject, rec.msgs[i].subject)
		}
	}

	var env struct {
		EventID   string        `json:"event_id"`
		RunID     string        `json:"run_id"`
		Category  string        `json:"category"`
		Timestamp time.Time     `json:"timestamp"`
		Payload   WindowPayload `json:"payload"`
	}
	if err := json.Unmarshal(rec.msgs[1].data, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if env.EventID == "" || env.RunID != "run-1" || env.Category != "meeting" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Payload.ChunkPart != "- decided" || env.Payload.Outcome != "parsed" {
		t.Fatalf("unexpected window payload %+v", env.Payload)
	}
	if !env.Timestamp.Equal(p.now()) {
		t.Fatalf("expected timestamp %v, got %v", p.now(), env.Timestamp)
	}
}

func TestPublisherFailuresDoNotStopRun(t *testing.T) {
	rec := &publishRecorder{err: errors.New("nats: connection closed")}
	p := NewPublisher(rec.publish)

	if err := p.RunFinished(context.Background(), summary.RunInfo{ID: "r"}, summary.Report{}); err != nil {
		t.Fatalf("expected publish failure to be absorbed, got %v", err)
	}
	if len(rec.msgs) != 1 {
		t.Fatalf("expected one publish attempt, got %d", len(rec.msgs))
	}
}

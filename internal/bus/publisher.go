// Package bus publishes run events to NATS.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

const (
	SubjectRunStarted      = "neuralmeet.run.started"
	SubjectWindowCompleted = "neuralmeet.window.completed"
	SubjectReportReady     = "neuralmeet.report.ready"
)

// PublishFunc is the callback signature for publishing to NATS.
type PublishFunc func(subject string, data []byte) error

type Envelope struct {
	EventID   string    `json:"event_id"`
	RunID     string    `json:"run_id"`
	Category  string    `json:"category"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type WindowPayload struct {
	Ordinal   int    `json:"ordinal"`
	Outcome   string `json:"outcome"`
	ChunkPart string `json:"chunk_part"`
	Context   string `json:"context"`
}

type ReportPayload struct {
	Report          string `json:"report"`
	Generated       bool   `json:"generated"`
	Fallback        bool   `json:"fallback"`
	Reduced         bool   `json:"reduced"`
	Windows         int    `json:"windows"`
	DegradedWindows int    `json:"degraded_windows"`
	Unprocessed     string `json:"unprocessed,omitempty"`
}

// Publisher is a summary.Sink. Publishing is best effort: failures are
// logged and never stop a run.
type Publisher struct {
	publish PublishFunc
	now     func() time.Time
	close   func()
}

func NewPublisher(publish PublishFunc) *Publisher {
	return &Publisher{publish: publish, now: time.Now, close: func() {}}
}

// Connect dials NATS and returns a publisher backed by the connection.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("neuralmeet"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	p := NewPublisher(nc.Publish)
	p.close = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return p, nil
}

func (p *Publisher) Close() {
	p.close()
}

func (p *Publisher) RunStarted(_ context.Context, info summary.RunInfo) error {
	p.send(SubjectRunStarted, info, nil)
	return nil
}

func (p *Publisher) WindowCompleted(_ context.Context, info summary.RunInfo, w summary.Window) error {
	p.send(SubjectWindowCompleted, info, WindowPayload{
		Ordinal:   w.Ordinal,
		Outcome:   w.Outcome.String(),
		ChunkPart: w.ChunkPart,
		Context:   w.Context,
	})
	return nil
}

func (p *Publisher) RunFinished(_ context.Context, info summary.RunInfo, r summary.Report) error {
	p.send(SubjectReportReady, info, ReportPayload{
		Report:          r.Text,
		Generated:       r.Generated,
		Fallback:        r.Fallback,
		Reduced:         r.Reduced,
		Windows:         r.Windows,
		DegradedWindows: r.DegradedWindows,
		Unprocessed:     r.Unprocessed,
	})
	return nil
}

func (p *Publisher) send(subject string, info summary.RunInfo, payload any) {
	data, err := json.Marshal(Envelope{
		EventID:   uuid.NewString(),
		RunID:     info.ID,
		Category:  string(info.Category),
		Mode:      string(info.Mode),
		Timestamp: p.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		slog.Error("marshal bus event", "subject", subject, "error", err)
		return
	}
	if err := p.publish(subject, data); err != nil {
		slog.Warn("publish bus event failed", "subject", subject, "run", info.ID, "error", err)
	}
}

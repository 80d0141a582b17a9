// Package session drives live summarization: capture producers feed a
// shared queue and a single consumer turns queued segments into windows.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/summary"
)

type Options struct {
	// Window is the amount of captured audio that makes one window.
	Window time.Duration
	// FinalReport generates the final report even when the run was
	// stopped.
	FinalReport bool
}

// Manager owns one live run. Producers run concurrently; everything that
// touches the run happens on the goroutine that called Run.
type Manager struct {
	run       *summary.Run
	stt       Transcriber
	producers []Producer
	opts      Options

	queue *Queue
	acc   *summary.Accumulator
}

func NewManager(run *summary.Run, stt Transcriber, opts Options, producers ...Producer) *Manager {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return &Manager{
		run:       run,
		stt:       stt,
		producers: producers,
		opts:      opts,
		queue:     NewQueue(),
		acc:       summary.NewAccumulator(opts.Window.Seconds()),
	}
}

// Queue exposes the manager's queue so extra producers can push into it.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Run consumes segments until ctx is cancelled or every producer has
// returned. After a stop it drains the queue without starting new
// generation calls and records the partial window as unprocessed.
func (m *Manager) Run(ctx context.Context) (summary.Report, error) {
	if len(m.producers) == 0 {
		return summary.Report{}, errors.New("no audio producers")
	}

	prodCtx, cancelProducers := context.WithCancel(ctx)
	defer cancelProducers()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		prodErr []error
	)
	for _, p := range m.producers {
		wg.Add(1)
		go func(p Producer) {
			defer wg.Done()
			err := p.Produce(prodCtx, func(item Item) {
				if err := m.queue.Push(item); err != nil {
					slog.Debug("dropping segment pushed after close", "source", item.Source)
				}
			})
			if err != nil && prodCtx.Err() == nil {
				slog.Error("producer stopped", "error", err)
				errMu.Lock()
				prodErr = append(prodErr, err)
				errMu.Unlock()
			}
		}(p)
	}
	go func() {
		wg.Wait()
		m.queue.Close()
	}()

	stopped, err := m.consume(ctx)
	if err != nil {
		cancelProducers()
		wg.Wait()
		return summary.Report{}, err
	}
	wg.Wait()

	errMu.Lock()
	producerErr := errors.Join(prodErr...)
	errMu.Unlock()

	// Detached so sinks and the opt-in final report see a live context
	// after a stop.
	finishCtx := context.WithoutCancel(ctx)

	if !stopped {
		if pending := m.acc.Flush(); pending != "" {
			if _, err := m.run.Window(ctx, pending); err != nil {
				return summary.Report{}, err
			}
		}
		rep, err := m.run.Finish(finishCtx)
		return rep, errors.Join(err, producerErr)
	}

	m.drain(finishCtx)
	if pending := m.acc.Flush(); pending != "" {
		m.run.MarkUnprocessed(pending)
		slog.Warn("partial window not summarized", "run", m.run.Info().ID, "chars", len(pending))
	}

	var rep summary.Report
	if m.opts.FinalReport {
		rep, err = m.run.Finish(finishCtx)
	} else {
		rep, err = m.run.Stop(finishCtx)
	}
	return rep, errors.Join(err, producerErr)
}

// consume processes items until the stop signal or until the queue is
// closed. It reports whether it stopped because of ctx.
func (m *Manager) consume(ctx context.Context) (bool, error) {
	for {
		item, err := m.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return false, nil
		}
		if err != nil {
			return true, nil
		}

		text := m.text(ctx, item)
		window, ready := m.acc.Add(text, item.Duration.Seconds())
		if !ready {
			continue
		}
		if ctx.Err() != nil {
			// Stop arrived while transcribing: keep the text, skip the call.
			m.acc.Add(window, 0)
			return true, nil
		}
		// The window call runs detached so a stop lets it finish.
		if _, err := m.run.Window(context.WithoutCancel(ctx), window); err != nil {
			return false, fmt.Errorf("live window: %w", err)
		}
	}
}

func (m *Manager) drain(ctx context.Context) {
	drained := 0
	for {
		item, err := m.queue.Pop(ctx)
		if err != nil {
			break
		}
		m.acc.Add(m.text(ctx, item), 0)
		drained++
	}
	if drained > 0 {
		slog.Info("drained queued segments after stop", "run", m.run.Info().ID, "segments", drained)
	}
}

// text returns the item's transcript. Transcription failures degrade to
// empty text.
func (m *Manager) text(ctx context.Context, item Item) string {
	if item.Text != "" || len(item.Audio) == 0 {
		return strings.TrimSpace(item.Text)
	}
	if m.stt == nil {
		slog.Warn("audio segment without transcriber", "source", item.Source)
		return ""
	}

	text, err := m.stt.Transcribe(context.WithoutCancel(ctx), item.Audio, item.SampleRate)
	if err != nil {
		slog.Warn("transcription failed", "source", item.Source, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/audio"
	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/server"
	"github.com/Amchestnut/NeuralMeet/internal/session"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
	"github.com/Amchestnut/NeuralMeet/internal/transcribe"
	"github.com/Amchestnut/NeuralMeet/internal/watcher"
)

func (a *app) summarizeText(ctx context.Context, id string, mode summary.Mode, source, category, text string) (summary.Report, error) {
	info := summary.RunInfo{
		ID:       id,
		Category: a.resolveCategory(ctx, category, text),
		Mode:     mode,
		Source:   source,
	}

	rep, err := a.summarizer.Summarize(ctx, info, text, a.sinks)
	if err != nil {
		return rep, fmt.Errorf("summarize %s: %w", id, err)
	}

	slog.Info("report ready",
		"run", id,
		"category", rep.Category,
		"windows", rep.Windows,
		"degraded", rep.DegradedWindows,
		"reduced", rep.Reduced,
		"fallback", rep.Fallback,
	)
	return rep, nil
}

func (a *app) summarizeTranscriptFile(ctx context.Context, path string) (summary.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return summary.Report{}, fmt.Errorf("read transcript: %w", err)
	}
	return a.summarizeText(ctx, newRunID(time.Now()), summary.ModeTranscript, path, a.cfg.Category, string(data))
}

func (a *app) summarizeMediaFile(ctx context.Context, path string) (summary.Report, error) {
	text, err := a.transcribeMedia(ctx, path)
	if err != nil {
		return summary.Report{}, err
	}
	return a.summarizeText(ctx, newRunID(time.Now()), summary.ModeFile, path, a.cfg.Category, text)
}

// transcribeMedia decodes path, cuts it into fixed-length segments and
// joins the text of every segment that transcribed.
func (a *app) transcribeMedia(ctx context.Context, path string) (string, error) {
	stt, err := a.segmentTranscriber()
	if err != nil {
		return "", err
	}

	rate := a.cfg.Live.SampleRate
	pcm, err := audio.NewDecoder(a.exec, a.cfg.Transcription.FFmpegBinary).Decode(ctx, path, rate)
	if err != nil {
		return "", err
	}

	segments := audio.SplitPCM(filepath.Base(path), pcm, rate, a.cfg.FileSegmentDuration())
	slog.Info("transcribing media", "path", path, "segments", len(segments))

	parts := make([]string, 0, len(segments))
	for i, seg := range segments {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := stt.Transcribe(ctx, seg.PCM, seg.SampleRate)
		if err != nil {
			slog.Warn("segment transcription failed", "path", path, "segment", i+1, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (a *app) live(ctx context.Context) (summary.Report, error) {
	if err := audio.Init(); err != nil {
		return summary.Report{}, fmt.Errorf("initialize audio: %w", err)
	}
	defer func() { _ = audio.Terminate() }()

	cfg := a.cfg
	category := cfg.Category
	if strings.EqualFold(category, "auto") {
		slog.Warn("category auto needs a transcript; live runs use meeting")
		category = string(prompt.Meeting)
	}

	info := summary.RunInfo{
		ID:       newRunID(time.Now()),
		Category: prompt.ParseCategory(category),
		Mode:     summary.ModeLive,
		Source:   strings.Join(cfg.Live.Sources, "+"),
	}

	streaming := cfg.Transcription.Provider == "deepgram"
	var stt session.Transcriber
	if !streaming {
		t, err := a.segmentTranscriber()
		if err != nil {
			return summary.Report{}, err
		}
		stt = t
	}

	var (
		producers []session.Producer
		recorders []*audio.Recorder
	)
	audioDir := filepath.Join(cfg.OutputDir, "audio")
	for _, source := range cfg.Live.Sources {
		mic, err := audio.OpenMic(source, cfg.Live.SampleRate, cfg.Live.FramesPerBuffer)
		if err != nil {
			return summary.Report{}, fmt.Errorf("open %s input: %w", source, err)
		}
		defer func() { _ = mic.Close() }()
		if err := mic.Start(); err != nil {
			return summary.Report{}, fmt.Errorf("start %s input: %w", source, err)
		}
		defer func() { _ = mic.Stop() }()
		slog.Info("capturing", "source", source, "device", mic.Device, "sample_rate", mic.SampleRate)

		rec := audio.NewRecorder(audioDir, a.exec, cfg.Transcription.FFmpegBinary)
		if err := rec.Start(info.ID+"-"+source, cfg.Live.SampleRate); err != nil {
			return summary.Report{}, err
		}
		recorders = append(recorders, rec)

		if streaming {
			dg := transcribe.NewDeepgramStream(cfg.DeepgramAPIKey, transcribe.DeepgramOptions{
				Model:      cfg.Transcription.DeepgramModel,
				Language:   cfg.Transcription.Language,
				SampleRate: cfg.Live.SampleRate,
			})
			producers = append(producers, session.StreamProducer(source, dg, recordingStream{src: mic, rec: rec}))
			continue
		}
		producers = append(producers, session.CaptureProducer(&audio.Capture{
			Source:   source,
			Stream:   mic,
			Rate:     cfg.Live.SampleRate,
			Segment:  cfg.SegmentDuration(),
			Recorder: rec,
		}))
	}

	run, err := a.summarizer.StartRun(ctx, info, a.sinks)
	if err != nil {
		return summary.Report{}, err
	}

	slog.Info("live session running; press Ctrl+C to stop", "run", info.ID, "window", cfg.WindowDuration())
	m := session.NewManager(run, stt, session.Options{
		Window:      cfg.WindowDuration(),
		FinalReport: cfg.Live.FinalReport,
	}, producers...)
	rep, runErr := m.Run(ctx)

	a.saveRecordings(context.WithoutCancel(ctx), info.ID, recorders)

	if runErr != nil {
		return rep, runErr
	}
	slog.Info("live session finished",
		"run", info.ID,
		"windows", rep.Windows,
		"generated", rep.Generated,
		"unprocessed_chars", len(rep.Unprocessed),
	)
	return rep, nil
}

// saveRecordings encodes each source's capture. The first path is stored
// on the run.
func (a *app) saveRecordings(ctx context.Context, runID string, recorders []*audio.Recorder) {
	stored := false
	for _, rec := range recorders {
		path, err := rec.Stop(ctx)
		if err != nil {
			slog.Warn("save recording failed", "run", runID, "error", err)
			continue
		}
		if path == "" {
			continue
		}
		slog.Info("recording saved", "run", runID, "path", path)
		if stored {
			continue
		}
		if err := a.store.SetAudioPath(runID, path); err != nil {
			slog.Warn("store recording path failed", "run", runID, "error", err)
			continue
		}
		stored = true
	}
}

// recordingStream tees a live source into its recorder on the way to a
// streaming transcriber.
type recordingStream struct {
	src transcribe.AudioStreamer
	rec *audio.Recorder
}

func (s recordingStream) Stream(ctx context.Context, w io.Writer) error {
	return s.src.Stream(ctx, s.rec.Writer(w))
}

func (a *app) watch(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.WatchDir, 0o755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}

	w, err := watcher.New(a.cfg.WatchDir, a.handleDroppedFile, 2)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	slog.Info("watching for recordings", "dir", a.cfg.WatchDir)
	return w.Run(ctx)
}

// handleDroppedFile summarizes one new file unless identical content was
// already claimed by an earlier run.
func (a *app) handleDroppedFile(ctx context.Context, path string, kind watcher.Kind) error {
	hash, err := hashFile(path)
	if err != nil {
		return err
	}

	id := newRunID(time.Now())
	claimed, err := a.store.ClaimTranscript(hash, id)
	if err != nil {
		return err
	}
	if !claimed {
		slog.Info("skipping already summarized file", "path", path)
		return nil
	}

	switch kind {
	case watcher.KindTranscript:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		_, err = a.summarizeText(ctx, id, summary.ModeTranscript, path, a.cfg.Category, string(data))
		return err
	case watcher.KindMedia:
		text, err := a.transcribeMedia(ctx, path)
		if err != nil {
			return err
		}
		_, err = a.summarizeText(ctx, id, summary.ModeFile, path, a.cfg.Category, text)
		return err
	default:
		return nil
	}
}

func (a *app) serve(ctx context.Context) error {
	var wg sync.WaitGroup
	submit := func(req server.SubmitRequest) (string, error) {
		id := newRunID(time.Now())
		category := req.Category
		if category == "" {
			category = a.cfg.Category
		}
		source := req.Source
		if source == "" {
			source = "api"
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.summarizeText(ctx, id, summary.ModeTranscript, source, category, req.Transcript); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("submitted run failed", "run", id, "error", err)
			}
		}()
		return id, nil
	}

	err := server.Serve(ctx, a.cfg.Server.Addr, server.Handler(a.hub, a.store, submit))
	wg.Wait()
	return err
}

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Amchestnut/NeuralMeet/internal/bus"
	"github.com/Amchestnut/NeuralMeet/internal/config"
	"github.com/Amchestnut/NeuralMeet/internal/executor"
	"github.com/Amchestnut/NeuralMeet/internal/gdrive"
	"github.com/Amchestnut/NeuralMeet/internal/llm"
	"github.com/Amchestnut/NeuralMeet/internal/prompt"
	"github.com/Amchestnut/NeuralMeet/internal/server"
	"github.com/Amchestnut/NeuralMeet/internal/storage"
	"github.com/Amchestnut/NeuralMeet/internal/summary"
	"github.com/Amchestnut/NeuralMeet/internal/tokens"
	"github.com/Amchestnut/NeuralMeet/internal/transcribe"
)

// app holds the components shared by every driver.
type app struct {
	cfg        config.Config
	exec       executor.Executor
	summarizer *summary.Summarizer
	router     *summary.Router
	store      *storage.SQLiteStore
	hub        *server.Hub
	publisher  *bus.Publisher
	sinks      summary.Sinks
}

func newApp(ctx context.Context, cfg config.Config, withHub bool) (*app, error) {
	prompts, err := prompt.NewProvider(cfg.Summarization.Prompts)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	gen, err := newGateway(cfg, prompts.System())
	if err != nil {
		return nil, err
	}

	est, err := tokens.New(cfg.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	a := &app{
		cfg:        cfg,
		exec:       executor.New(),
		summarizer: summary.New(gen, prompts, est, summaryOptions(cfg)),
		router:     summary.NewRouter(gen, prompts),
		store:      store,
	}

	if err := a.buildSinks(ctx, withHub); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newGateway(cfg config.Config, system string) (*llm.Gateway, error) {
	provider, modelName, err := llm.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	var opts []llm.Option
	if provider == "ollama" {
		opts = append(opts, llm.WithBaseURL(cfg.OllamaURL))
	}
	client, err := llm.NewClient(provider, cfg.APIKey(provider), modelName, opts...)
	if err != nil {
		return nil, err
	}
	return llm.NewGateway(client, cfg.Model, cfg.CallInterval()).WithSystem(system), nil
}

func summaryOptions(cfg config.Config) summary.Options {
	opts := summary.DefaultOptions()
	s := cfg.Summarization
	opts.ChunkTokens = s.ChunkTokens
	opts.ContextTokens = s.ContextTokens
	opts.FinalThreshold = s.FinalThreshold
	opts.ReductionGroupTokens = s.ReductionGroupTokens
	opts.ReductionMaxPasses = s.ReductionMaxPasses
	opts.DropFailedWindows = s.FailedWindows == config.FailedWindowsDrop
	return opts
}

// buildSinks wires the run sinks. Storage, journal and report sinks come
// first so a failed write stops the run before anything is announced.
func (a *app) buildSinks(ctx context.Context, withHub bool) error {
	a.sinks = summary.Sinks{
		a.store,
		storage.NewJournal(a.cfg.OutputDir),
		storage.NewReportWriter(a.cfg.OutputDir, a.cfg.Docx),
	}

	if a.cfg.GDriveFolderID != "" {
		up, err := gdrive.NewUploader(ctx, a.cfg.GoogleCredentialsFile, a.cfg.GDriveFolderID)
		if err != nil {
			return fmt.Errorf("google drive: %w", err)
		}
		a.sinks = append(a.sinks, up)
		slog.Info("google drive upload enabled", "folder", a.cfg.GDriveFolderID)
	}

	if a.cfg.NATSURL != "" {
		pub, err := bus.Connect(a.cfg.NATSURL)
		if err != nil {
			return err
		}
		a.publisher = pub
		a.sinks = append(a.sinks, pub)
		slog.Info("publishing run events to NATS", "url", a.cfg.NATSURL)
	}

	if withHub {
		a.hub = server.NewHub()
		a.sinks = append(a.sinks, a.hub)
	}
	return nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close storage", "error", err)
	}
}

// resolveCategory maps raw to a category, asking the router when raw is
// "auto" and a transcript is available.
func (a *app) resolveCategory(ctx context.Context, raw, transcript string) prompt.Category {
	if strings.EqualFold(strings.TrimSpace(raw), "auto") {
		if strings.TrimSpace(transcript) == "" {
			return prompt.Meeting
		}
		return a.router.Select(ctx, transcript)
	}
	if raw != "" && !prompt.Valid(raw) {
		slog.Warn("unknown category, using meeting", "category", raw)
	}
	return prompt.ParseCategory(raw)
}

// segmentTranscriber returns the speech-to-text backend for PCM segments.
func (a *app) segmentTranscriber() (transcribe.Transcriber, error) {
	t := a.cfg.Transcription
	switch t.Provider {
	case "whisper-cli", "whisper":
		if err := executor.LookPath(t.WhisperBinary); err != nil {
			return nil, err
		}
		return transcribe.NewWhisperCLI(a.exec, t.WhisperBinary, t.WhisperModel, t.Language), nil
	case "openai":
		return transcribe.NewOpenAI(a.cfg.OpenAIAPIKey, t.OpenAIModel, t.Language, ""), nil
	case "deepgram":
		return nil, fmt.Errorf("deepgram streams live audio only; set transcription.provider to whisper-cli or openai for files")
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", t.Provider)
	}
}

func newRunID(now time.Time) string {
	return now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Amchestnut/NeuralMeet/internal/config"
)

const usage = `usage: neuralmeet <command> [flags] [args]

commands:
  transcript <file>   summarize a text transcript
  file <media>        transcribe and summarize an audio or video file
  live                capture microphone and/or system audio and summarize as it goes
  watch [dir]         summarize every new transcript or media file dropped into dir
  serve               run the HTTP API and websocket event feed

flags:
  -config <path>      config file (default config.yaml)
  -category <name>    meeting, lecture, call or auto (overrides config)
`

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("neuralmeet failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}

	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "config.yaml", "config file")
	category := fs.String("category", "", "meeting, lecture, call or auto")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *category != "" {
		cfg.Category = *category
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat)
	for _, w := range warnings {
		slog.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "transcript", "file":
		if fs.NArg() != 1 {
			return fmt.Errorf("%s: expected exactly one path argument", cmd)
		}
	case "watch":
		if fs.NArg() > 0 {
			cfg.WatchDir = fs.Arg(0)
		}
		if cfg.WatchDir == "" {
			return errors.New("watch: no directory given and watch_dir is not configured")
		}
	case "live", "serve":
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	slog.Info("neuralmeet starting", "command", cmd, "model", cfg.Model, "category", cfg.Category, "stt", cfg.Transcription.Provider)

	a, err := newApp(ctx, cfg, cmd == "serve")
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "transcript":
		_, err = a.summarizeTranscriptFile(ctx, fs.Arg(0))
	case "file":
		_, err = a.summarizeMediaFile(ctx, fs.Arg(0))
	case "live":
		_, err = a.live(ctx)
	case "watch":
		err = a.watch(ctx)
	case "serve":
		err = a.serve(ctx)
	}

	if errors.Is(err, context.Canceled) {
		slog.Info("neuralmeet stopped")
		return nil
	}
	return err
}

func setupLogging(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

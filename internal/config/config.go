package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all NeuralMeet environment variables.
const EnvPrefix = "NEURALMEET_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	Category              string `yaml:"category"`
	Model                 string `yaml:"model"`
	OllamaURL             string `yaml:"ollama_url"`
	Tokenizer             string `yaml:"tokenizer"`
	LogLevel              string `yaml:"log_level"`
	LogFormat             string `yaml:"log_format"`
	OutputDir             string `yaml:"output_dir"`
	DBPath                string `yaml:"db_path"`
	Docx                  bool   `yaml:"docx"`
	NATSURL               string `yaml:"nats_url"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	WatchDir              string `yaml:"watch_dir"`

	Server        Server        `yaml:"server"`
	Summarization Summarization `yaml:"summarization"`
	Live          Live          `yaml:"live"`
	Transcription Transcription `yaml:"transcription"`

	// Secrets: env vars only, never serialized to YAML.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Summarization tunes the windowed summarization pipeline. Token budgets
// are measured with the configured tokenizer.
type Summarization struct {
	ChunkTokens          int    `yaml:"chunk_tokens"`
	ContextTokens        int    `yaml:"context_tokens"`
	FinalThreshold       int    `yaml:"final_threshold"`
	ReductionGroupTokens int    `yaml:"reduction_group_tokens"`
	ReductionMaxPasses   int    `yaml:"reduction_max_passes"`
	FailedWindows        string `yaml:"failed_windows"`
	CallInterval         string `yaml:"call_interval"`

	// Prompts overrides the built-in templates, keyed by "chunk.<category>",
	// "final.<category>", "reduce", "route" or "system".
	Prompts map[string]string `yaml:"prompts"`
}

type Live struct {
	SegmentDuration string   `yaml:"segment_duration"`
	WindowDuration  string   `yaml:"window_duration"`
	SampleRate      int      `yaml:"sample_rate"`
	FramesPerBuffer int      `yaml:"frames_per_buffer"`
	Sources         []string `yaml:"sources"`
	FinalReport     bool     `yaml:"final_report"`
}

type Transcription struct {
	Provider        string `yaml:"provider"`
	WhisperBinary   string `yaml:"whisper_binary"`
	WhisperModel    string `yaml:"whisper_model"`
	Language        string `yaml:"language"`
	OpenAIModel     string `yaml:"openai_model"`
	DeepgramModel   string `yaml:"deepgram_model"`
	SegmentDuration string `yaml:"segment_duration"`
	FFmpegBinary    string `yaml:"ffmpeg_binary"`
}

const (
	FailedWindowsPlaceholder = "placeholder"
	FailedWindowsDrop        = "drop"
)

func defaults() Config {
	return Config{
		Category:              "meeting",
		Model:                 "ollama/llama3.1:latest",
		OllamaURL:             "http://localhost:11434",
		Tokenizer:             "tiktoken",
		LogLevel:              "info",
		LogFormat:             "text",
		OutputDir:             "output",
		DBPath:                "data/neuralmeet.db",
		GoogleCredentialsFile: "./service-account.json",
		Server:                Server{Addr: ":8080"},
		Summarization: Summarization{
			ChunkTokens:          3000,
			ContextTokens:        300,
			FinalThreshold:       4000,
			ReductionGroupTokens: 2000,
			ReductionMaxPasses:   5,
			FailedWindows:        FailedWindowsPlaceholder,
			CallInterval:         "500ms",
		},
		Live: Live{
			SegmentDuration: "10s",
			WindowDuration:  "60s",
			SampleRate:      16000,
			FramesPerBuffer: 1024,
			Sources:         []string{"mic"},
		},
		Transcription: Transcription{
			Provider:        "whisper-cli",
			WhisperBinary:   "whisper-cli",
			WhisperModel:    "models/ggml-base.en.bin",
			Language:        "en",
			OpenAIModel:     "whisper-1",
			DeepgramModel:   "nova-3",
			SegmentDuration: "30s",
			FFmpegBinary:    "ffmpeg",
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// A .env file in the working directory is loaded first; variables already
// present in the environment win over it.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, nil, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// CallInterval returns the minimum spacing between generation calls,
// falling back to 500ms if the value is invalid.
func (c *Config) CallInterval() time.Duration {
	return parseDurationOr(c.Summarization.CallInterval, 500*time.Millisecond)
}

// SegmentDuration returns the live capture segment length, falling back to 10s.
func (c *Config) SegmentDuration() time.Duration {
	return parseDurationOr(c.Live.SegmentDuration, 10*time.Second)
}

// WindowDuration returns the live summarization window, falling back to 60s.
func (c *Config) WindowDuration() time.Duration {
	return parseDurationOr(c.Live.WindowDuration, 60*time.Second)
}

// FileSegmentDuration returns the slice length used when transcribing a
// media file, falling back to 30s.
func (c *Config) FileSegmentDuration() time.Duration {
	return parseDurationOr(c.Transcription.SegmentDuration, 30*time.Second)
}

// APIKey returns the secret matching an LLM provider name. Ollama needs none.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	strVars := map[string]*string{
		"CATEGORY":                &cfg.Category,
		"MODEL":                   &cfg.Model,
		"OLLAMA_URL":              &cfg.OllamaURL,
		"TOKENIZER":               &cfg.Tokenizer,
		"LOG_LEVEL":               &cfg.LogLevel,
		"LOG_FORMAT":              &cfg.LogFormat,
		"OUTPUT_DIR":              &cfg.OutputDir,
		"DB_PATH":                 &cfg.DBPath,
		"NATS_URL":                &cfg.NATSURL,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
		"WATCH_DIR":               &cfg.WatchDir,
		"SERVER_ADDR":             &cfg.Server.Addr,
		"FAILED_WINDOWS":          &cfg.Summarization.FailedWindows,
		"CALL_INTERVAL":           &cfg.Summarization.CallInterval,
		"SEGMENT_DURATION":        &cfg.Live.SegmentDuration,
		"WINDOW_DURATION":         &cfg.Live.WindowDuration,
		"STT_PROVIDER":            &cfg.Transcription.Provider,
		"WHISPER_BINARY":          &cfg.Transcription.WhisperBinary,
		"WHISPER_MODEL":           &cfg.Transcription.WhisperModel,
		"LANGUAGE":                &cfg.Transcription.Language,
		"FFMPEG_BINARY":           &cfg.Transcription.FFmpegBinary,
	}
	for name, dst := range strVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"CHUNK_TOKENS":           &cfg.Summarization.ChunkTokens,
		"CONTEXT_TOKENS":         &cfg.Summarization.ContextTokens,
		"FINAL_THRESHOLD":        &cfg.Summarization.FinalThreshold,
		"REDUCTION_GROUP_TOKENS": &cfg.Summarization.ReductionGroupTokens,
		"REDUCTION_MAX_PASSES":   &cfg.Summarization.ReductionMaxPasses,
		"SAMPLE_RATE":            &cfg.Live.SampleRate,
	}
	for name, dst := range intVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	if v := os.Getenv(EnvPrefix + "SOURCES"); v != "" {
		cfg.Live.Sources = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "DOCX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Docx = b
		}
	}
	if v := os.Getenv(EnvPrefix + "FINAL_REPORT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Live.FinalReport = b
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	provider, _, _ := strings.Cut(cfg.Model, "/")
	if provider != "ollama" && cfg.APIKey(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for model provider %q. Set %s%s_API_KEY.", provider, EnvPrefix, strings.ToUpper(provider)))
	}
	if cfg.Transcription.Provider == "deepgram" && cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured; live streaming transcription will fail. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.Transcription.Provider == "openai" && cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured; segment transcription will fail. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}

	durations := []struct {
		key, raw, fallback string
	}{
		{"summarization.call_interval", cfg.Summarization.CallInterval, "500ms"},
		{"live.segment_duration", cfg.Live.SegmentDuration, "10s"},
		{"live.window_duration", cfg.Live.WindowDuration, "60s"},
		{"transcription.segment_duration", cfg.Transcription.SegmentDuration, "30s"},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(d.raw); err != nil || v <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q; using default %s.", d.key, d.raw, d.fallback))
		}
	}

	switch cfg.Summarization.FailedWindows {
	case FailedWindowsPlaceholder, FailedWindowsDrop:
	default:
		warnings = append(warnings, fmt.Sprintf("Invalid summarization.failed_windows %q; using %q.", cfg.Summarization.FailedWindows, FailedWindowsPlaceholder))
		cfg.Summarization.FailedWindows = FailedWindowsPlaceholder
	}

	if cfg.Summarization.ReductionGroupTokens > cfg.Summarization.FinalThreshold {
		warnings = append(warnings, "summarization.reduction_group_tokens exceeds final_threshold; reduction may not converge.")
	}
	if cfg.Summarization.ContextTokens <= 0 {
		cfg.Summarization.ContextTokens = 300
	}
	if cfg.Summarization.ReductionMaxPasses <= 0 {
		cfg.Summarization.ReductionMaxPasses = 5
	}

	return warnings
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}

	return result
}

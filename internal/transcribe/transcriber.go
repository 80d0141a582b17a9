// Package transcribe converts audio to text. Segment transcribers handle
// one fixed-duration PCM slice at a time; DeepgramStream transcribes a
// continuous stream and yields utterances as they finish.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Amchestnut/NeuralMeet/internal/audio"
	"github.com/Amchestnut/NeuralMeet/internal/executor"
)

// Transcriber turns mono PCM16-LE audio into text. A segment with no
// speech yields "" and no error.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// WhisperCLI shells out to a whisper.cpp binary.
type WhisperCLI struct {
	exec     executor.Executor
	binary   string
	model    string
	language string
	tmpDir   string
}

func NewWhisperCLI(exec executor.Executor, binary, model, language string) *WhisperCLI {
	if binary == "" {
		binary = "whisper-cli"
	}
	if language == "" {
		language = "auto"
	}
	return &WhisperCLI{exec: exec, binary: binary, model: model, language: language}
}

func (w *WhisperCLI) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	wav, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(w.tmpDir, "neuralmeet-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(wav); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp wav: %w", err)
	}

	out, err := w.exec.Execute(ctx, w.binary,
		"-m", w.model,
		"-f", filepath.Clean(f.Name()),
		"-l", w.language,
		"-nt",
		"-np",
	)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	return cleanWhisperOutput(string(out)), nil
}

// cleanWhisperOutput joins output lines and drops whisper's non-speech
// markers such as [BLANK_AUDIO] and (music).
func cleanWhisperOutput(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNonSpeech(line) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

func isNonSpeech(line string) bool {
	return (strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")) ||
		(strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")"))
}

// OpenAI uses the hosted transcription endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

func NewOpenAI(apiKey, model, language, baseURL string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if language == "auto" {
		language = ""
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model, language: language}
}

func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	wav, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", err
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "segment.wav",
		Reader:   bytes.NewReader(wav),
		Language: o.language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

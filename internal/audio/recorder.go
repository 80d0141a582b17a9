package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Amchestnut/NeuralMeet/internal/executor"
)

// Recorder archives a live run's raw capture and encodes it when the run
// stops: mp3 through ffmpeg, then lame, then a plain wav fallback.
type Recorder struct {
	dir    string
	exec   executor.Executor
	ffmpeg string

	mu         sync.Mutex
	name       string
	rawPath    string
	rawFile    *os.File
	sampleRate int

	encode func(ctx context.Context, rawPath, name string, sampleRate int) (string, error)
}

func NewRecorder(dir string, exec executor.Executor, ffmpegBinary string) *Recorder {
	if dir == "" {
		dir = filepath.Join("output", "audio")
	}
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}

	r := &Recorder{dir: dir, exec: exec, ffmpeg: ffmpegBinary, sampleRate: DefaultSampleRate}
	r.encode = r.defaultEncode
	return r
}

// Start opens a raw capture file named after the run and source.
func (r *Recorder) Start(name string, sampleRate int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := filepath.Join(r.dir, name+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.name = name
	r.rawPath = rawPath
	r.rawFile = rawFile
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
	return nil
}

// Writer tees everything written to dst into the open capture file.
func (r *Recorder) Writer(dst io.Writer) io.Writer {
	return &teeWriter{recorder: r, dst: dst}
}

// Stop closes the capture and returns the encoded file's path.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.name == "" || r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}

	name, rawPath, rawFile, rate := r.name, r.rawPath, r.rawFile, r.sampleRate
	r.name, r.rawPath, r.rawFile = "", "", nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	path, err := r.encode(ctx, rawPath, name, rate)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return path, nil
}

func (r *Recorder) writePCM(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return nil
	}
	if _, err := r.rawFile.Write(data); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return nil
}

func (r *Recorder) defaultEncode(ctx context.Context, rawPath, name string, sampleRate int) (string, error) {
	mp3Path := filepath.Join(r.dir, name+".mp3")
	rate := strconv.Itoa(sampleRate)

	_, err := r.exec.Execute(ctx, r.ffmpeg, "-y", "-f", "s16le", "-ar", rate, "-ac", "1", "-i", rawPath, mp3Path)
	if err == nil {
		return mp3Path, nil
	}
	slog.Debug("ffmpeg encode failed, trying lame", "error", err)

	khz := strconv.FormatFloat(float64(sampleRate)/1000.0, 'f', -1, 64)
	if _, err := r.exec.Execute(ctx, "lame", "-r", "-s", khz, "--bitwidth", "16", "-m", "m", rawPath, mp3Path); err == nil {
		return mp3Path, nil
	}

	wavPath := filepath.Join(r.dir, name+".wav")
	if err := pcmToWav(rawPath, wavPath, sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return wavPath, nil
}

type teeWriter struct {
	recorder *Recorder
	dst      io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.recorder.writePCM(p[:n]); err != nil {
		return n, err
	}
	return n, nil
}

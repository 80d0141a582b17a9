package audio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Amchestnut/NeuralMeet/internal/executor"
)

// Decoder turns any media file ffmpeg understands into mono PCM16-LE.
type Decoder struct {
	exec   executor.Executor
	ffmpeg string
}

func NewDecoder(exec executor.Executor, ffmpegBinary string) *Decoder {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Decoder{exec: exec, ffmpeg: ffmpegBinary}
}

func (d *Decoder) Decode(ctx context.Context, path string, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	pcm, err := d.exec.Execute(ctx, d.ffmpeg,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(pcmChannels),
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, nil
}

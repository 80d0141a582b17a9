package session

import (
	"context"
	"time"

	"github.com/Amchestnut/NeuralMeet/internal/audio"
	"github.com/Amchestnut/NeuralMeet/internal/transcribe"
)

// Item is one captured segment. Audio sources carry PCM that still needs
// transcription; streaming transcribers carry Text directly.
type Item struct {
	Source     string
	Audio      []byte
	SampleRate int
	Text       string
	Duration   time.Duration
	At         time.Time
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Producer pushes items until ctx is done or its source ends.
type Producer interface {
	Produce(ctx context.Context, push func(Item)) error
}

type ProducerFunc func(ctx context.Context, push func(Item)) error

func (f ProducerFunc) Produce(ctx context.Context, push func(Item)) error {
	return f(ctx, push)
}

// CaptureProducer adapts an audio capture loop.
func CaptureProducer(c *audio.Capture) Producer {
	return ProducerFunc(func(ctx context.Context, push func(Item)) error {
		return c.Run(ctx, func(seg audio.Segment) {
			push(Item{
				Source:     seg.Source,
				Audio:      seg.PCM,
				SampleRate: seg.SampleRate,
				Duration:   seg.Duration,
				At:         seg.CapturedAt,
			})
		})
	})
}

// StreamProducer adapts a streaming transcriber fed from src.
func StreamProducer(source string, stream *transcribe.DeepgramStream, src transcribe.AudioStreamer) Producer {
	return ProducerFunc(func(ctx context.Context, push func(Item)) error {
		return stream.Run(ctx, src, func(u transcribe.Utterance) {
			push(Item{
				Source:   source,
				Text:     u.Line(),
				Duration: u.Duration(),
				At:       u.Timestamp,
			})
		})
	})
}

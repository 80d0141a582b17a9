package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

type streamer interface {
	Stream(ctx context.Context, w io.Writer) error
}

// Capture turns a live input stream into fixed-duration segments.
type Capture struct {
	Source   string
	Stream   streamer
	Rate     int
	Segment  time.Duration
	Recorder *Recorder

	wait func(time.Duration)
}

// Run streams until ctx is done, emitting each full segment and then the
// trailing partial one.
func (c *Capture) Run(ctx context.Context, emit func(Segment)) error {
	seg := NewSegmenter(c.Source, c.Rate, c.Segment, emit)

	var w io.Writer = seg
	if c.Recorder != nil {
		w = c.Recorder.Writer(seg)
	}

	wait := c.wait
	if wait == nil {
		wait = time.Sleep
	}
	err := streamWithRetry(ctx, c.Stream, w, wait)
	seg.Flush()
	if err != nil {
		return fmt.Errorf("capture %s: %w", c.Source, err)
	}
	return nil
}

// streamWithRetry restarts the stream after input overflows, which
// PortAudio reports when the consumer falls briefly behind.
func streamWithRetry(ctx context.Context, s streamer, w io.Writer, wait func(time.Duration)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.Stream(ctx, w)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			slog.Warn("audio input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		return err
	}
}

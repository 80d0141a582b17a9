package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var initDeepgram sync.Once

type AudioStreamer interface {
	Stream(ctx context.Context, w io.Writer) error
}

type DeepgramOptions struct {
	Model      string
	Language   string
	SampleRate int
}

// DeepgramStream sends live PCM to Deepgram and emits one Utterance per
// finished speaker turn.
type DeepgramStream struct {
	apiKey string
	opts   DeepgramOptions

	mu     sync.Mutex
	buffer wordBuffer
	emit   func(Utterance)
	now    func() time.Time
}

func NewDeepgramStream(apiKey string, opts DeepgramOptions) *DeepgramStream {
	if opts.Model == "" {
		opts.Model = "nova-3"
	}
	if opts.Language == "" || opts.Language == "auto" {
		opts.Language = "en-US"
	}
	return &DeepgramStream{apiKey: apiKey, opts: opts, now: time.Now}
}

// Run streams audio to Deepgram until ctx is done. Pending words are
// flushed as a final utterance before it returns.
func (d *DeepgramStream) Run(ctx context.Context, src AudioStreamer, emit func(Utterance)) error {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()

	initDeepgram.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       d.opts.Model,
		Language:    d.opts.Language,
		Diarize:     true,
		Punctuate:   true,
		SmartFormat: true,
		Encoding:    "linear16",
		SampleRate:  d.opts.SampleRate,
		Channels:    1,
	}

	dg, err := client.NewWSUsingCallback(ctx, d.apiKey, cOptions, tOptions, deepgramCallback{d: d})
	if err != nil {
		return fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return fmt.Errorf("deepgram connect failed")
	}
	defer dg.Stop()

	err = src.Stream(ctx, dg)
	d.flush()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("deepgram stream: %w", err)
	}
	return nil
}

func (d *DeepgramStream) handleMessage(mr *api.MessageResponse) {
	if !mr.IsFinal || len(mr.Channel.Alternatives) == 0 {
		return
	}
	alt := mr.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" {
		return
	}

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{Speaker: w.Speaker, PunctuatedWord: w.PunctuatedWord, Start: w.Start, End: w.End})
	}

	d.mu.Lock()
	d.buffer.add(words)
	d.mu.Unlock()

	if mr.SpeechFinal {
		d.flush()
	}
}

func (d *DeepgramStream) flush() {
	d.mu.Lock()
	words := d.buffer.flush()
	emit := d.emit
	d.mu.Unlock()

	if emit == nil {
		return
	}
	for _, u := range GroupWordsBySpeaker(words, d.now()) {
		emit(u)
	}
}

type deepgramCallback struct {
	d *DeepgramStream
}

func (c deepgramCallback) Message(mr *api.MessageResponse) error {
	c.d.handleMessage(mr)
	return nil
}

func (c deepgramCallback) Open(*api.OpenResponse) error {
	slog.Info("connected to Deepgram")
	return nil
}

func (c deepgramCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c deepgramCallback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c deepgramCallback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.d.flush()
	return nil
}

func (c deepgramCallback) Close(*api.CloseResponse) error {
	slog.Info("disconnected from Deepgram")
	return nil
}

func (c deepgramCallback) Error(er *api.ErrorResponse) error {
	slog.Error("deepgram error", "code", er.ErrCode, "description", er.Description)
	return nil
}

func (c deepgramCallback) UnhandledEvent([]byte) error { return nil }

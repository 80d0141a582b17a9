package transcribe

import (
	"fmt"
	"strings"
	"time"
)

type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// Utterance is a run of consecutive words from one speaker.
type Utterance struct {
	Speaker   int       `json:"speaker"`
	Text      string    `json:"text"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Timestamp time.Time `json:"timestamp"`
}

func (u Utterance) Duration() time.Duration {
	if u.EndTime <= u.StartTime {
		return 0
	}
	return time.Duration((u.EndTime - u.StartTime) * float64(time.Second))
}

// Line renders the utterance as transcript text, prefixed with the speaker
// when diarization identified one.
func (u Utterance) Line() string {
	text := strings.TrimSpace(u.Text)
	if u.Speaker < 0 {
		return text
	}
	return fmt.Sprintf("Speaker %d: %s", u.Speaker, text)
}

func GroupWordsBySpeaker(words []Word, now time.Time) []Utterance {
	if len(words) == 0 {
		return nil
	}

	var out []Utterance
	var current Utterance
	started := false

	for _, w := range words {
		speaker := -1
		if w.Speaker != nil {
			speaker = *w.Speaker
		}

		if started && speaker == current.Speaker {
			current.Text += " " + w.PunctuatedWord
			current.EndTime = w.End
			continue
		}
		if started {
			out = append(out, current)
		}
		current = Utterance{
			Speaker:   speaker,
			Text:      w.PunctuatedWord,
			StartTime: w.Start,
			EndTime:   w.End,
			Timestamp: now,
		}
		started = true
	}

	return append(out, current)
}

// wordBuffer holds final-but-unfinished words until the utterance ends.
type wordBuffer struct {
	words []Word
}

func (b *wordBuffer) add(words []Word) {
	b.words = append(b.words, words...)
}

func (b *wordBuffer) flush() []Word {
	if len(b.words) == 0 {
		return nil
	}
	out := b.words
	b.words = nil
	return out
}

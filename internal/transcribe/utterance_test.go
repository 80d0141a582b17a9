package transcribe

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestGroupWordsBySpeaker(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	words := []Word{
		{Speaker: intPtr(0), PunctuatedWord: "Hello", Start: 0, End: 0.4},
		{Speaker: intPtr(0), PunctuatedWord: "there.", Start: 0.4, End: 0.8},
		{Speaker: intPtr(1), PunctuatedWord: "Hi!", Start: 1.0, End: 1.3},
		{Speaker: intPtr(0), PunctuatedWord: "Okay.", Start: 1.5, End: 2.0},
	}

	got := GroupWordsBySpeaker(words, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 utterances, got %d", len(got))
	}
	if got[0].Text != "Hello there." || got[0].EndTime != 0.8 {
		t.Fatalf("unexpected first utterance: %+v", got[0])
	}
	if got[1].Speaker != 1 || got[1].Text != "Hi!" {
		t.Fatalf("unexpected second utterance: %+v", got[1])
	}
	if !got[2].Timestamp.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, got[2].Timestamp)
	}
}

func TestGroupWordsWithoutSpeaker(t *testing.T) {
	got := GroupWordsBySpeaker([]Word{{PunctuatedWord: "a"}, {PunctuatedWord: "b"}}, time.Now())
	if len(got) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(got))
	}
	if got[0].Line() != "a b" {
		t.Fatalf("expected unlabeled line, got %q", got[0].Line())
	}
	if GroupWordsBySpeaker(nil, time.Now()) != nil {
		t.Fatal("expected nil for no words")
	}
}

func TestUtteranceLineAndDuration(t *testing.T) {
	u := Utterance{Speaker: 2, Text: " we ship friday ", StartTime: 1.5, EndTime: 4}
	if u.Line() != "Speaker 2: we ship friday" {
		t.Fatalf("unexpected line %q", u.Line())
	}
	if u.Duration() != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s, got %v", u.Duration())
	}
	if (Utterance{StartTime: 3, EndTime: 1}).Duration() != 0 {
		t.Fatal("expected zero duration for inverted times")
	}
}

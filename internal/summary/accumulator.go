package summary

import "strings"

type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// Accumulator gathers transcript pieces until their combined amount reaches
// a threshold, then releases them as one window. Live capture measures the
// amount in seconds of audio; batch mode adds one unit per chunk.
type Accumulator struct {
	threshold float64
	parts     []string
	amount    float64
}

func NewAccumulator(threshold float64) *Accumulator {
	return &Accumulator{threshold: threshold}
}

func (a *Accumulator) State() State {
	if len(a.parts) == 0 && a.amount == 0 {
		return Idle
	}
	return Accumulating
}

// Add buffers text worth amount. When the threshold is reached it returns
// the completed window and resets to Idle. Blank text still counts toward
// the amount.
func (a *Accumulator) Add(text string, amount float64) (string, bool) {
	if t := strings.TrimSpace(text); t != "" {
		a.parts = append(a.parts, t)
	}
	a.amount += amount
	if a.amount < a.threshold {
		return "", false
	}
	return a.Flush(), true
}

// Pending returns the buffered text without consuming it.
func (a *Accumulator) Pending() string {
	return strings.Join(a.parts, " ")
}

// Flush returns the buffered text, even below threshold, and resets.
func (a *Accumulator) Flush() string {
	window := a.Pending()
	a.parts = nil
	a.amount = 0
	return window
}

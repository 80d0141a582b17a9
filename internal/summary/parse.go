package summary

import (
	"regexp"
	"strings"
)

// Outcome tags how a window response was interpreted.
type Outcome int

const (
	// OutcomeParsed: the response had both sections.
	OutcomeParsed Outcome = iota
	// OutcomeRaw: the delimiter was missing; the whole response is the chunk part.
	OutcomeRaw
	// OutcomeEmpty: no usable response (failed or blank call).
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeRaw:
		return "raw"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ParsedWindow is the result of one window call. Context is always the
// context to carry forward, which is the incoming one unless the response
// supplied a non-empty replacement.
type ParsedWindow struct {
	Outcome   Outcome
	ChunkPart string
	Context   string
}

// Section labels may be wrapped in Markdown emphasis, headings, backticks
// or followed by a colon. The delimiter may be the full ---DELIMITER--- line
// or a bare ---, with or without the same decoration.
var sectionsPattern = regexp.MustCompile("(?is)CHUNK_PART[*`:]*\\s*(.*?)\\s*[*#`]*---(?:\\s*DELIMITER\\s*---)?[*`]*\\s*[*#`\\s]*UPDATED_CONTEXT[*`:]*\\s*(.*)$")

// ParseResponse splits a window response into its chunk part and updated
// context. incoming is returned as the context whenever the response does
// not carry a usable one.
func ParseResponse(raw, incoming string) ParsedWindow {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedWindow{Outcome: OutcomeEmpty, Context: incoming}
	}

	m := sectionsPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return ParsedWindow{Outcome: OutcomeRaw, ChunkPart: trimmed, Context: incoming}
	}

	out := ParsedWindow{Outcome: OutcomeParsed, ChunkPart: strings.TrimSpace(m[1]), Context: strings.TrimSpace(m[2])}
	if out.Context == "" {
		out.Context = incoming
	}
	return out
}

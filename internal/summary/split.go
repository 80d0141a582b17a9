package summary

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Amchestnut/NeuralMeet/internal/tokens"
)

// Split cuts text into consecutive chunks that each fit maxTokens under est.
// Each cut is the longest prefix that fits, found by binary search over
// byte offsets snapped to rune boundaries. Whitespace at the start of the
// remainder is dropped. A chunk is never shorter than one rune, so a single
// oversized rune still makes progress.
func Split(text string, maxTokens int, est tokens.Estimator) []string {
	if maxTokens <= 0 {
		maxTokens = 1
	}

	var chunks []string
	rest := strings.TrimLeftFunc(text, unicode.IsSpace)
	for rest != "" {
		if est.Count(rest) <= maxTokens {
			chunks = append(chunks, rest)
			break
		}

		cut := largestFittingPrefix(rest, maxTokens, est)
		chunks = append(chunks, rest[:cut])
		rest = strings.TrimLeftFunc(rest[cut:], unicode.IsSpace)
	}
	return chunks
}

// largestFittingPrefix keeps est(text[:left]) <= max and est(text[:right]) > max.
func largestFittingPrefix(text string, maxTokens int, est tokens.Estimator) int {
	_, first := utf8.DecodeRuneInString(text)
	left, right := 0, len(text)
	for right-left > 1 {
		mid := runeStart(text, left+(right-left)/2)
		if mid <= left {
			mid = left + runeLen(text, left)
			if mid >= right {
				break
			}
		}
		if est.Count(text[:mid]) <= maxTokens {
			left = mid
		} else {
			right = mid
		}
	}
	if left < first {
		return first
	}
	return left
}

func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func runeLen(s string, i int) int {
	_, n := utf8.DecodeRuneInString(s[i:])
	return n
}

// Package textnorm normalizes backend output before it enters a typed result.
// The same rules apply to live subprocess output and persisted store text so
// that one logical message compares equal regardless of which path it took.
package textnorm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ansiPattern matches CSI sequences (with private mode ?) and OSC sequences
// (title setting etc). Ordinary bracketed text has no ESC byte and is left
// alone.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\a\x1b]*(\a|\x1b\\)|\x1b[()][AB012]`)

// StripANSI removes terminal escape sequences from text.
func StripANSI(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

// quotePairs maps opening quote-like runes to their closing counterparts.
// Straight quotes and backticks close themselves.
var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'`':      '`',
	'“': '”', // “ ”
	'‘': '’', // ‘ ’
	'«': '»', // « »
	'‹': '›', // ‹ ›
	'„': '“', // „ “
}

// UnwrapQuotes strips exactly one layer of matching surrounding quote
// characters after trimming whitespace. Text that is not wrapped in a single
// matching pair is returned trimmed but otherwise untouched.
func UnwrapQuotes(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) < 2 {
		return trimmed
	}
	closing, ok := quotePairs[runes[0]]
	if !ok || runes[len(runes)-1] != closing {
		return trimmed
	}
	return strings.TrimSpace(string(runes[1 : len(runes)-1]))
}

// Normalize applies the full pipeline: ANSI stripping, trimming, and one
// layer of quote unwrapping. This is the canonical form used for dedup keys.
func Normalize(text string) string {
	return UnwrapQuotes(strings.TrimSpace(StripANSI(text)))
}

// Timestamp heuristics: values at or above this are epoch milliseconds,
// below it (but above epochSecondsMin) epoch seconds. The crossover point
// corresponds to 2001-09-09 in milliseconds and 33658 AD in seconds, so the
// split is unambiguous for any plausible session timestamp.
const (
	epochMillisMin  = 1e12
	epochSecondsMin = 1e6
)

// CoerceTimestamp resolves a heterogeneous timestamp encoding to epoch
// milliseconds. It accepts ISO-8601 strings, epoch-second floats, epoch
// millisecond integers, and json.Number, and returns nil for anything it
// cannot interpret. It never fails.
func CoerceTimestamp(v any) *int64 {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return coerceNumeric(float64(t))
	case int:
		return coerceNumeric(float64(t))
	case float64:
		return coerceNumeric(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return coerceNumeric(f)
	case string:
		return coerceString(t)
	case time.Time:
		ms := t.UnixMilli()
		return &ms
	default:
		return nil
	}
}

func coerceNumeric(f float64) *int64 {
	if f <= 0 {
		return nil
	}
	var ms int64
	switch {
	case f >= epochMillisMin:
		ms = int64(f)
	case f >= epochSecondsMin:
		ms = int64(f * 1000)
	default:
		return nil
	}
	return &ms
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func coerceString(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return coerceNumeric(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ms := t.UnixMilli()
			return &ms
		}
	}
	return nil
}

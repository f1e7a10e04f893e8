package textutil

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WordCount returns the number of whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingMinutes estimates reading time at 200 words per minute, never
// below one. Halves round to even, so 500 words read in 2 minutes and 700
// in 4.
func ReadingMinutes(text string) int {
	minutes := int(math.RoundToEven(float64(WordCount(text)) / 200))
	return max(minutes, 1)
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// Ellipsize truncates s to limit runes, replacing the tail with "..." when
// anything was cut.
func Ellipsize(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return Truncate(s, limit)
	}
	return Truncate(s, limit-3) + "..."
}

// TitleCase converts a hyphenated identifier such as "local-ai" into "Local Ai".
// A cases.Caser keeps state between calls, so each call builds its own.
func TitleCase(value string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(value), "-", " "))
}

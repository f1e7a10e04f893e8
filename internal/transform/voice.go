package transform

import (
	"fmt"
	"strings"
)

// VoiceCheck returns one warning per banned phrase found in text, matched
// case-insensitively. Phrases are reported in list order and each at most once.
func VoiceCheck(text string, banned []string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, len(banned))
	var warnings []string
	for _, phrase := range banned {
		needle := strings.ToLower(strings.TrimSpace(phrase))
		if needle == "" {
			continue
		}
		if _, dup := seen[needle]; dup {
			continue
		}
		seen[needle] = struct{}{}
		if n := strings.Count(lower, needle); n > 0 {
			warnings = append(warnings, fmt.Sprintf("banned phrase %q found %d time(s)", needle, n))
		}
	}
	return warnings
}

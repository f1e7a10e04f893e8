package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 60

var quoteStripper = strings.NewReplacer("'", "", "’", "", "\"", "")

// Slugify converts a title into a lowercase, hyphen-separated ASCII slug no
// longer than MaxSlugLength. Truncation happens at a word boundary; a single
// word longer than the limit is cut at the limit.
func Slugify(title string) string {
	return SlugifyMax(title, MaxSlugLength)
}

// SlugifyMax is Slugify with an explicit length bound.
func SlugifyMax(title string, maxLen int) string {
	words := slugWords(title)
	if len(words) == 0 {
		return ""
	}
	full := strings.Join(words, "-")
	if maxLen <= 0 || len(full) <= maxLen {
		return full
	}
	var b strings.Builder
	for _, word := range words {
		extra := len(word)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('-')
		}
		b.WriteString(word)
	}
	if b.Len() == 0 {
		return strings.Trim(words[0][:maxLen], "-")
	}
	return b.String()
}

func slugWords(title string) []string {
	decomposed := norm.NFKD.String(quoteStripper.Replace(title))
	var (
		words   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks left by decomposition
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return words
}

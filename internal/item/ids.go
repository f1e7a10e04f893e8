package item

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// VideoID returns the platform-native identifier unchanged.
func VideoID(platformID string) string {
	return strings.TrimSpace(platformID)
}

// ArticleID hashes the canonical form of an article URL.
func ArticleID(rawURL string) string {
	return hashKey(CanonicalURL(rawURL))
}

// ManualID hashes the synthetic key for a manually injected topic.
func ManualID(topic string) string {
	return hashKey("manual-" + strings.TrimSpace(topic))
}

// RoundupID hashes the synthetic key for a pillar roundup on the given day.
// A re-run on the same calendar day maps onto the same item.
func RoundupID(pillar string, day time.Time) string {
	return hashKey("roundup-" + strings.TrimSpace(pillar) + "-" + day.Format("2006-01-02"))
}

// CanonicalURL normalizes a URL for identity purposes: surrounding whitespace
// and fragments are dropped and the scheme and host are lowercased.
// Unparseable input is returned trimmed.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

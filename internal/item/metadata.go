package item

import (
	"strconv"
	"strings"
)

// Recognized metadata keys. Unknown keys pass through untouched.
const (
	MetaForcedPillar = "forced_pillar"
	MetaDuration     = "duration"
	MetaSiteName     = "site"
	MetaChannel      = "channel"
	MetaSourceIDs    = "source_ids"
	MetaTranscriptBy = "transcript_source"
	MetaImageURL     = "image_url"
)

// Metadata is the open key-value bag attached to an item.
type Metadata map[string]string

// Get returns the trimmed value for key.
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[key])
}

// Set stores value under key, deleting the key when value is blank.
func (m Metadata) Set(key, value string) {
	if m == nil {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// ForcedPillar returns the pillar override requested at ingest time.
func (m Metadata) ForcedPillar() string {
	return m.Get(MetaForcedPillar)
}

// DurationSeconds returns the recorded media duration, or zero.
func (m Metadata) DurationSeconds() int {
	v, err := strconv.Atoi(m.Get(MetaDuration))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// SourceIDs returns the item IDs a roundup was synthesized from.
func (m Metadata) SourceIDs() []string {
	raw := m.Get(MetaSourceIDs)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetSourceIDs records the item IDs a roundup was synthesized from.
func (m Metadata) SetSourceIDs(ids []string) {
	m.Set(MetaSourceIDs, strings.Join(ids, ","))
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

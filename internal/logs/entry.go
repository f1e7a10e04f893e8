package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"contentpipe/internal/logging"
)

// Entry is one decoded JSON log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	ItemID  string
	Stage   string
	Attrs   map[string]string
	Raw     string
}

// Parse decodes a JSON log line. Lines that are not JSON objects are
// returned with only Raw set and ok false.
func Parse(line string) (Entry, bool) {
	entry := Entry{Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry, false
	}
	entry.Attrs = make(map[string]string, len(fields))
	for key, value := range fields {
		text := stringify(value)
		switch key {
		case logging.JSONTimeKey:
			if ts, err := time.Parse(time.RFC3339, text); err == nil {
				entry.Time = ts
			}
		case logging.JSONLevelKey:
			entry.Level = strings.ToLower(text)
		case logging.JSONMessageKey:
			entry.Message = text
		case logging.FieldItemID:
			entry.ItemID = text
		case logging.FieldStage:
			entry.Stage = text
		default:
			entry.Attrs[key] = text
		}
	}
	return entry, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// Filter narrows entries by item and minimum level.
type Filter struct {
	ItemID   string
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Match reports whether entry passes the filter. Undecodable lines only pass
// an empty filter.
func (f Filter) Match(entry Entry, ok bool) bool {
	itemID := strings.TrimSpace(f.ItemID)
	minLevel := strings.ToLower(strings.TrimSpace(f.MinLevel))
	if itemID == "" && minLevel == "" {
		return true
	}
	if !ok {
		return false
	}
	if itemID != "" && entry.ItemID != itemID {
		return false
	}
	if minLevel != "" {
		want, known := levelRank[minLevel]
		if known && levelRank[entry.Level] < want {
			return false
		}
	}
	return true
}

// Format renders an entry as a single console line.
func Format(entry Entry) string {
	var b strings.Builder
	if !entry.Time.IsZero() {
		b.WriteString(entry.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", strings.ToUpper(entry.Level), entry.Message)
	if entry.ItemID != "" {
		fmt.Fprintf(&b, " item=%s", entry.ItemID)
	}
	if entry.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", entry.Stage)
	}
	keys := make([]string, 0, len(entry.Attrs))
	for key := range entry.Attrs {
		if key == logging.JSONSourceKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, entry.Attrs[key])
	}
	return b.String()
}

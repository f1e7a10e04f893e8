package docs

import (
	"sort"
	"unicode/utf16"
)

// byteIndex maps a document offset to a byte index in text, where text
// holds the body starting at offset 1. Offsets past the end clamp to
// len(text).
func byteIndex(text string, offset int) int {
	units := 1
	for i, r := range text {
		if units >= offset {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(text)
}

// ApplyInserts applies insertions to text. Inserts are applied in order;
// each index addresses the document as it stands after earlier inserts.
func ApplyInserts(text string, inserts []Insert) string {
	for _, ins := range inserts {
		at := byteIndex(text, ins.Index)
		text = text[:at] + ins.Text + text[at:]
	}
	return text
}

// ApplyReplace deletes [start, end) and inserts replacement at start.
func ApplyReplace(text string, start, end int, replacement string) string {
	if end < start {
		start, end = end, start
	}
	from := byteIndex(text, start)
	to := byteIndex(text, end)
	return text[:from] + replacement + text[to:]
}

func sortByModified(infos []Info) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].ModifiedTime.After(infos[j].ModifiedTime)
	})
}

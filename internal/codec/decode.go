package codec

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type section int

const (
	sectionNone section = iota
	sectionTitles
	sectionBlog
	sectionSocial
	sectionInstagram
	sectionTikTok
	sectionCarousel
	sectionOnScreen
)

func (s section) String() string {
	switch s {
	case sectionTitles:
		return "titles"
	case sectionBlog:
		return "blog"
	case sectionSocial:
		return "social"
	case sectionInstagram:
		return "instagram"
	case sectionTikTok:
		return "tiktok"
	case sectionCarousel:
		return "carousel"
	case sectionOnScreen:
		return "tiktok_text"
	default:
		return "none"
	}
}

// headerRule flips the section cursor when marker appears anywhere in a
// trimmed line. from restricts the sections the rule fires in; nil means
// any section. Rules are tried in order and the first one that fires wins.
type headerRule struct {
	marker string
	from   []section
	to     section
}

var headerRules = []headerRule{
	{marker: headerTitles, to: sectionTitles},
	{marker: headerBlog, to: sectionBlog},
	// A blog body line that mentions the social header also ends the blog.
	{marker: headerSocial, to: sectionSocial},
	{marker: headerInsta, from: []section{sectionSocial}, to: sectionInstagram},
	{marker: headerTikTok, to: sectionTikTok},
	{marker: headerCarousel, to: sectionCarousel},
	{marker: headerOnScreen, to: sectionOnScreen},
}

func (r headerRule) firesIn(current section) bool {
	if r.from == nil {
		return true
	}
	for _, s := range r.from {
		if s == current {
			return true
		}
	}
	return false
}

// transition returns the section a header line moves the cursor to.
func transition(current section, trimmed string) (section, bool) {
	for _, rule := range headerRules {
		if strings.Contains(trimmed, rule.marker) && rule.firesIn(current) {
			return rule.to, true
		}
	}
	return current, false
}

type lineTag int

const (
	tagContent lineTag = iota
	tagMeta
	tagHeader
)

type taggedLine struct {
	raw     string
	trimmed string
	tag     lineTag
	meta    string
	value   string
	next    section
}

// metaRule recognises a metadata line. A rule with leadOnly set only
// applies in the block above the first section header, so body text that
// happens to start with the prefix stays in its section.
type metaRule struct {
	prefix   string
	leadOnly bool
}

var metaRules = []metaRule{
	{prefix: prefixStatus},
	{prefix: prefixSource},
	{prefix: prefixPillar},
	{prefix: prefixImage, leadOnly: true},
}

func classify(raw string, current section) taggedLine {
	line := taggedLine{raw: raw, trimmed: strings.TrimSpace(raw)}
	for _, rule := range metaRules {
		if rule.leadOnly && current != sectionNone {
			continue
		}
		if strings.HasPrefix(line.trimmed, rule.prefix) {
			line.tag = tagMeta
			line.meta = rule.prefix
			line.value = strings.TrimSpace(strings.TrimPrefix(line.trimmed, rule.prefix))
			return line
		}
	}
	if next, ok := transition(current, line.trimmed); ok {
		line.tag = tagHeader
		line.next = next
	}
	return line
}

var (
	titlePattern = regexp.MustCompile(`^\d+\.\s*(.+)$`)
	slidePattern = regexp.MustCompile(`^Slide \d+:\s*(.+)$`)
)

type decoder struct {
	doc     Document
	current section
	blog    []string
	script  strings.Builder
}

// Decode parses review document text. It never fails; absent sections
// leave their fields empty.
func Decode(text string) Document {
	d := &decoder{}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, raw := range strings.Split(text, "\n") {
		d.consume(classify(raw, d.current))
	}
	d.doc.Blog = strings.TrimSpace(strings.Join(d.blog, "\n"))
	d.doc.VideoScript = strings.TrimSpace(d.script.String())
	d.doc.MetaDescription = MetaDescription(d.doc.Blog)
	return d.doc
}

func (d *decoder) consume(line taggedLine) {
	switch line.tag {
	case tagMeta:
		d.setMeta(line.meta, line.value)
		return
	case tagHeader:
		d.current = line.next
		return
	}

	switch d.current {
	case sectionTitles:
		if m := titlePattern.FindStringSubmatch(line.trimmed); m != nil {
			d.doc.Titles = append(d.doc.Titles, strings.TrimSpace(m[1]))
		}
	case sectionBlog:
		d.blog = append(d.blog, line.raw)
	case sectionInstagram:
		switch {
		case strings.HasPrefix(line.trimmed, prefixShortCaption):
			d.doc.ShortCaption = strings.TrimSpace(strings.TrimPrefix(line.trimmed, prefixShortCaption))
		case strings.HasPrefix(line.trimmed, prefixLongCaption):
			d.doc.LongCaption = strings.TrimSpace(strings.TrimPrefix(line.trimmed, prefixLongCaption))
		}
	case sectionCarousel:
		if m := slidePattern.FindStringSubmatch(line.trimmed); m != nil {
			d.doc.CarouselSlides = append(d.doc.CarouselSlides, strings.TrimSpace(m[1]))
		}
	case sectionTikTok:
		if line.trimmed != "" && !strings.Contains(line.trimmed, headerOnScreen) {
			d.script.WriteString(line.raw)
			d.script.WriteByte('\n')
		}
	case sectionOnScreen:
		if line.trimmed != "" {
			d.doc.OnScreenText = append(d.doc.OnScreenText, line.trimmed)
		}
	}
}

func (d *decoder) setMeta(prefix, value string) {
	switch prefix {
	case prefixStatus:
		d.doc.Status = value
	case prefixSource:
		d.doc.SourceURL = value
	case prefixPillar:
		d.doc.Pillar = value
	case prefixImage:
		d.doc.ImageURL = value
	}
}

// MetaDescription returns the first paragraph of body that is not a
// heading, cut to MetaDescriptionLimit characters. A paragraph is a maximal
// run of non-blank lines.
func MetaDescription(body string) string {
	var para []string
	flush := func() string {
		if len(para) == 0 {
			return ""
		}
		text := strings.TrimSpace(strings.Join(para, "\n"))
		para = para[:0]
		if text == "" || strings.HasPrefix(text, "#") {
			return ""
		}
		return truncateRunes(text, MetaDescriptionLimit)
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			if desc := flush(); desc != "" {
				return desc
			}
			continue
		}
		para = append(para, line)
	}
	return flush()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// StatusLineRange locates the first STATUS line in document text and
// returns its offsets including the trailing newline. Offsets use the same
// units and origin as Block.
func StatusLineRange(text string) (start, end int, ok bool) {
	offset := DocumentStart
	for _, line := range strings.SplitAfter(text, "\n") {
		length := TextLength(line)
		if strings.HasPrefix(line, prefixStatus) {
			return offset, offset + length, true
		}
		offset += length
	}
	return 0, 0, false
}

// StatusLine renders a replacement STATUS line.
func StatusLine(status string) string {
	return prefixStatus + " " + strings.TrimSpace(status) + "\n"
}

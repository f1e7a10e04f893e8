package codec

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// Style is the paragraph style applied to an inserted block.
type Style int

const (
	StyleNormal Style = iota
	StyleHeading1
	StyleHeading2
	StyleHeading3
)

// String returns the document service's named style.
func (s Style) String() string {
	switch s {
	case StyleHeading1:
		return "HEADING_1"
	case StyleHeading2:
		return "HEADING_2"
	case StyleHeading3:
		return "HEADING_3"
	default:
		return "NORMAL_TEXT"
	}
}

// Block is one insertion. Text always ends with a newline and End is the
// offset the next block starts at.
type Block struct {
	Offset int
	Text   string
	Style  Style
}

// End returns the offset just past the inserted text.
func (b Block) End() int {
	return b.Offset + TextLength(b.Text)
}

// DocumentStart is the first insertable offset of an empty document.
const DocumentStart = 1

// Section headers shared by the encoder and the decoder.
const (
	headerTitles   = "Title Options"
	headerBlog     = "Blog Draft"
	headerSocial   = "Social Media Assets"
	headerInsta    = "Instagram"
	headerCarousel = "Carousel Slides"
	headerTikTok   = "TikTok Script"
	headerOnScreen = "On Screen Text"

	prefixStatus = "STATUS:"
	prefixSource = "SOURCE:"
	prefixPillar = "PILLAR:"
	prefixImage  = "IMAGE:"

	prefixShortCaption = "Short Caption:"
	prefixLongCaption  = "Long Caption:"
)

// TextLength counts UTF-16 code units, the unit document offsets use.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

type encoder struct {
	cursor int
	blocks []Block
}

func (e *encoder) add(text string, style Style) {
	if text == "" {
		return
	}
	b := Block{Offset: e.cursor, Text: text + "\n", Style: style}
	e.blocks = append(e.blocks, b)
	e.cursor = b.End()
}

// Encode renders the document as insertion blocks in order. Empty texts are
// skipped and leave the cursor unchanged. Single-line fields have embedded
// newlines folded to spaces so the decoder can recover them.
func Encode(doc Document) []Block {
	e := &encoder{cursor: DocumentStart}

	var meta strings.Builder
	status := strings.TrimSpace(doc.Status)
	if status == "" {
		status = StatusReadyForReview
	}
	fmt.Fprintf(&meta, "%s %s\n", prefixStatus, status)
	fmt.Fprintf(&meta, "%s %s\n", prefixSource, oneLine(doc.SourceURL))
	fmt.Fprintf(&meta, "%s %s\n", prefixPillar, oneLine(doc.Pillar))
	if image := oneLine(doc.ImageURL); image != "" {
		fmt.Fprintf(&meta, "%s %s\n", prefixImage, image)
	}
	e.add(meta.String(), StyleNormal)

	e.add(headerTitles, StyleHeading2)
	for i, title := range doc.Titles {
		e.add(fmt.Sprintf("%d. %s", i+1, oneLine(title)), StyleNormal)
	}

	e.add(headerBlog, StyleHeading1)
	e.add(doc.Blog, StyleNormal)

	if doc.HasSocial() {
		e.add(headerSocial, StyleHeading1)

		e.add(headerInsta, StyleHeading2)
		e.add(prefixShortCaption+" "+oneLine(doc.ShortCaption), StyleNormal)
		e.add(prefixLongCaption+" "+oneLine(doc.LongCaption), StyleNormal)

		e.add(headerCarousel, StyleHeading3)
		for i, slide := range doc.CarouselSlides {
			e.add(fmt.Sprintf("Slide %d: %s", i+1, oneLine(slide)), StyleNormal)
		}

		e.add(headerTikTok, StyleHeading2)
		e.add(scriptBody(doc.VideoScript), StyleNormal)

		if len(doc.OnScreenText) > 0 {
			e.add(headerOnScreen, StyleHeading3)
			lines := make([]string, 0, len(doc.OnScreenText))
			for _, entry := range doc.OnScreenText {
				if entry = oneLine(entry); entry != "" {
					lines = append(lines, entry)
				}
			}
			e.add(strings.Join(lines, "\n"), StyleNormal)
		}
	}
	return e.blocks
}

// PlainText concatenates the block texts the way the document service
// would return them.
func PlainText(blocks []Block) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block.Text)
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// scriptBody drops blank lines, which the decoder cannot represent.
func scriptBody(script string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

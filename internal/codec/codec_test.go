package codec

import (
	"reflect"
	"strings"
	"testing"

	"contentpipe/internal/item"
)

func sampleDocument() Document {
	return Document{
		Status:    StatusReadyForReview,
		SourceURL: "https://example.com/post",
		Pillar:    "local-ai",
		ImageURL:  "https://drive.example/img",
		Titles:    []string{"Run Models Locally", "Local AI in 10 Minutes", "Your Laptop Is Enough"},
		Blog: strings.Join([]string{
			"# Run Models Locally",
			"",
			"Local inference is practical today.",
			"It needs less hardware than you think.",
			"",
			"## Setup",
			"",
			"Install the runtime, then pull a model. Follow along on Instagram for clips.",
		}, "\n"),
		ShortCaption:   "Local AI, no cloud.",
		LongCaption:    "Everything you need to run models at home.",
		CarouselSlides: []string{"Why local", "What hardware", "First model"},
		VideoScript:    "Hook: your laptop can run AI.\nShow the install.\nCall to action.",
		OnScreenText:   []string{"No cloud", "Free", "Private"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := sampleDocument()
	decoded := Decode(PlainText(Encode(doc)))

	if decoded.Status != doc.Status || decoded.SourceURL != doc.SourceURL || decoded.Pillar != doc.Pillar || decoded.ImageURL != doc.ImageURL {
		t.Fatalf("metadata mismatch: %+v", decoded)
	}
	if !reflect.DeepEqual(decoded.Titles, doc.Titles) {
		t.Fatalf("titles = %v, want %v", decoded.Titles, doc.Titles)
	}
	if decoded.Blog != doc.Blog {
		t.Fatalf("blog mismatch:\n%q\nwant\n%q", decoded.Blog, doc.Blog)
	}
	if decoded.ShortCaption != doc.ShortCaption || decoded.LongCaption != doc.LongCaption {
		t.Fatalf("captions mismatch: %q / %q", decoded.ShortCaption, decoded.LongCaption)
	}
	if !reflect.DeepEqual(decoded.CarouselSlides, doc.CarouselSlides) {
		t.Fatalf("slides = %v", decoded.CarouselSlides)
	}
	if decoded.VideoScript != doc.VideoScript {
		t.Fatalf("script = %q", decoded.VideoScript)
	}
	if !reflect.DeepEqual(decoded.OnScreenText, doc.OnScreenText) {
		t.Fatalf("on screen text = %v", decoded.OnScreenText)
	}
	want := "Local inference is practical today.\nIt needs less hardware than you think."
	if decoded.MetaDescription != want {
		t.Fatalf("meta description = %q", decoded.MetaDescription)
	}
}

func TestEncodeOffsetsChain(t *testing.T) {
	doc := sampleDocument()
	doc.Titles[0] = "Emoji 🚀 title"
	blocks := Encode(doc)
	if len(blocks) == 0 || blocks[0].Offset != DocumentStart {
		t.Fatalf("first block should start at %d: %+v", DocumentStart, blocks)
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Offset != blocks[i-1].End() {
			t.Fatalf("block %d offset %d, previous end %d", i, blocks[i].Offset, blocks[i-1].End())
		}
	}
	last := blocks[len(blocks)-1]
	if got, want := last.End(), DocumentStart+TextLength(PlainText(blocks)); got != want {
		t.Fatalf("last end = %d, want %d", got, want)
	}
	if TextLength("🚀") != 2 {
		t.Fatalf("astral runes should count two units")
	}
}

func TestEncodeHeadingStyles(t *testing.T) {
	styles := map[string]Style{}
	for _, b := range Encode(sampleDocument()) {
		styles[strings.TrimSuffix(b.Text, "\n")] = b.Style
	}
	want := map[string]Style{
		"Title Options":       StyleHeading2,
		"Blog Draft":          StyleHeading1,
		"Social Media Assets": StyleHeading1,
		"Instagram":           StyleHeading2,
		"Carousel Slides":     StyleHeading3,
		"TikTok Script":       StyleHeading2,
		"On Screen Text":      StyleHeading3,
	}
	for text, style := range want {
		if styles[text] != style {
			t.Fatalf("%q style = %s, want %s", text, styles[text], style)
		}
	}
}

func TestEncodeOmitsSocialWhenEmpty(t *testing.T) {
	doc := sampleDocument()
	doc.ShortCaption, doc.LongCaption, doc.VideoScript = "", "", ""
	doc.CarouselSlides, doc.OnScreenText = nil, nil
	text := PlainText(Encode(doc))
	if strings.Contains(text, "Social Media Assets") {
		t.Fatalf("unexpected social section:\n%s", text)
	}
	if Decode(text).HasSocial() {
		t.Fatal("decoded social fields should be empty")
	}
}

func TestEncodeSkipsEmptyBlocks(t *testing.T) {
	doc := sampleDocument()
	doc.Blog = ""
	for _, b := range Encode(doc) {
		if b.Text == "\n" {
			t.Fatalf("empty block emitted at offset %d", b.Offset)
		}
	}
}

func TestDecodeTolerance(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, d Document)
	}{
		{
			name: "empty",
			text: "",
			check: func(t *testing.T, d Document) {
				if !reflect.DeepEqual(d, Document{}) {
					t.Fatalf("expected zero document, got %+v", d)
				}
			},
		},
		{
			name: "garbage",
			text: "lorem ipsum\n\n42. not a title\nSlide 3: stray",
			check: func(t *testing.T, d Document) {
				if len(d.Titles) != 0 || len(d.CarouselSlides) != 0 || d.Blog != "" {
					t.Fatalf("stray lines outside sections should be ignored: %+v", d)
				}
			},
		},
		{
			name: "reordered sections",
			text: "Blog Draft\nBody text.\nTitle Options\n1. Late title\nSTATUS: approved\n",
			check: func(t *testing.T, d Document) {
				if d.Blog != "Body text." || d.PrimaryTitle() != "Late title" || !d.Approved() {
					t.Fatalf("unexpected decode: %+v", d)
				}
			},
		},
		{
			name: "instagram outside social",
			text: "Instagram\nShort Caption: ignored\nBlog Draft\nSee Instagram for more.",
			check: func(t *testing.T, d Document) {
				if d.ShortCaption != "" {
					t.Fatalf("caption should be ignored outside social: %q", d.ShortCaption)
				}
				if d.Blog != "See Instagram for more." {
					t.Fatalf("blog = %q", d.Blog)
				}
			},
		},
		{
			name: "missing status",
			text: "Title Options\n1. A\n",
			check: func(t *testing.T, d Document) {
				if d.Approved() || d.Status != "" {
					t.Fatalf("missing status must not approve: %+v", d)
				}
			},
		},
		{
			name: "crlf",
			text: "STATUS: APPROVED\r\nTitle Options\r\n1. Windows\r\n",
			check: func(t *testing.T, d Document) {
				if d.PrimaryTitle() != "Windows" || d.Status != "APPROVED" {
					t.Fatalf("unexpected decode: %+v", d)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, Decode(tc.text))
		})
	}
}

func TestDecodeBlogEndsAtSocialHeader(t *testing.T) {
	text := "Blog Draft\n\nLine one\n\nLine two\n\nSocial Media Assets\nInstagram\nShort Caption: hi\n"
	d := Decode(text)
	if d.Blog != "Line one\n\nLine two" {
		t.Fatalf("blog = %q", d.Blog)
	}
	if d.ShortCaption != "hi" {
		t.Fatalf("short caption = %q", d.ShortCaption)
	}
}

func TestDecodeKeepsImageLineInsideBlog(t *testing.T) {
	doc := sampleDocument()
	doc.Blog = "Intro paragraph.\n\nIMAGE: diagram of the flow below\n\nOutro."
	decoded := Decode(PlainText(Encode(doc)))
	if decoded.Blog != doc.Blog {
		t.Fatalf("blog = %q, want %q", decoded.Blog, doc.Blog)
	}
	if decoded.ImageURL != doc.ImageURL {
		t.Fatalf("image = %q, want %q", decoded.ImageURL, doc.ImageURL)
	}

	doc.ImageURL = ""
	decoded = Decode(PlainText(Encode(doc)))
	if decoded.ImageURL != "" || !strings.Contains(decoded.Blog, "IMAGE: diagram") {
		t.Fatalf("blog image line leaked into metadata: image=%q blog=%q", decoded.ImageURL, decoded.Blog)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from section
		line string
		want section
		ok   bool
	}{
		{sectionNone, "Title Options", sectionTitles, true},
		{sectionBlog, "Social Media Assets", sectionSocial, true},
		{sectionSocial, "Instagram", sectionInstagram, true},
		{sectionBlog, "Instagram", sectionBlog, false},
		{sectionInstagram, "Carousel Slides", sectionCarousel, true},
		{sectionCarousel, "TikTok Script", sectionTikTok, true},
		{sectionTikTok, "On Screen Text", sectionOnScreen, true},
		{sectionBlog, "Blog Draft and Title Options", sectionTitles, true},
		{sectionBlog, "plain prose", sectionBlog, false},
	}
	for _, tc := range tests {
		got, ok := transition(tc.from, tc.line)
		if got != tc.want || ok != tc.ok {
			t.Errorf("transition(%s, %q) = %s,%v want %s,%v", tc.from, tc.line, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMetaDescription(t *testing.T) {
	if got := MetaDescription("# Heading\n\n## Sub\n\nFirst para."); got != "First para." {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("word ", 50)
	if got := MetaDescription(long); len([]rune(got)) > MetaDescriptionLimit {
		t.Fatalf("description too long: %d", len(got))
	}
	if got := MetaDescription("# Only heading"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestStatusLineRange(t *testing.T) {
	text := "STATUS: READY FOR REVIEW\nSOURCE: x\n"
	start, end, ok := StatusLineRange(text)
	if !ok || start != 1 || end != 26 {
		t.Fatalf("range = %d,%d,%v", start, end, ok)
	}
	if _, _, ok := StatusLineRange("no status here"); ok {
		t.Fatal("expected no status line")
	}
	if StatusLine(" PUBLISHED ") != "STATUS: PUBLISHED\n" {
		t.Fatalf("status line = %q", StatusLine(" PUBLISHED "))
	}
}

func TestFromItemAndSocialDraft(t *testing.T) {
	it := &item.Item{
		SourceURL: "https://example.com",
		Blog:      &item.BlogDraft{TitleOptions: []string{"A"}, ContentPillar: "news", FullText: "Body"},
		Social:    &item.SocialDraft{ShortCaption: "s", CarouselSlides: []string{"one"}},
	}
	doc := FromItem(it, "")
	if doc.Status != StatusReadyForReview || doc.Pillar != "news" || doc.Blog != "Body" {
		t.Fatalf("unexpected document %+v", doc)
	}
	social := Decode(PlainText(Encode(doc))).SocialDraft()
	if social == nil || social.ShortCaption != "s" || len(social.CarouselSlides) != 1 {
		t.Fatalf("unexpected social draft %+v", social)
	}
}

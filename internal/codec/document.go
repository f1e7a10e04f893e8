package codec

import (
	"strings"

	"contentpipe/internal/item"
)

// Status values written to and read from the STATUS metadata line.
const (
	StatusReadyForReview = "READY FOR REVIEW"
	StatusApproved       = "APPROVED"
	StatusPublished      = "PUBLISHED"
)

// MetaDescriptionLimit caps the derived meta description.
const MetaDescriptionLimit = 160

// Document is the structured view of a review document. Encode reads it
// and Decode produces it.
type Document struct {
	Status          string
	SourceURL       string
	Pillar          string
	ImageURL        string
	Titles          []string
	Blog            string
	MetaDescription string
	ShortCaption    string
	LongCaption     string
	CarouselSlides  []string
	VideoScript     string
	OnScreenText    []string
}

// Approved reports whether the status line carries the approval token.
func (d Document) Approved() bool {
	return strings.Contains(strings.ToUpper(d.Status), StatusApproved)
}

// PrimaryTitle returns the first title option or an empty string.
func (d Document) PrimaryTitle() string {
	if len(d.Titles) == 0 {
		return ""
	}
	return d.Titles[0]
}

// HasSocial reports whether any social field survived decoding.
func (d Document) HasSocial() bool {
	return d.ShortCaption != "" || d.LongCaption != "" || len(d.CarouselSlides) > 0 ||
		d.VideoScript != "" || len(d.OnScreenText) > 0
}

// FromItem builds the document for a transformed item.
func FromItem(it *item.Item, imageURL string) Document {
	doc := Document{
		Status:    StatusReadyForReview,
		SourceURL: it.SourceURL,
		ImageURL:  imageURL,
	}
	if it.Blog != nil {
		doc.Pillar = it.Blog.ContentPillar
		doc.Titles = append([]string(nil), it.Blog.TitleOptions...)
		doc.Blog = it.Blog.FullText
		doc.MetaDescription = it.Blog.MetaDescription
	}
	if !it.Social.IsEmpty() {
		doc.ShortCaption = it.Social.ShortCaption
		doc.LongCaption = it.Social.LongCaption
		doc.CarouselSlides = append([]string(nil), it.Social.CarouselSlides...)
		doc.VideoScript = it.Social.VideoScript
		doc.OnScreenText = append([]string(nil), it.Social.OnScreenText...)
	}
	return doc
}

// SocialDraft returns the decoded social fields, or nil when none are set.
func (d Document) SocialDraft() *item.SocialDraft {
	if !d.HasSocial() {
		return nil
	}
	return &item.SocialDraft{
		ShortCaption:   d.ShortCaption,
		LongCaption:    d.LongCaption,
		CarouselSlides: append([]string(nil), d.CarouselSlides...),
		VideoScript:    d.VideoScript,
		OnScreenText:   append([]string(nil), d.OnScreenText...),
	}
}

package stage

import (
	"strings"

	"contentpipe/internal/item"
	"contentpipe/internal/services"
)

// RequireRawText returns a validation error when the item has no source text.
func RequireRawText(stageName string, it *item.Item) error {
	if it == nil || strings.TrimSpace(it.RawText) == "" {
		return services.Wrap(services.ErrValidation, stageName, "validate item",
			"Item has no source text; re-ingest the source", nil)
	}
	return nil
}

// RequireBlog returns a validation error when the item carries no usable
// blog draft.
func RequireBlog(stageName string, it *item.Item) error {
	if it == nil || it.Blog == nil || strings.TrimSpace(it.Blog.FullText) == "" {
		return services.Wrap(services.ErrValidation, stageName, "validate item",
			"Item has no blog draft; rerun transform", nil)
	}
	if it.Blog.PrimaryTitle() == "" {
		return services.Wrap(services.ErrValidation, stageName, "validate item",
			"Blog draft has no title options; rerun transform", nil)
	}
	return nil
}

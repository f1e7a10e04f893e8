package stage

import (
	"errors"
	"testing"

	"contentpipe/internal/item"
	"contentpipe/internal/services"
)

func TestRequireRawText(t *testing.T) {
	if err := RequireRawText("transform", &item.Item{RawText: "body"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, it := range []*item.Item{nil, {RawText: "  \n"}} {
		err := RequireRawText("transform", it)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
}

func TestRequireBlog(t *testing.T) {
	valid := &item.Item{Blog: &item.BlogDraft{TitleOptions: []string{"Title"}, FullText: "Body"}}
	if err := RequireBlog("draft", valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := map[string]*item.Item{
		"nil item":  nil,
		"no blog":   {},
		"no body":   {Blog: &item.BlogDraft{TitleOptions: []string{"Title"}}},
		"no titles": {Blog: &item.BlogDraft{FullText: "Body"}},
	}
	for name, it := range cases {
		if err := RequireBlog("draft", it); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy("transform"); !h.Ready || h.Name != "transform" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := Unhealthy("draft", "no credentials"); h.Ready || h.Detail != "no credentials" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}

func TestHealthStatus(t *testing.T) {
	if got := Healthy("x").Status(); got != "ready" {
		t.Fatalf("status = %q", got)
	}
	if got := Unhealthy("x", "").Status(); got != "unavailable" {
		t.Fatalf("status = %q", got)
	}
	if got := Unhealthy("x", "missing key").Status(); got != "missing key" {
		t.Fatalf("status = %q", got)
	}
}

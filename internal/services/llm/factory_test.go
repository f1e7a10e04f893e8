package llm

import (
	"testing"

	"contentpipe/internal/config"
)

func TestNewFromConfigSelectsProvider(t *testing.T) {
	gen, err := NewFromConfig(config.Generation{Provider: config.ProviderOpenRouter, APIKey: "k", Model: "m"}, "")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	client, ok := gen.(*Client)
	if !ok {
		t.Fatalf("expected *Client, got %T", gen)
	}
	if client.cfg.Model != "m" {
		t.Fatalf("unexpected model %q", client.cfg.Model)
	}

	gen, err = NewFromConfig(config.Generation{Provider: config.ProviderOpenRouter, APIKey: "k", Model: "m"}, "social")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if gen.(*Client).cfg.Model != "social" {
		t.Fatal("expected model override")
	}

	if _, err := NewFromConfig(config.Generation{Provider: "other"}, ""); err == nil {
		t.Fatal("expected unsupported provider error")
	}
	if _, err := NewFromConfig(config.Generation{Provider: config.ProviderAnthropic}, ""); err == nil {
		t.Fatal("expected missing key error")
	}
}

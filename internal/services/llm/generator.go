package llm

import (
	"context"
	"fmt"
	"sort"
)

// Schema declares the JSON shape a generation must return. Definition is a
// JSON Schema object.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Request is one schema-constrained generation call.
type Request struct {
	System    string
	User      string
	Schema    Schema
	Model     string
	MaxTokens int
}

// Response carries the structured payload and the metered token counts.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator is the generation service boundary used by transform and roundup.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// HealthChecker is implemented by generators that can verify credentials.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerateInto runs a generation and decodes the payload into target. The
// response is returned even when decoding fails so token usage can still be
// recorded.
func GenerateInto(ctx context.Context, gen Generator, req Request, target any) (Response, error) {
	resp, err := gen.Generate(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := DecodeLLMJSON(resp.Content, target); err != nil {
		return resp, fmt.Errorf("decode %s payload: %w", schemaLabel(req.Schema), err)
	}
	return resp, nil
}

func schemaLabel(s Schema) string {
	if s.Name == "" {
		return "generation"
	}
	return s.Name
}

// ObjectSchema builds a strict JSON Schema object where every listed
// property is required.
func ObjectSchema(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for key := range properties {
		required = append(required, key)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// StringProp and StringListProp are shorthand for schema properties.
func StringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func StringListProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

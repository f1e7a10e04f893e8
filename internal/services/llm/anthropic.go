package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// AnthropicConfig configures the langchaingo-backed Anthropic provider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Anthropic adapts a langchaingo model to the Generator interface. The
// schema is embedded in the system prompt since the provider has no
// response_format parameter.
type Anthropic struct {
	model     llms.Model
	modelName string
	maxTokens int
}

// NewAnthropic constructs the provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key required")
	}
	opts := []anthropic.Option{
		anthropic.WithToken(strings.TrimSpace(cfg.APIKey)),
		anthropic.WithModel(strings.TrimSpace(cfg.Model)),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, anthropic.WithBaseURL(base))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return NewAnthropicWithModel(model, cfg.Model, cfg.MaxTokens), nil
}

// NewAnthropicWithModel wraps an existing langchaingo model.
func NewAnthropicWithModel(model llms.Model, name string, maxTokens int) *Anthropic {
	return &Anthropic{model: model, modelName: strings.TrimSpace(name), maxTokens: maxTokens}
}

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	system := strings.TrimSpace(req.System)
	user := strings.TrimSpace(req.User)
	if system == "" || user == "" {
		return Response{}, errors.New("anthropic generate: system and user prompts required")
	}
	if len(req.Schema.Definition) > 0 {
		encoded, err := json.MarshalIndent(req.Schema.Definition, "", "  ")
		if err != nil {
			return Response{}, fmt.Errorf("anthropic generate: encode schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object only, no prose or code fences, matching this JSON Schema:\n" + string(encoded)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	callOpts := []llms.CallOption{llms.WithTemperature(0.7)}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	model := a.modelName
	if m := strings.TrimSpace(req.Model); m != "" {
		model = m
		callOpts = append(callOpts, llms.WithModel(m))
	}

	resp, err := a.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, errors.New("anthropic generate: no response choices")
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Content)
	if content == "" {
		return Response{}, fmt.Errorf("anthropic generate: empty content (stop_reason=%q)", choice.StopReason)
	}
	return Response{
		Content:      content,
		Model:        model,
		InputTokens:  intFromInfo(choice.GenerationInfo, "InputTokens"),
		OutputTokens: intFromInfo(choice.GenerationInfo, "OutputTokens"),
	}, nil
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

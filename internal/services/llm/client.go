package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	jsonResponseType = "json_object"
	jsonSchemaType   = "json_schema"

	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	generateTemp       = 0.7
)

// Config holds the OpenRouter connection settings. BaseURL is the full chat
// completions endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = defaultEndpoint
	}
	c.Model = strings.TrimSpace(c.Model)
	c.Referer = strings.TrimSpace(c.Referer)
	c.Title = strings.TrimSpace(c.Title)
	return c
}

// Client talks to an OpenAI-compatible chat completions endpoint with JSON
// schema constrained output.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per call.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first backoff delay and the cap.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.max = max
	}
}

// WithSleeper replaces the retry wait. Tests use it to record delays.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// NewClient builds an OpenRouter client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.normalized()
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate asks for a completion constrained to req.Schema and reports the
// provider's token usage.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	system, user := strings.TrimSpace(req.System), strings.TrimSpace(req.User)
	switch {
	case system == "":
		return Response{}, errors.New("llm generate: system prompt required")
	case user == "":
		return Response{}, errors.New("llm generate: user prompt required")
	case c.cfg.APIKey == "":
		return Response{}, errors.New("llm generate: api key required")
	}

	model := firstNonEmpty(req.Model, c.cfg.Model)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	completion, err := c.complete(ctx, "llm generate", chatCompletionRequest{
		Model:          model,
		Messages:       conversation(system, user),
		Temperature:    generateTemp,
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat(req.Schema),
	})
	if err != nil {
		return Response{}, err
	}
	content, _ := completion.content()
	return Response{
		Content:      content,
		Model:        model,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

// HealthCheck sends a one-line JSON ping to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	completion, err := c.complete(ctx, "llm health", chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       conversation("You must respond with JSON only.", `Respond with {"ok":true}`),
		ResponseFormat: responseFormat(Schema{}),
	})
	if err != nil {
		return err
	}
	content, _ := completion.content()
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func conversation(system, user string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func responseFormat(schema Schema) any {
	if schema.Name == "" || len(schema.Definition) == 0 {
		return map[string]string{"type": jsonResponseType}
	}
	return map[string]any{
		"type": jsonSchemaType,
		"json_schema": map[string]any{
			"name":   schema.Name,
			"strict": true,
			"schema": schema.Definition,
		},
	}
}

// complete posts payload until a non-empty completion arrives or the retry
// policy gives up.
func (c *Client) complete(ctx context.Context, op string, payload chatCompletionRequest) (chatCompletionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("%s: encode body: %w", op, err)
	}

	attempts := c.retry.maxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		completion, raw, err := c.post(ctx, body)
		if err == nil {
			if _, ok := completion.content(); ok {
				return completion, nil
			}
			err = completion.emptyError(op, raw)
		}
		lastErr = err

		delay, retry := c.retry.next(ctx, err, attempt)
		if !retry {
			if attempt == 1 {
				return chatCompletionResponse{}, err
			}
			return chatCompletionResponse{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
		}
		if err := c.retry.wait(ctx, delay); err != nil {
			return chatCompletionResponse{}, err
		}
	}
	return chatCompletionResponse{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, raw, &statusError{
			Code:       resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(raw, &completion); err != nil {
		return completion, raw, fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return completion, raw, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

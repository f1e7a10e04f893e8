package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, payload map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func contentPayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 1200, "completion_tokens": 340},
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		writeCompletion(t, w, contentPayload(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientGenerateSendsSchemaAndReportsUsage(t *testing.T) {
	var captured chatCompletionRequest
	var rawFormat map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.Unmarshal(body["model"], &captured.Model)
		_ = json.Unmarshal(body["max_tokens"], &captured.MaxTokens)
		_ = json.Unmarshal(body["messages"], &captured.Messages)
		_ = json.Unmarshal(body["response_format"], &rawFormat)
		writeCompletion(t, w, contentPayload(`{"title":"Hello"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "default-model", MaxTokens: 4096})
	req := Request{
		System: "You write blog posts.",
		User:   "Write about Go.",
		Schema: Schema{Name: "blog_draft", Definition: ObjectSchema(map[string]any{"title": StringProp("title")})},
		Model:  "override-model",
	}
	var out struct {
		Title string `json:"title"`
	}
	resp, err := GenerateInto(context.Background(), client, req, &out)
	if err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if out.Title != "Hello" {
		t.Fatalf("unexpected decoded title %q", out.Title)
	}
	if resp.InputTokens != 1200 || resp.OutputTokens != 340 {
		t.Fatalf("unexpected usage %+v", resp)
	}
	if resp.Model != "override-model" || captured.Model != "override-model" {
		t.Fatalf("expected override model, got resp=%q request=%q", resp.Model, captured.Model)
	}
	if captured.MaxTokens != 4096 {
		t.Fatalf("expected config max tokens, got %d", captured.MaxTokens)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if rawFormat["type"] != jsonSchemaType {
		t.Fatalf("expected json_schema response format, got %v", rawFormat)
	}
	schema, _ := rawFormat["json_schema"].(map[string]any)
	if schema["name"] != "blog_draft" || schema["strict"] != true {
		t.Fatalf("unexpected json_schema block %v", schema)
	}
}

func TestClientGenerateWithoutSchemaUsesJSONObject(t *testing.T) {
	format := responseFormat(Schema{})
	m, ok := format.(map[string]string)
	if !ok || m["type"] != jsonResponseType {
		t.Fatalf("expected json_object fallback, got %v", format)
	}
}

func TestClientGenerateRequiresPrompts(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Generate(context.Background(), Request{User: "x"}); err == nil {
		t.Fatal("expected missing system prompt error")
	}
	if _, err := client.Generate(context.Background(), Request{System: "x"}); err == nil {
		t.Fatal("expected missing user prompt error")
	}
	noKey := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := noKey.Generate(context.Background(), Request{System: "s", User: "u"}); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestClientToolCallArgumentsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"content": "",
						"tool_calls": []any{
							map[string]any{
								"type": "function",
								"id":   "call_1",
								"function": map[string]any{
									"name":      "emit",
									"arguments": `{"title":"From tool"}`,
								},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	var out struct {
		Title string `json:"title"`
	}
	if _, err := GenerateInto(context.Background(), client, Request{System: "s", User: "u"}, &out); err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if out.Title != "From tool" {
		t.Fatalf("unexpected title %q", out.Title)
	}
}

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			writeCompletion(t, w, contentPayload(`{"ok":true}`))
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryBackoff(100*time.Millisecond, 5*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 200*time.Millisecond {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.Generate(context.Background(), Request{System: "s", User: "u"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestClientRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeCompletion(t, w, map[string]any{
				"choices": []any{map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}}},
			})
			return
		}
		writeCompletion(t, w, contentPayload(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(time.Duration) {}),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry after empty content, got %d calls", calls.Load())
	}
}

func TestDecodeLLMJSONToleratesProse(t *testing.T) {
	var out struct {
		Pillar string `json:"pillar"`
	}
	content := "Sure! Here is the result:\n```json\n{\"pillar\": \"news\"}\n```\nLet me know."
	if err := DecodeLLMJSON(content, &out); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if out.Pillar != "news" {
		t.Fatalf("unexpected pillar %q", out.Pillar)
	}
	if err := DecodeLLMJSON("   ", &out); err == nil {
		t.Fatal("expected empty payload error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected parse: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative value should not parse")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage should not parse")
	}
}

func TestObjectSchemaRequiresAllProperties(t *testing.T) {
	schema := ObjectSchema(map[string]any{"b": StringProp("b"), "a": StringListProp("a")})
	required, _ := schema["required"].([]string)
	if len(required) != 2 || required[0] != "a" || required[1] != "b" {
		t.Fatalf("unexpected required list %v", required)
	}
	if schema["additionalProperties"] != false {
		t.Fatal("expected additionalProperties false")
	}
}

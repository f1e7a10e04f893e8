package llm

import (
	"fmt"
	"strings"
	"time"
)

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat any           `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []completionChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// completionChoice tolerates providers that answer with the streaming delta
// shape or the legacy text field on non-streaming calls.
type completionChoice struct {
	Message      completionMessage `json:"message"`
	Delta        completionMessage `json:"delta"`
	Text         string            `json:"text"`
	FinishReason string            `json:"finish_reason"`
}

type completionMessage struct {
	Content      string        `json:"content"`
	Refusal      string        `json:"refusal"`
	FunctionCall *functionCall `json:"function_call"`
	ToolCalls    []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// arguments returns the structured payload a model emitted through function
// or tool calling instead of message content.
func (m completionMessage) arguments() string {
	if m.FunctionCall != nil {
		if args := strings.TrimSpace(m.FunctionCall.Arguments); args != "" {
			return args
		}
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// content picks the first non-empty payload across choices.
func (r chatCompletionResponse) content() (string, bool) {
	for _, choice := range r.Choices {
		text := firstNonEmpty(
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
			choice.Message.arguments(),
			choice.Delta.arguments(),
		)
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func (r chatCompletionResponse) emptyError(op string, raw []byte) error {
	if len(r.Choices) == 0 {
		return fmt.Errorf("%s: empty choices", op)
	}
	e := &emptyContentError{Op: op, Snippet: summarizePayloadSnippet(string(raw))}
	for _, choice := range r.Choices {
		if e.FinishReason == "" {
			e.FinishReason = strings.TrimSpace(choice.FinishReason)
		}
		if e.Refusal == "" {
			e.Refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
	}
	return e
}

type statusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.Code, e.Body)
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

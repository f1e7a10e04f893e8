package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"contentpipe/internal/textutil"
)

const snippetRunes = 160

// DecodeLLMJSON unmarshals content into target. When content is not bare
// JSON, the first complete object or array inside it is used, so markdown
// fences and chatter around the payload are ignored.
func DecodeLLMJSON(content string, target any) error {
	payload := strings.TrimSpace(content)
	if payload == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(payload), target)
	if err == nil {
		return nil
	}
	raw, ok := firstJSONValue(payload)
	if !ok {
		return fmt.Errorf("%w (payload: %s)", err, snippet(payload))
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w (extracted payload: %s)", err, snippet(string(raw)))
	}
	return nil
}

func firstJSONValue(s string) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}

func snippet(s string) string {
	flat := strings.Join(strings.Fields(s), " ")
	if flat == "" {
		return "<empty>"
	}
	return textutil.Ellipsize(flat, snippetRunes)
}

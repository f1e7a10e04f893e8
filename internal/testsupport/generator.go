package testsupport

import (
	"context"
	"fmt"
	"sync"

	"contentpipe/internal/services/llm"
)

// FakeGenerator returns scripted responses keyed by schema name.
type FakeGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	Requests  []llm.Request

	InputTokens  int
	OutputTokens int
}

// NewFakeGenerator returns a generator reporting 1000 input and 500 output
// tokens per call.
func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{
		responses:    make(map[string]string),
		errs:         make(map[string]error),
		InputTokens:  1000,
		OutputTokens: 500,
	}
}

var _ llm.Generator = (*FakeGenerator)(nil)

// Respond scripts the JSON content returned for a schema.
func (f *FakeGenerator) Respond(schema, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[schema] = content
	delete(f.errs, schema)
}

// Fail scripts an error for a schema.
func (f *FakeGenerator) Fail(schema string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[schema] = err
}

// Calls returns how many requests named schema were received.
func (f *FakeGenerator) Calls(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.Requests {
		if req.Schema.Name == schema {
			n++
		}
	}
	return n
}

func (f *FakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if err := f.errs[req.Schema.Name]; err != nil {
		return llm.Response{}, err
	}
	content, ok := f.responses[req.Schema.Name]
	if !ok {
		return llm.Response{}, fmt.Errorf("fake generator: no response for schema %q", req.Schema.Name)
	}
	return llm.Response{
		Content:      content,
		Model:        req.Model,
		InputTokens:  f.InputTokens,
		OutputTokens: f.OutputTokens,
	}, nil
}

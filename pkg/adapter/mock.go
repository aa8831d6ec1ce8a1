package adapter

import (
	"context"
	"fmt"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	name            string
	responses       map[string]string
	defaultResponse string
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		name:            "mock",
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// responses keyed by prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{name: "mock", responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	if response, ok := a.responses[req.Prompt]; ok {
		return &Response{Content: response, Model: model, Usage: a.Usage}, nil
	}
	content := fmt.Sprintf("%s [%s]\n%s", a.defaultResponse, model, req.Prompt)
	return &Response{Content: content, Model: model, Usage: a.Usage}, nil
}

// MockSet returns a Set that answers every provider with the same mock,
// except loopback which keeps its own adapter.
func MockSet(providers []string, loopback *LoopbackAdapter) Set {
	mock := NewMockAdapter()
	set := make(Set, len(providers)+1)
	for _, p := range providers {
		set[p] = mock
	}
	if loopback != nil {
		set["loopback"] = loopback
	}
	return set
}

package adapter

import (
	"context"
	"fmt"
	"sort"
)

// Adapter defines the interface for backend provider adapters.
type Adapter interface {
	// Generate sends a request to the provider and returns its raw answer.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string
}

// Request is a single provider call. Prompt already contains any context
// block; System carries the backend-specific system prompt.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int

	// Command and Args are set for directives answered by the loopback
	// adapter. Remote adapters ignore them.
	Command string
	Args    []string
}

// Response is the provider's answer before normalisation. Some providers put
// their answer in Reasoning and leave Content empty.
type Response struct {
	Content   string
	Reasoning string
	Model     string
	Usage     *Usage
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Set maps provider names to adapters.
type Set map[string]Adapter

// For returns the adapter registered for provider.
func (s Set) For(provider string) (Adapter, error) {
	a, ok := s[provider]
	if !ok || a == nil {
		return nil, fmt.Errorf("no adapter configured for provider %q", provider)
	}
	return a, nil
}

// Names lists the configured providers in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const defaultMaxTokens = 4096

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// CompatAdapter speaks the OpenAI chat-completion protocol over plain HTTP.
// Hosted endpoints in this family disagree on where the answer lives, so the
// body is read with gjson rather than a fixed struct.
type CompatAdapter struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type compatRequest struct {
	Model     string          `json:"model"`
	Messages  []compatMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Stream    bool            `json:"stream"`
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewCompatAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewCompatAdapter(apiKey, baseURL string) (*CompatAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("compat API key is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("compat base URL is required")
	}

	return &CompatAdapter{
		name:       "compat",
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

// Name returns the adapter identifier.
func (a *CompatAdapter) Name() string {
	return a.name
}

// Generate posts a chat completion and extracts content and reasoning.
func (a *CompatAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	var messages []compatMessage
	if req.System != "" {
		messages = append(messages, compatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, compatMessage{Role: "user", Content: req.Prompt})

	jsonBody, err := json.Marshal(compatRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: maxTokens(req),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", a.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := gjson.GetBytes(body, "error.message").String()
		if detail == "" {
			detail = truncate(string(body), 200)
		}
		return nil, statusError(a.name, resp.StatusCode, detail)
	}

	return parseChatCompletion(a.name, body)
}

// parseChatCompletion reads the first choice of a chat-completion body.
// Reasoning models put their chain of thought in reasoning_content or
// reasoning, sometimes with an empty content field.
func parseChatCompletion(provider string, body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed(provider, "body is not JSON")
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return nil, &AdapterError{Provider: provider, Err: fmt.Errorf("%s API error: %s", provider, msg.String())}
	}

	message := gjson.GetBytes(body, "choices.0.message")
	if !message.Exists() {
		return nil, malformed(provider, "no choices")
	}

	reasoning := message.Get("reasoning_content").String()
	if reasoning == "" {
		reasoning = message.Get("reasoning").String()
	}

	out := &Response{
		Content:   message.Get("content").String(),
		Reasoning: reasoning,
		Model:     gjson.GetBytes(body, "model").String(),
	}
	if usage := gjson.GetBytes(body, "usage"); usage.Exists() {
		out.Usage = &Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	return out, nil
}

// truncate keeps the first n runes of s, replacing invalid bytes so the
// result is always valid UTF-8.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

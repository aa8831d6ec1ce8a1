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

// OllamaAdapter talks to a local Ollama runtime.
type OllamaAdapter struct {
	baseURL    string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []compatMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

// NewOllamaAdapter creates an adapter for the runtime at baseURL.
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	return &OllamaAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Name returns the adapter identifier.
func (a *OllamaAdapter) Name() string {
	return "ollama"
}

// Ping checks that the runtime answers its model listing endpoint.
func (a *OllamaAdapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(a.Name(), resp.StatusCode, "runtime not ready")
	}
	return nil
}

// Generate runs a non-streaming chat against the local model.
func (a *OllamaAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	var messages []compatMessage
	if req.System != "" {
		messages = append(messages, compatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, compatMessage{Role: "user", Content: req.Prompt})

	jsonBody, err := json.Marshal(ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  map[string]any{"num_predict": maxTokens(req)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := gjson.GetBytes(body, "error").String()
		if detail == "" {
			detail = truncate(string(body), 200)
		}
		return nil, statusError(a.Name(), resp.StatusCode, detail)
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed(a.Name(), "body is not JSON")
	}

	message := gjson.GetBytes(body, "message")
	if !message.Exists() {
		return nil, malformed(a.Name(), "no message")
	}

	prompt := int(gjson.GetBytes(body, "prompt_eval_count").Int())
	completion := int(gjson.GetBytes(body, "eval_count").Int())
	return &Response{
		Content:   message.Get("content").String(),
		Reasoning: message.Get("thinking").String(),
		Model:     gjson.GetBytes(body, "model").String(),
		Usage: &Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func newCompatServer(t *testing.T, status int, body string) (*httptest.Server, *compatRequest) {
	t.Helper()
	var got compatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestCompatAdapterContent(t *testing.T) {
	srv, got := newCompatServer(t, http.StatusOK, `{
		"model": "qwen",
		"choices": [{"message": {"role": "assistant", "content": "hello"}}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
	}`)

	a, err := NewCompatAdapter("test-key", srv.URL+"/")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	resp, err := a.Generate(context.Background(), Request{Model: "qwen", System: "be brief", Prompt: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "hello" || resp.Reasoning != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 4 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Fatalf("unexpected request messages %+v", got.Messages)
	}
}

func TestCompatAdapterReasoningFields(t *testing.T) {
	cases := map[string]string{
		"reasoning_content": `{"choices":[{"message":{"content":"","reasoning_content":"think"}}]}`,
		"reasoning":         `{"choices":[{"message":{"content":null,"reasoning":"think"}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newCompatServer(t, http.StatusOK, body)
			a, _ := NewCompatAdapter("test-key", srv.URL)

			resp, err := a.Generate(context.Background(), Request{Model: "r1", Prompt: "x"})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if resp.Content != "" || resp.Reasoning != "think" {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestCompatAdapterMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>gateway</html>`,
		"no choices": `{"choices":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := newCompatServer(t, http.StatusOK, body)
			a, _ := NewCompatAdapter("test-key", srv.URL)

			_, err := a.Generate(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected malformed response error, got %v", err)
			}
		})
	}
}

func TestCompatAdapterStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		permanent bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusUnauthorized, false, true},
	}

	for _, tt := range tests {
		srv, _ := newCompatServer(t, tt.status, `{"error":{"message":"nope"}}`)
		a, _ := NewCompatAdapter("test-key", srv.URL)

		_, err := a.Generate(context.Background(), Request{Prompt: "x"})
		var adapterErr *AdapterError
		if !errors.As(err, &adapterErr) || adapterErr.Status != tt.status {
			t.Fatalf("status %d: expected AdapterError, got %v", tt.status, err)
		}
		if IsTransient(err) != tt.transient {
			t.Fatalf("status %d: transient = %v", tt.status, IsTransient(err))
		}
		if IsPermanent(err) != tt.permanent {
			t.Fatalf("status %d: permanent = %v", tt.status, IsPermanent(err))
		}
	}
}

func TestCompatAdapterErrorBodyKeepsRunesWhole(t *testing.T) {
	srv, _ := newCompatServer(t, http.StatusBadGateway, strings.Repeat("é", 300))
	a, _ := NewCompatAdapter("test-key", srv.URL)

	_, err := a.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("error message is not valid UTF-8: %q", msg)
	}
	if !strings.Contains(msg, strings.Repeat("é", 200)+"...") || strings.Contains(msg, strings.Repeat("é", 201)) {
		t.Fatalf("expected 200 runes then an ellipsis, got %q", msg)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"abcdef", 3, "abc..."},
		{"日本語テキスト", 3, "日本語..."},
		{"a\xffb", 5, "a\uFFFDb"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCompatAdapterRequiresKeyAndURL(t *testing.T) {
	if _, err := NewCompatAdapter("", "http://x"); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := NewCompatAdapter("k", ""); err == nil {
		t.Fatal("expected error without base URL")
	}
}

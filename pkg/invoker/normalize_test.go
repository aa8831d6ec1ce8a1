package invoker

import (
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
)

func TestNormalizeHosted(t *testing.T) {
	n := DefaultNormalizers()[backend.TransportHostedAPI]

	got, err := n.Normalize(&adapter.Response{Content: "  answer  ", Reasoning: "ignored"})
	if err != nil || got.Content != "answer" || got.Extracted {
		t.Fatalf("unexpected %+v %v", got, err)
	}

	got, err = n.Normalize(&adapter.Response{Reasoning: "It is probably 42."})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Extracted || got.Method != ExtractRaw {
		t.Fatalf("expected raw extraction, got %+v", got)
	}
	if !strings.HasPrefix(got.Content, ReasoningNote) || !strings.HasSuffix(got.Content, "It is probably 42.") {
		t.Fatalf("unexpected content %q", got.Content)
	}

	for _, resp := range []*adapter.Response{nil, {}, {Content: " ", Reasoning: "\n"}} {
		if _, err := n.Normalize(resp); !errors.Is(err, adapter.ErrMalformedResponse) {
			t.Fatalf("expected malformed for %+v, got %v", resp, err)
		}
	}
}

func TestNormalizeLocalStripsThinking(t *testing.T) {
	n := DefaultNormalizers()[backend.TransportLocal]

	got, err := n.Normalize(&adapter.Response{Content: "<think>let me see</think>\nParis."})
	if err != nil || got.Content != "Paris." {
		t.Fatalf("unexpected %+v %v", got, err)
	}

	// only thinking, cut off mid-block
	got, err = n.Normalize(&adapter.Response{Content: "<think>the answer is ```\nx = 1\n```"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Method != ExtractCodeBlock || got.Content != "```\nx = 1\n```" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestNormalizeLoopbackVerbatim(t *testing.T) {
	n := DefaultNormalizers()[backend.TransportLoopback]

	got, err := n.Normalize(&adapter.Response{Content: "  Commands:\n  help\n"})
	if err != nil || got.Content != "  Commands:\n  help\n" {
		t.Fatalf("loopback output must be untouched, got %q %v", got.Content, err)
	}
	if _, err := n.Normalize(&adapter.Response{}); !errors.Is(err, adapter.ErrMalformedResponse) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestComposePrompt(t *testing.T) {
	if got := composePrompt("  ", "q"); got != "q" {
		t.Fatalf("blank context should be dropped, got %q", got)
	}
	if got := composePrompt("ctx", "q"); got != "Context:\nctx\n\nQuery:\nq" {
		t.Fatalf("unexpected %q", got)
	}
}

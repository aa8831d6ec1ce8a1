package invoker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
)

// ReasoningNote prefixes answers recovered verbatim from a reasoning field.
const ReasoningNote = "(This answer was extracted from the model's reasoning.)"

// Normalized is a provider answer reduced to user-facing text.
type Normalized struct {
	Content   string
	Extracted bool
	Method    ExtractMethod
}

// Normalizer turns a raw response into content. A response with nothing
// usable yields an error wrapping adapter.ErrMalformedResponse.
type Normalizer interface {
	Normalize(resp *adapter.Response) (Normalized, error)
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(resp *adapter.Response) (Normalized, error)

// Normalize calls f.
func (f NormalizerFunc) Normalize(resp *adapter.Response) (Normalized, error) {
	return f(resp)
}

// DefaultNormalizers returns the strategy for each transport.
func DefaultNormalizers() map[backend.Transport]Normalizer {
	return map[backend.Transport]Normalizer{
		backend.TransportHostedAPI: NormalizerFunc(normalizeHosted),
		backend.TransportLocal:     NormalizerFunc(normalizeLocal),
		backend.TransportLoopback:  NormalizerFunc(normalizeLoopback),
	}
}

// normalizeHosted prefers content and falls back to the reasoning field.
func normalizeHosted(resp *adapter.Response) (Normalized, error) {
	if resp == nil {
		return Normalized{}, fmt.Errorf("nil response: %w", adapter.ErrMalformedResponse)
	}
	if content := strings.TrimSpace(resp.Content); content != "" {
		return Normalized{Content: content}, nil
	}
	return fromReasoning(resp.Reasoning)
}

var thinkPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// normalizeLocal strips inline <think> blocks that local models emit before
// their answer, keeping them as reasoning if nothing else is left.
func normalizeLocal(resp *adapter.Response) (Normalized, error) {
	if resp == nil {
		return Normalized{}, fmt.Errorf("nil response: %w", adapter.ErrMalformedResponse)
	}

	reasoning := resp.Reasoning
	var thoughts []string
	for _, m := range thinkPattern.FindAllStringSubmatch(resp.Content, -1) {
		thoughts = append(thoughts, strings.TrimSpace(m[1]))
	}
	content := strings.TrimSpace(thinkPattern.ReplaceAllString(resp.Content, ""))
	// an unterminated block means the model was cut off mid-thought
	if idx := strings.Index(content, "<think>"); idx != -1 {
		thoughts = append(thoughts, strings.TrimSpace(content[idx+len("<think>"):]))
		content = strings.TrimSpace(content[:idx])
	}

	if content != "" {
		return Normalized{Content: content}, nil
	}
	if strings.TrimSpace(reasoning) == "" {
		reasoning = strings.Join(thoughts, "\n\n")
	}
	return fromReasoning(reasoning)
}

// normalizeLoopback passes local command output through unchanged.
func normalizeLoopback(resp *adapter.Response) (Normalized, error) {
	if resp == nil || resp.Content == "" {
		return Normalized{}, fmt.Errorf("empty loopback reply: %w", adapter.ErrMalformedResponse)
	}
	return Normalized{Content: resp.Content}, nil
}

func fromReasoning(reasoning string) (Normalized, error) {
	if strings.TrimSpace(reasoning) == "" {
		return Normalized{}, fmt.Errorf("no content or reasoning: %w", adapter.ErrMalformedResponse)
	}

	ex := Extract(reasoning)
	text := ex.Text
	if ex.Method == ExtractRaw {
		text = ReasoningNote + "\n\n" + strings.TrimSpace(ex.Text)
	}
	return Normalized{Content: text, Extracted: true, Method: ex.Method}, nil
}

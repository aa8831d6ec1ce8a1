package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/adapter"
)

// LLMTieBreaker asks a small model to settle close KeywordScorer results.
// Classification has no caller context, so each call carries its own
// deadline.
type LLMTieBreaker struct {
	Scorer    *KeywordScorer
	Adapter   adapter.Adapter
	Model     string
	Threshold float64
	Timeout   time.Duration
	Log       zerolog.Logger
}

type tieBreakerPick struct {
	Backend    string  `json:"backend"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classify returns the scorer's answer, or the model's pick when the scorer
// is unsure between several candidates.
func (t *LLMTieBreaker) Classify(query string) (string, float64) {
	score := t.Scorer.Score(query)
	if score.Confidence >= t.Threshold || len(score.Candidates) <= 1 || t.Adapter == nil {
		return score.BackendID, score.Confidence
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := t.Adapter.Generate(ctx, adapter.Request{
		Model:     t.Model,
		Prompt:    buildTieBreakerPrompt(query, score.Candidates),
		MaxTokens: 200,
	})
	if err != nil {
		t.Log.Debug().Err(err).Msg("tie-breaker call failed")
		return score.BackendID, score.Confidence
	}

	pick, err := parseTieBreakerResponse(resp.Content)
	if err != nil {
		t.Log.Debug().Err(err).Msg("tie-breaker response invalid")
		return score.BackendID, score.Confidence
	}
	if !isCandidate(pick.Backend, score.Candidates) {
		t.Log.Debug().Str("backend", pick.Backend).Msg("tie-breaker picked a non-candidate")
		return score.BackendID, score.Confidence
	}
	if pick.Confidence < 0 || pick.Confidence > 1 {
		return score.BackendID, score.Confidence
	}

	t.Log.Debug().Str("backend", pick.Backend).Float64("confidence", pick.Confidence).Str("reason", pick.Reason).Msg("tie-breaker picked")
	return pick.Backend, pick.Confidence
}

func parseTieBreakerResponse(content string) (*tieBreakerPick, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var pick tieBreakerPick
	if err := json.Unmarshal([]byte(content), &pick); err != nil {
		return nil, err
	}
	if pick.Backend == "" {
		return nil, fmt.Errorf("missing backend")
	}
	return &pick, nil
}

func isCandidate(id string, candidates []Candidate) bool {
	for _, c := range candidates {
		if c.BackendID == id {
			return true
		}
	}
	return false
}

func buildTieBreakerPrompt(query string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("You are a routing classifier. Choose the best backend for the user message.\n")
	sb.WriteString("Return ONLY JSON: {\"backend\":\"...\",\"confidence\":0-1,\"reason\":\"...\"}.\n\n")
	sb.WriteString("User message:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nCandidates:\n")

	for _, c := range candidates {
		sb.WriteString(fmt.Sprintf("- %s (score=%d)\n", c.BackendID, c.Score))
		if len(c.Hints) > 0 {
			sb.WriteString(fmt.Sprintf("  hints: %s\n", strings.Join(c.Hints, ", ")))
		}
	}

	return sb.String()
}

package intent

import (
	"fmt"
	"sort"
	"strings"
)

// ConfidenceClassifier scores a query against the backend table when no
// pattern matched. Implementations may be stochastic.
type ConfidenceClassifier interface {
	Classify(query string) (backendID string, confidence float64)
}

// NopClassifier never has an opinion.
type NopClassifier struct{}

// Classify always returns zero confidence.
func (NopClassifier) Classify(string) (string, float64) { return "", 0 }

// Candidate is one scored backend.
type Candidate struct {
	BackendID string
	Score     int
	Hints     []string
}

// Score is the full result of a KeywordScorer pass.
type Score struct {
	BackendID  string
	Confidence float64
	Candidates []Candidate
	Reason     string
}

// KeywordScorer scores backends by counting hints that start a word in the
// query. It catches word stems ("compil", "debugg") that whole-word keyword
// rules miss.
type KeywordScorer struct {
	hints map[string][]string
}

// SingleHitCap bounds the confidence of a lone hint so it stays below the
// default acceptance threshold.
const SingleHitCap = 0.6

// NewKeywordScorer builds a scorer from backend id -> hint stems.
func NewKeywordScorer(hints map[string][]string) *KeywordScorer {
	lowered := make(map[string][]string, len(hints))
	for id, hs := range hints {
		for _, h := range hs {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				lowered[id] = append(lowered[id], h)
			}
		}
	}
	return &KeywordScorer{hints: lowered}
}

// Classify returns the best-scoring backend and its confidence.
func (s *KeywordScorer) Classify(query string) (string, float64) {
	sc := s.Score(query)
	return sc.BackendID, sc.Confidence
}

// Score ranks every backend with at least one hint in the query. The
// confidence rewards a clear margin over the runner-up and, to a lesser
// degree, the absolute number of hits. A single hit never exceeds
// SingleHitCap.
func (s *KeywordScorer) Score(query string) Score {
	lower := strings.ToLower(query)

	var candidates []Candidate
	for id, hints := range s.hints {
		var matched []string
		for _, h := range hints {
			if containsStem(lower, h) {
				matched = append(matched, h)
			}
		}
		if len(matched) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{BackendID: id, Score: len(matched), Hints: matched})
	}

	if len(candidates) == 0 {
		return Score{Reason: "no hints matched"}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].BackendID < candidates[j].BackendID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	top := candidates[0].Score
	second := 0
	if len(candidates) > 1 {
		second = candidates[1].Score
	}

	margin := float64(top-second) / float64(max(top, 1))
	strength := float64(min(top, 5)) / 5.0
	confidence := 0.75*margin + 0.25*strength
	if top >= 2 && second == 0 {
		confidence = max(confidence, 0.9)
	}
	if top >= 3 {
		confidence = min(confidence+0.15, 1.0)
	}
	if top == 1 {
		confidence = min(confidence, SingleHitCap)
	}

	return Score{
		BackendID:  candidates[0].BackendID,
		Confidence: confidence,
		Candidates: candidates,
		Reason:     fmt.Sprintf("top_score=%d second_score=%d", top, second),
	}
}

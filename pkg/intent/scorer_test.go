package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/adapter"
)

func TestKeywordScorerConfidence(t *testing.T) {
	s := NewKeywordScorer(map[string][]string{
		"a": {"alpha", "apple", "avocado"},
		"b": {"beta", "banana"},
	})

	tests := []struct {
		name    string
		query   string
		backend string
		minConf float64
		maxConf float64
	}{
		{"nothing", "zzz", "", 0, 0},
		{"single hit stays below threshold", "an alpha", "a", SingleHitCap, SingleHitCap},
		{"hint must start a word", "subalpha", "", 0, 0},
		{"stem matches word start", "apples and alphabets", "a", 0.9, 0.9},
		{"two clear hits", "alpha apple", "a", 0.9, 0.9},
		{"three hits", "alpha apple avocado", "a", 1.0, 1.0},
		{"tie goes to lower id", "alpha beta", "a", 0.04, 0.06},
		{"case insensitive", "BANANA Beta", "b", 0.9, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, conf := s.Classify(tt.query)
			assert.Equal(t, tt.backend, id)
			assert.GreaterOrEqual(t, conf, tt.minConf)
			assert.LessOrEqual(t, conf, tt.maxConf)
		})
	}
}

func TestKeywordScorerKeepsTopThree(t *testing.T) {
	s := NewKeywordScorer(map[string][]string{
		"a": {"x"}, "b": {"x"}, "c": {"x"}, "d": {"x"},
	})
	sc := s.Score("x")
	require.Len(t, sc.Candidates, 3)
	assert.Equal(t, "a", sc.Candidates[0].BackendID)
}

func TestNopClassifier(t *testing.T) {
	id, conf := NopClassifier{}.Classify("anything")
	assert.Empty(t, id)
	assert.Zero(t, conf)
}

type stubAdapter struct {
	content string
	err     error
	calls   int
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Generate(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &adapter.Response{Content: s.content}, nil
}

func TestLLMTieBreaker(t *testing.T) {
	scorer := NewKeywordScorer(map[string][]string{
		"a": {"alpha", "apple"},
		"b": {"beta"},
	})

	t.Run("settles a tie", func(t *testing.T) {
		stub := &stubAdapter{content: "```json\n{\"backend\":\"b\",\"confidence\":0.85,\"reason\":\"beta wins\"}\n```"}
		tb := &LLMTieBreaker{Scorer: scorer, Adapter: stub, Threshold: 0.7}

		id, conf := tb.Classify("alpha beta")
		assert.Equal(t, "b", id)
		assert.Equal(t, 0.85, conf)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("skips confident scores", func(t *testing.T) {
		stub := &stubAdapter{}
		tb := &LLMTieBreaker{Scorer: scorer, Adapter: stub, Threshold: 0.7}

		id, _ := tb.Classify("alpha apple")
		assert.Equal(t, "a", id)
		assert.Zero(t, stub.calls)
	})

	t.Run("keeps scorer result on failure", func(t *testing.T) {
		for _, stub := range []*stubAdapter{
			{err: errors.New("down")},
			{content: "not json"},
			{content: `{"backend":"zeta","confidence":0.9}`},
			{content: `{"backend":"b","confidence":1.5}`},
		} {
			tb := &LLMTieBreaker{Scorer: scorer, Adapter: stub, Threshold: 0.7}
			id, conf := tb.Classify("alpha beta")
			assert.Equal(t, "a", id)
			assert.Less(t, conf, 0.7)
		}
	})
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"write code", "code", true},
		{"barcode", "code", false},
		{"codes and code", "code", true},
		{"code_review", "code", false},
		{"fix: the build", "fix", true},
		{"step by step please", "step by step", true},
		{"", "code", false},
		{"code", "", false},
		{"naïve code", "code", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsWord(tt.text, tt.phrase), "%q in %q", tt.phrase, tt.text)
	}
}

func TestContainsStem(t *testing.T) {
	tests := []struct {
		text, stem string
		want       bool
	}{
		{"it keeps compiling", "compil", true},
		{"do you trust me", "rust", false},
		{"trust rust", "rust", true},
		{"the fiscal year", "scal", false},
		{"scaling out", "scal", true},
		{"", "rust", false},
		{"rust", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsStem(tt.text, tt.stem), "%q in %q", tt.stem, tt.text)
	}
}

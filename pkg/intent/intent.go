// Package intent turns raw query text into a structured Classification.
//
// Matching runs in a fixed priority order and the first stage that matches
// wins: command directives, explicit "ask <backend> ..." requests, the
// ordered keyword table, then an injectable confidence classifier. Anything
// left is general.
package intent

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
)

// Type is the kind of match that produced a Classification.
type Type string

const (
	TypeCommand    Type = "command"
	TypeExplicit   Type = "explicit_request"
	TypeKeyword    Type = "keyword"
	TypeClassifier Type = "classifier"
	TypeGeneral    Type = "general"
)

// Intent labels used when no category applies.
const (
	IntentCommand  = "command"
	IntentExplicit = "explicit"
	IntentGeneral  = "general"
	IntentSimple   = "simple"
)

// Fixed confidences for pattern matches.
const (
	CommandConfidence  = 1.0
	ExplicitConfidence = 1.0
	GeneralConfidence  = 0.7
)

// Classification is the result of classifying one query.
type Classification struct {
	Type Type `json:"type"`
	// Intent is part of the routing cache key: a command or explicit label,
	// the backend category for keyword and classifier matches, or general /
	// simple.
	Intent string `json:"intent"`

	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	BackendID  string  `json:"backend_id,omitempty"`
	Keyword    string  `json:"keyword,omitempty"`
	Confidence float64 `json:"confidence"`

	// Payload is the text forwarded to the backend. Explicit requests keep
	// the entire original query, "ask <backend>" included.
	Payload string `json:"payload"`
	// Cleaned is the query after whitespace and filler normalisation.
	Cleaned string `json:"cleaned"`
	// Simple marks a short general query; still routed to the main brain.
	Simple bool `json:"simple,omitempty"`
}

type keywordRule struct {
	backendID  string
	category   string
	keywords   []string
	confidence float64
}

var explicitPattern = regexp.MustCompile(`(?is)^ask\s+(\S+)\s+(.+)$`)

// Classifier is safe for concurrent use once built.
type Classifier struct {
	registry  *backend.Registry
	rules     []keywordRule
	fillers   fillerSet
	scorer    ConfidenceClassifier
	threshold float64
	log       zerolog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithConfidenceClassifier replaces the fallback scorer.
func WithConfidenceClassifier(cc ConfidenceClassifier) Option {
	return func(c *Classifier) {
		if cc != nil {
			c.scorer = cc
		}
	}
}

// WithLogger sets the classifier logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Classifier) { c.log = log }
}

// New builds a classifier over the registry and the routing config's
// keyword table, fillers and scorer hints. Keyword rules naming unknown
// backends are skipped.
func New(reg *backend.Registry, cfg *config.RoutingConfig, opts ...Option) *Classifier {
	c := &Classifier{
		registry:  reg,
		fillers:   newFillerSet(cfg.Fillers),
		scorer:    NewKeywordScorer(cfg.ScorerHints),
		threshold: cfg.ClassifierConfidenceThreshold,
		log:       zerolog.Nop(),
	}
	if c.threshold <= 0 {
		c.threshold = 0.7
	}

	for _, rule := range cfg.Keywords {
		d, ok := reg.Get(rule.Backend)
		if !ok {
			continue
		}
		kr := keywordRule{
			backendID:  d.ID,
			category:   rule.Category,
			confidence: rule.Confidence,
		}
		if kr.category == "" {
			kr.category = d.Category
		}
		if kr.confidence <= 0 {
			kr.confidence = 0.8
		}
		for _, kw := range rule.Keywords {
			kw = normalizeSpace(strings.ToLower(kw))
			if kw != "" {
				kr.keywords = append(kr.keywords, kw)
			}
		}
		c.rules = append(c.rules, kr)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean normalises whitespace and strips leading fillers.
func (c *Classifier) Clean(query string) string {
	return c.fillers.strip(normalizeSpace(query))
}

// Classify never fails; unmatched queries are general.
func (c *Classifier) Classify(query string) Classification {
	original := strings.TrimSpace(query)
	cleaned := c.Clean(query)
	lower := strings.ToLower(cleaned)

	base := Classification{Payload: original, Cleaned: cleaned}

	if cleaned == "" {
		return c.general(base)
	}

	if name, args, ok := matchCommand(cleaned); ok {
		base.Type = TypeCommand
		base.Intent = IntentCommand
		base.Command = name
		base.Args = args
		base.BackendID = backend.LoopbackClassifier
		base.Confidence = CommandConfidence
		return base
	}

	if m := explicitPattern.FindStringSubmatch(cleaned); m != nil {
		if id, ok := c.registry.Resolve(m[1]); ok {
			base.Type = TypeExplicit
			base.Intent = IntentExplicit
			base.BackendID = id
			base.Confidence = ExplicitConfidence
			return base
		}
	}

	for _, rule := range c.rules {
		for _, kw := range rule.keywords {
			if containsWord(lower, kw) {
				base.Type = TypeKeyword
				base.Intent = rule.category
				base.BackendID = rule.backendID
				base.Keyword = kw
				base.Confidence = rule.confidence
				return base
			}
		}
	}

	if id, conf := c.scorer.Classify(cleaned); id != "" && conf >= c.threshold {
		if d, ok := c.registry.Get(id); ok {
			base.Type = TypeClassifier
			base.Intent = d.Category
			base.BackendID = d.ID
			base.Confidence = min(conf, 1.0)
			return base
		}
		c.log.Debug().Str("backend", id).Msg("confidence classifier named an unknown backend")
	}

	return c.general(base)
}

func (c *Classifier) general(base Classification) Classification {
	base.Type = TypeGeneral
	base.Intent = IntentGeneral
	base.Confidence = GeneralConfidence
	if base.Cleaned != "" && len(strings.Fields(base.Cleaned)) < 5 {
		base.Simple = true
		base.Intent = IntentSimple
	}
	return base
}

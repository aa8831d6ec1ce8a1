package router

import (
	"slices"
	"time"

	"github.com/zen-systems/switchyard/pkg/hardware"
)

// Source records which rule produced a decision.
type Source string

const (
	SourceCommandOverride      Source = "command_override"
	SourceExplicitRequest      Source = "explicit_request"
	SourceKeywordMatch         Source = "keyword_match"
	SourceConfidenceClassifier Source = "confidence_classifier"
	SourceHardwareFallback     Source = "hardware_fallback"
)

// Confidence assigned to decisions that fall back on defaults.
const (
	DefaultConfidence  = 0.7
	SheddingConfidence = 0.5
	OfflineConfidence  = 0.5
)

// Decision is the routing outcome for one query.
type Decision struct {
	ID         string            `json:"id"`
	BackendID  string            `json:"backend_id"`
	Confidence float64           `json:"confidence"`
	Source     Source            `json:"source"`
	Intent     string            `json:"intent"`
	Hardware   hardware.Snapshot `json:"hardware"`
	Reasons    []string          `json:"reasons,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (d Decision) clone() Decision {
	d.Reasons = slices.Clone(d.Reasons)
	return d
}

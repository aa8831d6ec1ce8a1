// Package router picks a backend for each classified query, weighing the
// classification against host conditions and a short-lived decision cache.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/intent"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// Classifier produces the classification the router acts on.
type Classifier interface {
	Classify(query string) intent.Classification
}

// AdaptiveRouter is safe for concurrent use.
type AdaptiveRouter struct {
	registry   *backend.Registry
	classifier Classifier
	hardware   hardware.Provider
	cache      *Cache
	usage      *usage.Counter
	thresholds hardware.Thresholds
	mainBrain  string
	loopback   string
	offline    string
	minHonored float64
	log        zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Option configures an AdaptiveRouter.
type Option func(*AdaptiveRouter)

// WithCache replaces the default five-minute cache.
func WithCache(c *Cache) Option {
	return func(r *AdaptiveRouter) { r.cache = c }
}

// WithUsage counts every fresh decision against its backend.
func WithUsage(u *usage.Counter) Option {
	return func(r *AdaptiveRouter) { r.usage = u }
}

// WithThresholds sets the constraint limits.
func WithThresholds(t hardware.Thresholds) Option {
	return func(r *AdaptiveRouter) { r.thresholds = t }
}

// WithMainBrain sets the general-purpose backend id.
func WithMainBrain(id string) Option {
	return func(r *AdaptiveRouter) {
		if id != "" {
			r.mainBrain = id
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *AdaptiveRouter) { r.log = log }
}

// New creates a router. The loopback and offline backends are looked up by
// transport in the registry.
func New(reg *backend.Registry, classifier Classifier, hw hardware.Provider, opts ...Option) *AdaptiveRouter {
	r := &AdaptiveRouter{
		registry:   reg,
		classifier: classifier,
		hardware:   hw,
		cache:      NewCache(5 * time.Minute),
		thresholds: hardware.DefaultThresholds(),
		mainBrain:  backend.MainBrain,
		loopback:   backend.LoopbackClassifier,
		minHonored: 0.7,
		log:        zerolog.Nop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if d, ok := reg.FirstByTransport(backend.TransportLoopback, false); ok {
		r.loopback = d.ID
	}
	if d, ok := reg.FirstByTransport(backend.TransportLocal, true); ok {
		r.offline = d.ID
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the decision cache.
func (r *AdaptiveRouter) Cache() *Cache {
	return r.cache
}

// Route classifies query and routes it.
func (r *AdaptiveRouter) Route(ctx context.Context, query string) (Decision, intent.Classification) {
	cls := r.classifier.Classify(query)
	return r.RouteClassified(ctx, cls), cls
}

// RouteClassified routes an existing classification. It never fails: an
// unreadable host is treated as online and unloaded.
func (r *AdaptiveRouter) RouteClassified(ctx context.Context, cls intent.Classification) Decision {
	status, err := r.hardware.Status(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("hardware status unavailable, assuming defaults")
	}
	snap := status.Snapshot(r.thresholds)

	if cached, ok := r.cache.Get(cls.Cleaned, cls.Intent, r.now()); ok {
		r.log.Debug().Str("backend", cached.BackendID).Str("decision", cached.ID).Msg("routing cache hit")
		return cached
	}

	d := r.decide(cls, status, snap)
	d.ID = r.newID()
	d.Intent = cls.Intent
	d.Hardware = snap
	d.CreatedAt = r.now()

	r.cache.Put(cls.Cleaned, cls.Intent, d)
	r.usage.MarkRouted(d.BackendID)

	r.log.Debug().
		Str("backend", d.BackendID).
		Str("source", string(d.Source)).
		Float64("confidence", d.Confidence).
		Str("intent", d.Intent).
		Bool("cpu_constrained", snap.CPUConstrained).
		Bool("offline", snap.OfflineMode).
		Msg("routed")
	return d
}

func (r *AdaptiveRouter) decide(cls intent.Classification, status hardware.Status, snap hardware.Snapshot) Decision {
	if cls.Type == intent.TypeCommand {
		return Decision{
			BackendID:  r.loopback,
			Confidence: 1.0,
			Source:     SourceCommandOverride,
			Reasons:    []string{fmt.Sprintf("command %q is answered locally", cls.Command)},
		}
	}

	if snap.OfflineMode {
		if status.LocalRuntimeReachable && r.offline != "" {
			return Decision{
				BackendID:  r.offline,
				Confidence: OfflineConfidence,
				Source:     SourceHardwareFallback,
				Reasons:    []string{"offline; local runtime reachable"},
			}
		}
		return Decision{
			BackendID:  r.loopback,
			Confidence: OfflineConfidence,
			Source:     SourceHardwareFallback,
			Reasons:    []string{"offline; no local runtime"},
		}
	}

	if _, known := r.registry.Get(cls.BackendID); known && cls.Confidence >= r.minHonored {
		switch cls.Type {
		case intent.TypeExplicit:
			return Decision{
				BackendID:  cls.BackendID,
				Confidence: cls.Confidence,
				Source:     SourceExplicitRequest,
				Reasons:    []string{"explicitly requested"},
			}
		case intent.TypeKeyword:
			return Decision{
				BackendID:  cls.BackendID,
				Confidence: cls.Confidence,
				Source:     SourceKeywordMatch,
				Reasons:    []string{fmt.Sprintf("keyword %q", cls.Keyword)},
			}
		case intent.TypeClassifier:
			if !snap.CPUConstrained {
				return Decision{
					BackendID:  cls.BackendID,
					Confidence: cls.Confidence,
					Source:     SourceConfidenceClassifier,
					Reasons:    []string{"confidence classifier"},
				}
			}
		}
	}

	if snap.CPUConstrained {
		return Decision{
			BackendID:  r.loopback,
			Confidence: SheddingConfidence,
			Source:     SourceHardwareFallback,
			Reasons:    []string{fmt.Sprintf("cpu %.0f%% above %.0f%%, shedding to loopback", status.CPUPercent, r.thresholds.CPULimitPercent)},
		}
	}

	reasons := []string{"general query"}
	if snap.MemoryConstrained {
		reasons = append(reasons, fmt.Sprintf("memory free %.0f%% below floor; hosted backend unaffected", status.MemoryFreePercent))
	}
	return Decision{
		BackendID:  r.mainBrain,
		Confidence: DefaultConfidence,
		Source:     SourceHardwareFallback,
		Reasons:    reasons,
	}
}

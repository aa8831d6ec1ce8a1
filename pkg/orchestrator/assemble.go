package orchestrator

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/fallback"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/intent"
	"github.com/zen-systems/switchyard/pkg/invoker"
	"github.com/zen-systems/switchyard/pkg/persona"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// Setup lists what Assemble needs. Only Adapters is required.
type Setup struct {
	Routing      *config.RoutingConfig
	Adapters     adapter.Set
	Hardware     hardware.Provider
	History      History
	Context      ContextProvider
	Personalizer persona.Personalizer
	Log          zerolog.Logger
}

// Assemble builds the full pipeline from a routing config and a set of
// provider adapters. Backends whose provider has no adapter are skipped in
// fallback chains. A *adapter.LoopbackAdapter registered under the loopback
// provider gets the local command handlers.
func Assemble(s Setup) (*Orchestrator, error) {
	routing := s.Routing
	if routing == nil {
		routing = config.DefaultRoutingConfig()
	}
	reg, err := routing.Registry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	if len(s.Adapters) == 0 {
		return nil, fmt.Errorf("no adapters configured")
	}

	hw := s.Hardware
	if hw == nil {
		hw = hardware.StaticProvider{Value: hardware.DefaultStatus()}
	}
	counter := usage.NewCounter(reg.IDs())
	log := s.Log

	classifier := intent.New(reg, routing,
		intent.WithConfidenceClassifier(tieBreaker(reg, routing, s.Adapters, log)),
		intent.WithLogger(log.With().Str("component", "intent").Logger()),
	)

	rt := router.New(reg, classifier, hw,
		router.WithCache(router.NewCache(routing.CacheTTL())),
		router.WithUsage(counter),
		router.WithThresholds(hardware.Thresholds{
			CPULimitPercent:        routing.Hardware.CPULimitPercent,
			MemoryFreeFloorPercent: routing.Hardware.MemoryFreeFloorPercent,
		}),
		router.WithMainBrain(routing.MainBrain),
		router.WithLogger(log.With().Str("component", "router").Logger()),
	)

	inv := invoker.New(s.Adapters, invoker.PolicyFromConfig(routing.Retry),
		invoker.WithUsage(counter),
		invoker.WithLogger(log.With().Str("component", "invoker").Logger()),
	)

	cascade := fallback.New(reg, inv, routing,
		fallback.WithAvailability(func(d backend.Descriptor) bool {
			_, err := s.Adapters.For(d.Provider)
			return err == nil
		}),
		fallback.WithLogger(log.With().Str("component", "fallback").Logger()),
	)

	p := s.Personalizer
	if p == nil {
		p = persona.NewVoiceFormatter(reg, nil, persona.VerbosityNormal)
	}

	opts := []Option{
		WithPersonalizer(p),
		WithLogger(log.With().Str("component", "orchestrator").Logger()),
	}
	if s.History != nil {
		opts = append(opts, WithHistory(s.History))
	}
	if s.Context != nil {
		opts = append(opts, WithContextProvider(s.Context))
	}

	o, err := New(Components{
		Registry:   reg,
		Classifier: classifier,
		Router:     rt,
		Cascade:    cascade,
		Hardware:   hw,
		Usage:      counter,
		Routing:    routing,
	}, opts...)
	if err != nil {
		return nil, err
	}

	if lb, ok := s.Adapters[backend.ProviderLoopback].(*adapter.LoopbackAdapter); ok {
		o.RegisterCommands(lb)
	}
	return o, nil
}

// tieBreaker returns an LLM tie-breaker when enabled and its backend has an
// adapter, otherwise nil so the classifier keeps its keyword scorer.
func tieBreaker(reg *backend.Registry, routing *config.RoutingConfig, adapters adapter.Set, log zerolog.Logger) intent.ConfidenceClassifier {
	if routing.EnableLLMTieBreaker == nil || !*routing.EnableLLMTieBreaker {
		return nil
	}
	id, ok := reg.Resolve(routing.ClassifierBackend)
	if !ok {
		return nil
	}
	desc, _ := reg.Get(id)
	a, err := adapters.For(desc.Provider)
	if err != nil {
		return nil
	}
	return &intent.LLMTieBreaker{
		Scorer:    intent.NewKeywordScorer(routing.ScorerHints),
		Adapter:   a,
		Model:     desc.RemoteModel,
		Threshold: routing.ClassifierConfidenceThreshold,
		Timeout:   5 * time.Second,
		Log:       log.With().Str("component", "tie-breaker").Logger(),
	}
}

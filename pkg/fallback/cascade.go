// Package fallback runs a query against a primary backend and, when it
// fails, against an ordered chain of alternatives until one answers.
package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/invoker"
)

// ErrAllBackendsExhausted is returned when every backend in the chain failed.
var ErrAllBackendsExhausted = errors.New("all backends exhausted")

// UnavailableMessage is the only text a user sees when the chain is exhausted.
const UnavailableMessage = "Sorry, I can't reach any of my backends right now. The assistant is currently unavailable, please try again in a moment."

// State is a step of the per-query cascade.
type State string

const (
	StateInvoking     State = "invoking"
	StateRetrying     State = "retrying"
	StateFallbackNext State = "fallback_next"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Terminal reports whether s ends the cascade.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Invoker calls a single backend.
type Invoker interface {
	Invoke(ctx context.Context, desc backend.Descriptor, req invoker.Request) invoker.Result
}

// Report records the outcome of one backend in the chain.
type Report struct {
	BackendID    string            `json:"backend_id"`
	Attempts     int               `json:"attempts"`
	ErrorKind    invoker.ErrorKind `json:"error_kind,omitempty"`
	Error        string            `json:"error,omitempty"`
	FallbackUsed bool              `json:"fallback_used"`
}

// Result is the cascade outcome. The embedded invoker result describes the
// backend that answered, or the terminal failure. Attempts counts only the
// answering backend's attempts; TotalAttempts counts all of them.
type Result struct {
	invoker.Result
	Trace         []State  `json:"trace"`
	Reports       []Report `json:"reports"`
	TotalAttempts int      `json:"total_attempts"`
	Primary       string   `json:"primary"`
}

// FallbackUsed reports whether a backend other than the primary answered.
func (r Result) FallbackUsed() bool {
	return r.Success && r.BackendID != r.Primary
}

// Cascade is safe for concurrent use; it holds no per-query state.
type Cascade struct {
	registry  *backend.Registry
	invoker   Invoker
	chains    map[string][]string
	mainBrain string
	maxChain  int
	enabled   bool
	available func(backend.Descriptor) bool
	log       zerolog.Logger
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithLogger sets the cascade logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cascade) { c.log = log }
}

// WithAvailability skips backends for which fn returns false, such as
// providers with no API key configured.
func WithAvailability(fn func(backend.Descriptor) bool) Option {
	return func(c *Cascade) { c.available = fn }
}

// New builds a cascade from the fallback section of cfg.
func New(reg *backend.Registry, inv Invoker, cfg *config.RoutingConfig, opts ...Option) *Cascade {
	if cfg == nil {
		cfg = config.DefaultRoutingConfig()
	}
	c := &Cascade{
		registry:  reg,
		invoker:   inv,
		chains:    cfg.Fallback.Chains,
		mainBrain: cfg.MainBrain,
		maxChain:  cfg.Fallback.MaxChain,
		enabled:   cfg.FallbackEnabled(),
		log:       zerolog.Nop(),
	}
	if c.mainBrain == "" {
		c.mainBrain = backend.MainBrain
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chain returns the ordered backends tried for primary, primary first.
//
// Hosted backends fall back to their category peers, then the main brain,
// then every other hosted backend in priority order. A local backend falls
// back to the loopback backend. The loopback backend has no fallback.
func (c *Cascade) Chain(primary backend.Descriptor) []backend.Descriptor {
	chain := []backend.Descriptor{primary}
	if !c.enabled {
		return chain
	}

	seen := map[string]bool{primary.ID: true}
	add := func(d backend.Descriptor) {
		if seen[d.ID] {
			return
		}
		if c.available != nil && !c.available(d) {
			return
		}
		seen[d.ID] = true
		chain = append(chain, d)
	}
	addID := func(id string) {
		if d, ok := c.registry.Get(id); ok {
			add(d)
		}
	}

	switch primary.Transport {
	case backend.TransportLoopback:
	case backend.TransportLocal:
		if d, ok := c.registry.FirstByTransport(backend.TransportLoopback, false); ok {
			add(d)
		}
	default:
		for _, id := range c.chains[primary.Category] {
			addID(id)
		}
		addID(c.mainBrain)
		for _, d := range c.registry.All() {
			if d.Transport == backend.TransportHostedAPI {
				add(d)
			}
		}
	}

	if c.maxChain > 0 && len(chain) > c.maxChain {
		chain = chain[:c.maxChain]
	}
	return chain
}

// Invoke tries primary and then its fallback chain, strictly in order, until
// one succeeds. Caller cancellation stops the cascade at once. When every
// backend fails the result carries UnavailableMessage and an error wrapping
// ErrAllBackendsExhausted.
func (c *Cascade) Invoke(ctx context.Context, primary backend.Descriptor, req invoker.Request) Result {
	chain := c.Chain(primary)
	out := Result{Primary: primary.ID}
	var last invoker.Result

	for idx, desc := range chain {
		if idx > 0 {
			out.Trace = append(out.Trace, StateFallbackNext)
		}
		out.Trace = append(out.Trace, StateInvoking)

		res := c.invoker.Invoke(ctx, desc, req)
		for i := 1; i < res.Attempts; i++ {
			out.Trace = append(out.Trace, StateRetrying, StateInvoking)
		}
		out.TotalAttempts += res.Attempts
		last = res

		report := Report{
			BackendID:    desc.ID,
			Attempts:     res.Attempts,
			ErrorKind:    res.ErrorKind,
			FallbackUsed: idx > 0,
		}
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		out.Reports = append(out.Reports, report)

		if res.Success {
			out.Result = res
			out.Trace = append(out.Trace, StateSucceeded)
			if idx > 0 {
				c.log.Info().
					Str("primary", primary.ID).
					Str("backend", desc.ID).
					Int("position", idx).
					Msg("fallback backend answered")
			}
			return out
		}

		c.log.Warn().
			Str("backend", desc.ID).
			Int("attempts", res.Attempts).
			Str("kind", string(res.ErrorKind)).
			Err(res.Err).
			Msg("backend failed")

		if res.ErrorKind == invoker.ErrorCancelled || ctx.Err() != nil {
			out.Result = res
			out.Result.ErrorKind = invoker.ErrorCancelled
			if out.Result.Err == nil {
				out.Result.Err = ctx.Err()
			}
			out.Trace = append(out.Trace, StateFailed)
			return out
		}
	}

	out.Result = invoker.Result{
		Success:   false,
		Content:   UnavailableMessage,
		BackendID: primary.ID,
		ErrorKind: invoker.ErrorTransport,
		Attempts:  out.TotalAttempts,
		Err:       fmt.Errorf("%w after %d backends: %v", ErrAllBackendsExhausted, len(chain), last.Err),
	}
	out.Trace = append(out.Trace, StateFailed)
	c.log.Error().
		Str("primary", primary.ID).
		Int("backends", len(chain)).
		Int("attempts", out.TotalAttempts).
		Msg("all backends exhausted")
	return out
}

// Exhausted reports whether err marks a fully failed chain.
func Exhausted(err error) bool {
	return errors.Is(err, ErrAllBackendsExhausted)
}

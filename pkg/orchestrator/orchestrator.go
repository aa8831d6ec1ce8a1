// Package orchestrator processes one query end to end: classify, route,
// invoke with fallback, personalise and record.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/fallback"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/history"
	"github.com/zen-systems/switchyard/pkg/intent"
	"github.com/zen-systems/switchyard/pkg/invoker"
	"github.com/zen-systems/switchyard/pkg/persona"
	"github.com/zen-systems/switchyard/pkg/router"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// Steps recorded before the cascade takes over the trace.
const (
	StepClassifying = "classifying"
	StepRouted      = "routed"
)

// CancelledMessage is shown when the caller abandons a query.
const CancelledMessage = "Request cancelled."

// ContextProvider supplies the context block sent along with a query.
type ContextProvider interface {
	Context(ctx context.Context, query string) (string, error)
}

// Recorder stores finished interactions.
type Recorder interface {
	Record(ctx context.Context, in history.Interaction) error
}

// History is a ContextProvider and Recorder that can also list and clear
// what it holds. It backs the history commands.
type History interface {
	ContextProvider
	Recorder
	Recent(ctx context.Context, n int) ([]history.Interaction, error)
	Clear(ctx context.Context) (int64, error)
}

// Result is everything known about one processed query.
type Result struct {
	QueryID        string                `json:"query_id"`
	Query          string                `json:"query"`
	Classification intent.Classification `json:"classification"`
	Decision       router.Decision       `json:"decision"`
	Invocation     fallback.Result       `json:"invocation"`
	Content        string                `json:"content"`
	Trace          []string              `json:"trace"`
	Exit           bool                  `json:"exit,omitempty"`
	Duration       time.Duration         `json:"duration"`
}

// Success reports whether a backend answered.
func (r *Result) Success() bool {
	return r.Invocation.Success
}

// Components are the collaborators an Orchestrator needs.
type Components struct {
	Registry   *backend.Registry
	Classifier *intent.Classifier
	Router     *router.AdaptiveRouter
	Cascade    *fallback.Cascade
	Hardware   hardware.Provider
	Usage      *usage.Counter
	Routing    *config.RoutingConfig
}

func (c Components) validate() error {
	switch {
	case c.Registry == nil:
		return errors.New("registry is required")
	case c.Classifier == nil:
		return errors.New("classifier is required")
	case c.Router == nil:
		return errors.New("router is required")
	case c.Cascade == nil:
		return errors.New("cascade is required")
	}
	return nil
}

// Orchestrator is safe for concurrent use; each Process call is independent.
type Orchestrator struct {
	Components

	persona  persona.Personalizer
	contexts ContextProvider
	recorder Recorder
	history  History
	log      zerolog.Logger
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPersonalizer formats successful answers.
func WithPersonalizer(p persona.Personalizer) Option {
	return func(o *Orchestrator) { o.persona = p }
}

// WithContextProvider sets where the context block comes from.
func WithContextProvider(p ContextProvider) Option {
	return func(o *Orchestrator) { o.contexts = p }
}

// WithRecorder sets where finished interactions go.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithHistory uses h as context provider, recorder and history command
// backend.
func WithHistory(h History) Option {
	return func(o *Orchestrator) {
		o.history = h
		o.contexts = h
		o.recorder = h
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an orchestrator.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Routing == nil {
		c.Routing = config.DefaultRoutingConfig()
	}
	if c.Hardware == nil {
		c.Hardware = hardware.StaticProvider{Value: hardware.DefaultStatus()}
	}
	o := &Orchestrator{
		Components: c,
		persona:    persona.Passthrough,
		log:        zerolog.Nop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process answers query. Backend failures never produce an error: a fully
// failed chain yields a Result with a generic apology. The error is non-nil
// only when ctx ends before an answer is ready.
func (o *Orchestrator) Process(ctx context.Context, query string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{QueryID: o.newID(), Query: query}
	log := o.log.With().Str("query_id", res.QueryID).Logger()

	res.Trace = append(res.Trace, StepClassifying)
	res.Classification = o.Classifier.Classify(query)

	res.Decision = o.Router.RouteClassified(ctx, res.Classification)
	res.Trace = append(res.Trace, StepRouted)

	desc, ok := o.Registry.Get(res.Decision.BackendID)
	if !ok {
		log.Warn().Str("backend", res.Decision.BackendID).Msg("routed to unknown backend, using main brain")
		desc, _ = o.Registry.Get(o.Routing.MainBrain)
	}

	req := o.request(ctx, log, res.Classification)
	res.Invocation = o.Cascade.Invoke(ctx, desc, req)
	for _, st := range res.Invocation.Trace {
		res.Trace = append(res.Trace, string(st))
	}

	switch {
	case res.Invocation.Success:
		res.Content = persona.SafeFormat(o.persona, log, res.Invocation.Content, res.Invocation.BackendID, true)
	case res.Invocation.ErrorKind == invoker.ErrorCancelled:
		res.Content = CancelledMessage
	default:
		res.Content = fallback.UnavailableMessage
	}
	res.Exit = res.Classification.Type == intent.TypeCommand && res.Classification.Command == "exit"
	res.Duration = time.Since(start)

	log.Info().
		Str("intent", res.Classification.Intent).
		Str("routed", res.Decision.BackendID).
		Str("answered", res.Invocation.BackendID).
		Bool("success", res.Invocation.Success).
		Int("attempts", res.Invocation.TotalAttempts).
		Dur("took", res.Duration).
		Msg("query processed")

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	o.record(ctx, log, res)
	return res, nil
}

func (o *Orchestrator) request(ctx context.Context, log zerolog.Logger, cls intent.Classification) invoker.Request {
	req := invoker.Request{Query: cls.Payload}
	if cls.Type == intent.TypeCommand {
		req.Command = cls.Command
		req.Args = cls.Args
		return req
	}
	if o.contexts == nil {
		return req
	}
	block, err := o.contexts.Context(ctx, cls.Payload)
	if err != nil {
		log.Warn().Err(err).Msg("context unavailable")
		return req
	}
	req.Context = block
	return req
}

func (o *Orchestrator) record(ctx context.Context, log zerolog.Logger, res *Result) {
	if o.recorder == nil || res.Exit {
		return
	}
	// commands that wipe history should not reappear in it
	if res.Classification.Command == "clear" || res.Classification.Command == "reset" {
		return
	}
	// the raw answer is stored so persona wording does not feed back as context
	response := res.Content
	if res.Invocation.Success {
		response = res.Invocation.Content
	}
	in := history.Interaction{
		QueryID:      res.QueryID,
		Query:        res.Query,
		Response:     response,
		BackendID:    res.Invocation.BackendID,
		Intent:       res.Classification.Intent,
		Source:       string(res.Decision.Source),
		Success:      res.Invocation.Success,
		ErrorKind:    string(res.Invocation.ErrorKind),
		Attempts:     res.Invocation.TotalAttempts,
		FallbackUsed: res.Invocation.FallbackUsed(),
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), in); err != nil {
		log.Warn().Err(err).Msg("failed to record interaction")
	}
}

// UsageStats returns a copy of per-backend usage.
func (o *Orchestrator) UsageStats() map[string]usage.Stats {
	return o.Usage.Stats()
}

// StaticContext is a ContextProvider that always returns the same block.
type StaticContext string

// Context returns the block unchanged.
func (s StaticContext) Context(context.Context, string) (string, error) {
	return string(s), nil
}

// Package invoker calls a single backend with a per-attempt deadline and
// bounded retries, and normalises what comes back.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorTimeout           ErrorKind = "timeout"
	ErrorCancelled         ErrorKind = "cancelled"
	ErrorMalformedResponse ErrorKind = "malformed_response"
	ErrorTransport         ErrorKind = "transport_error"
)

// Request is what the caller wants answered.
type Request struct {
	Query   string
	Context string

	// Command and Args are forwarded to the loopback backend.
	Command string
	Args    []string
}

// Result is the outcome of Invoke on one backend. Err keeps the raw cause
// for logs; it must not be shown to users.
type Result struct {
	Success   bool          `json:"success"`
	Content   string        `json:"content,omitempty"`
	BackendID string        `json:"backend_id"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Err       error         `json:"-"`
	Attempts  int           `json:"attempts"`
	Extracted bool          `json:"extracted,omitempty"`
	Method    ExtractMethod `json:"extract_method,omitempty"`
	Tokens    int           `json:"tokens"`
}

// Policy bounds the attempts made against one backend.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// DefaultPolicy is two attempts, 30s each, 1s backoff doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseBackoff: time.Second,
		MaxBackoff:  8 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// PolicyFromConfig converts the retry section of the routing config.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseBackoffMs > 0 {
		p.BaseBackoff = time.Duration(cfg.BaseBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.TimeoutSeconds > 0 {
		p.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return p
}

// Invoker is safe for concurrent use.
type Invoker struct {
	adapters    adapter.Set
	policy      Policy
	usage       *usage.Counter
	normalizers map[backend.Transport]Normalizer
	maxTokens   int
	log         zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithUsage records every attempt in u.
func WithUsage(u *usage.Counter) Option {
	return func(i *Invoker) { i.usage = u }
}

// WithLogger sets the invoker logger.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Invoker) { i.log = log }
}

// WithNormalizer overrides the strategy for one transport.
func WithNormalizer(t backend.Transport, n Normalizer) Option {
	return func(i *Invoker) { i.normalizers[t] = n }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(i *Invoker) { i.maxTokens = n }
}

// New creates an invoker over adapters keyed by provider name.
func New(adapters adapter.Set, policy Policy, opts ...Option) *Invoker {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	i := &Invoker{
		adapters:    adapters,
		policy:      policy,
		normalizers: DefaultNormalizers(),
		log:         zerolog.Nop(),
		sleep:       sleepWithContext,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Policy returns the retry policy in use.
func (i *Invoker) Policy() Policy {
	return i.policy
}

// Invoke calls desc, retrying retryable failures up to the attempt cap.
// Attempts are strictly sequential.
func (i *Invoker) Invoke(ctx context.Context, desc backend.Descriptor, req Request) Result {
	res := Result{BackendID: desc.ID}

	a, err := i.adapters.For(desc.Provider)
	if err != nil {
		res.Attempts = 1
		res.ErrorKind = ErrorTransport
		res.Err = err
		i.usage.RecordCall(desc.ID, 0, false)
		i.log.Warn().Str("backend", desc.ID).Err(err).Msg("backend has no adapter")
		return res
	}

	areq := i.buildRequest(desc, req)
	promptTokens := usage.ApproxTokens(areq.System, areq.Prompt)

	for attempt := 1; attempt <= i.policy.MaxAttempts; attempt++ {
		res.Attempts = attempt

		norm, kind, err := i.attempt(ctx, a, desc, areq)
		tokens := promptTokens + usage.ApproxTokens(norm.Content)
		res.Tokens += tokens
		i.usage.RecordCall(desc.ID, tokens, kind == ErrorNone)

		if kind == ErrorNone {
			res.Success = true
			res.Content = norm.Content
			res.Extracted = norm.Extracted
			res.Method = norm.Method
			res.ErrorKind = ErrorNone
			res.Err = nil
			return res
		}

		res.ErrorKind = kind
		res.Err = err
		i.log.Warn().
			Str("backend", desc.ID).
			Int("attempt", attempt).
			Str("kind", string(kind)).
			Bool("transient", adapter.IsTransient(err)).
			Err(err).
			Msg("backend attempt failed")

		if !retryable(kind, err) || attempt == i.policy.MaxAttempts {
			break
		}

		backoff := computeBackoff(i.policy.BaseBackoff, i.policy.MaxBackoff, attempt-1)
		if err := i.sleep(ctx, backoff); err != nil {
			res.ErrorKind = ErrorCancelled
			res.Err = err
			break
		}
	}

	return res
}

func (i *Invoker) attempt(ctx context.Context, a adapter.Adapter, desc backend.Descriptor, req adapter.Request) (Normalized, ErrorKind, error) {
	if err := ctx.Err(); err != nil {
		return Normalized{}, ErrorCancelled, err
	}

	actx, cancel := context.WithTimeout(ctx, i.policy.Timeout)
	defer cancel()

	resp, err := a.Generate(actx, req)
	if err != nil {
		return Normalized{}, classify(ctx, actx, err), err
	}
	if ctx.Err() != nil {
		return Normalized{}, ErrorCancelled, ctx.Err()
	}

	norm, err := i.normalizer(desc.Transport).Normalize(resp)
	if err != nil {
		return Normalized{}, ErrorMalformedResponse, err
	}
	return norm, ErrorNone, nil
}

func (i *Invoker) normalizer(t backend.Transport) Normalizer {
	if n, ok := i.normalizers[t]; ok {
		return n
	}
	return NormalizerFunc(normalizeHosted)
}

func (i *Invoker) buildRequest(desc backend.Descriptor, req Request) adapter.Request {
	system := desc.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt(desc)
	}
	return adapter.Request{
		Model:     desc.RemoteModel,
		System:    system,
		Prompt:    composePrompt(req.Context, req.Query),
		MaxTokens: i.maxTokens,
		Command:   req.Command,
		Args:      req.Args,
	}
}

func defaultSystemPrompt(desc backend.Descriptor) string {
	if desc.Category == "" || desc.Category == backend.CategoryGeneral {
		return "You are a helpful personal assistant. Answer clearly and concisely."
	}
	return fmt.Sprintf("You are a personal assistant specialised in %s. Answer clearly and concisely.", desc.Category)
}

// composePrompt prepends the context block, if any, to the query.
func composePrompt(contextBlock, query string) string {
	contextBlock = strings.TrimSpace(contextBlock)
	if contextBlock == "" {
		return query
	}
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nQuery:\n")
	sb.WriteString(query)
	return sb.String()
}

// classify maps a Generate error to a kind. A deadline on the attempt
// context is a timeout; anything that ended the caller's context is a
// cancellation.
func classify(parent, attempt context.Context, err error) ErrorKind {
	if parent.Err() != nil {
		return ErrorCancelled
	}
	if errors.Is(err, adapter.ErrMalformedResponse) {
		return ErrorMalformedResponse
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCancelled
	}
	return ErrorTransport
}

func retryable(kind ErrorKind, err error) bool {
	switch kind {
	case ErrorTimeout:
		return true
	case ErrorTransport:
		return !adapter.IsPermanent(err)
	default:
		return false
	}
}

func computeBackoff(base, limit time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

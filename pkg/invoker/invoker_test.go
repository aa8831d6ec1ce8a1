package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// scriptedAdapter replays one step per call; the last step repeats.
type scriptedAdapter struct {
	mu    sync.Mutex
	steps []func(ctx context.Context, req adapter.Request) (*adapter.Response, error)
	calls int
	last  adapter.Request
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Generate(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	a.mu.Lock()
	idx := a.calls
	if idx >= len(a.steps) {
		idx = len(a.steps) - 1
	}
	a.calls++
	a.last = req
	step := a.steps[idx]
	a.mu.Unlock()
	return step(ctx, req)
}

func reply(content string) func(context.Context, adapter.Request) (*adapter.Response, error) {
	return func(context.Context, adapter.Request) (*adapter.Response, error) {
		return &adapter.Response{Content: content}, nil
	}
}

func fail(err error) func(context.Context, adapter.Request) (*adapter.Response, error) {
	return func(context.Context, adapter.Request) (*adapter.Response, error) {
		return nil, err
	}
}

func hang(ctx context.Context, _ adapter.Request) (*adapter.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var hosted = backend.Descriptor{
	ID:          "code-specialist",
	RemoteModel: "qwen",
	Provider:    "compat",
	Transport:   backend.TransportHostedAPI,
	Category:    backend.CategoryCoding,
}

type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func newTestInvoker(a adapter.Adapter, counter *usage.Counter, policy Policy) (*Invoker, *sleepRecorder) {
	rec := &sleepRecorder{}
	inv := New(adapter.Set{"compat": a}, policy, WithUsage(counter))
	inv.sleep = rec.sleep
	return inv, rec
}

func TestInvokeSuccess(t *testing.T) {
	a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){reply("reversed!")}}
	counter := usage.NewCounter([]string{hosted.ID})
	inv, _ := newTestInvoker(a, counter, DefaultPolicy())

	res := inv.Invoke(context.Background(), hosted, Request{Query: "reverse a list", Context: "user likes go"})
	if !res.Success || res.Content != "reversed!" || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ErrorKind != ErrorNone || res.Err != nil {
		t.Fatalf("unexpected error %v %v", res.ErrorKind, res.Err)
	}
	if !strings.Contains(a.last.Prompt, "user likes go") || !strings.HasSuffix(a.last.Prompt, "reverse a list") {
		t.Fatalf("context not composed into prompt: %q", a.last.Prompt)
	}
	if a.last.Model != "qwen" || !strings.Contains(a.last.System, "coding") {
		t.Fatalf("unexpected request %+v", a.last)
	}

	stats, _ := counter.Get(hosted.ID)
	if stats.Calls != 1 || stats.Tokens == 0 {
		t.Fatalf("usage not recorded: %+v", stats)
	}
}

func TestInvokeRetriesThenSucceeds(t *testing.T) {
	a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){
		fail(&adapter.AdapterError{Status: 503, Err: errors.New("overloaded")}),
		reply("second time lucky"),
	}}
	counter := usage.NewCounter(nil)
	inv, rec := newTestInvoker(a, counter, DefaultPolicy())

	res := inv.Invoke(context.Background(), hosted, Request{Query: "q"})
	if !res.Success || res.Attempts != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(rec.slept) != 1 || rec.slept[0] != time.Second {
		t.Fatalf("expected one 1s backoff, got %v", rec.slept)
	}

	stats, _ := counter.Get(hosted.ID)
	if stats.Calls != 2 || stats.Failures != 1 {
		t.Fatalf("expected both attempts counted, got %+v", stats)
	}
}

func TestInvokeTimeoutUsesAttemptCap(t *testing.T) {
	a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){hang}}
	policy := DefaultPolicy()
	policy.Timeout = 20 * time.Millisecond
	inv, rec := newTestInvoker(a, nil, policy)

	res := inv.Invoke(context.Background(), hosted, Request{Query: "q"})
	if res.Success || res.ErrorKind != ErrorTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.Attempts != 2 || a.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d (calls %d)", res.Attempts, a.calls)
	}
	if len(rec.slept) != 1 {
		t.Fatalf("expected a single backoff between attempts, got %v", rec.slept)
	}
}

func TestInvokeDoesNotRetryPermanentOrMalformed(t *testing.T) {
	tests := []struct {
		name string
		step func(context.Context, adapter.Request) (*adapter.Response, error)
		kind ErrorKind
	}{
		{"unauthorized", fail(&adapter.AdapterError{Status: 401, Err: errors.New("bad key")}), ErrorTransport},
		{"forbidden", fail(&adapter.AdapterError{Status: 403, Err: errors.New("no access")}), ErrorTransport},
		{"malformed error", fail(fmt.Errorf("decode: %w", adapter.ErrMalformedResponse)), ErrorMalformedResponse},
		{"empty body", reply(""), ErrorMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){tt.step}}
			inv, _ := newTestInvoker(a, nil, DefaultPolicy())

			res := inv.Invoke(context.Background(), hosted, Request{Query: "q"})
			if res.ErrorKind != tt.kind {
				t.Fatalf("expected %s, got %+v", tt.kind, res)
			}
			if a.calls != 1 {
				t.Fatalf("expected a single call, got %d", a.calls)
			}
		})
	}
}

func TestInvokeRunsFailingCommandOnce(t *testing.T) {
	var runs int
	loop := adapter.NewLoopbackAdapter()
	loop.Handle("reset", func(context.Context, []string) (string, error) {
		runs++
		return "", errors.New("nothing to reset")
	})
	counter := usage.NewCounter([]string{backend.LoopbackClassifier})
	inv := New(adapter.Set{backend.ProviderLoopback: loop}, DefaultPolicy(), WithUsage(counter))
	rec := &sleepRecorder{}
	inv.sleep = rec.sleep

	desc := backend.Descriptor{
		ID:        backend.LoopbackClassifier,
		Provider:  backend.ProviderLoopback,
		Transport: backend.TransportLoopback,
		Category:  backend.CategorySystem,
	}
	res := inv.Invoke(context.Background(), desc, Request{Query: "reset", Command: "reset"})

	if res.Success || res.ErrorKind != ErrorTransport {
		t.Fatalf("expected a transport failure, got %+v", res)
	}
	if runs != 1 || res.Attempts != 1 {
		t.Fatalf("expected one run and one attempt, got %d runs, %d attempts", runs, res.Attempts)
	}
	if len(rec.slept) != 0 {
		t.Fatalf("expected no backoff, got %v", rec.slept)
	}
	if s, _ := counter.Get(backend.LoopbackClassifier); s.Calls != 1 || s.Failures != 1 {
		t.Fatalf("unexpected usage %+v", s)
	}
}

func TestInvokeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){
		func(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	counter := usage.NewCounter(nil)
	inv, _ := newTestInvoker(a, counter, DefaultPolicy())

	res := inv.Invoke(ctx, hosted, Request{Query: "q"})
	if res.ErrorKind != ErrorCancelled || res.Attempts != 1 {
		t.Fatalf("expected cancelled after one attempt, got %+v", res)
	}
	if stats, _ := counter.Get(hosted.ID); stats.Calls != 1 {
		t.Fatalf("cancelled attempt must still be counted, got %+v", stats)
	}
}

func TestInvokeMissingAdapter(t *testing.T) {
	inv := New(adapter.Set{}, DefaultPolicy())
	res := inv.Invoke(context.Background(), hosted, Request{Query: "q"})
	if res.Success || res.ErrorKind != ErrorTransport || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInvokeRecoversReasoning(t *testing.T) {
	a := &scriptedAdapter{steps: []func(context.Context, adapter.Request) (*adapter.Response, error){
		func(context.Context, adapter.Request) (*adapter.Response, error) {
			return &adapter.Response{Reasoning: "Let me write it.\n```go\nfunc f() {}\n```\nDone."}, nil
		},
	}}
	inv, _ := newTestInvoker(a, nil, DefaultPolicy())

	res := inv.Invoke(context.Background(), hosted, Request{Query: "q"})
	if !res.Success || !res.Extracted || res.Method != ExtractCodeBlock {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Content != "```go\nfunc f() {}\n```" {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestComputeBackoff(t *testing.T) {
	base, limit := time.Second, 3*time.Second
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for attempt, w := range want {
		if got := computeBackoff(base, limit, attempt); got != w {
			t.Fatalf("attempt %d: got %v want %v", attempt, got, w)
		}
	}
}

func TestPolicyFromConfigDefaults(t *testing.T) {
	p := PolicyFromConfig(config.RetryConfig{MaxAttempts: 3})
	if p.MaxAttempts != 3 || p.BaseBackoff != time.Second || p.Timeout != 30*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}

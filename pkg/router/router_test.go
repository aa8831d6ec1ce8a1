package router

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/intent"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// switchableProvider lets a test change the host status between calls.
type switchableProvider struct {
	mu     sync.Mutex
	status hardware.Status
}

func (p *switchableProvider) Status(context.Context) (hardware.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func (p *switchableProvider) set(s hardware.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

var (
	idle        = hardware.Status{CPUPercent: 10, MemoryFreePercent: 60, Online: true}
	overloaded  = hardware.Status{CPUPercent: 99, MemoryFreePercent: 2, Online: true}
	offlineHost = hardware.Status{MemoryFreePercent: 60, Online: false, LocalRuntimeReachable: true}
)

type fixture struct {
	router *AdaptiveRouter
	hw     *switchableProvider
	usage  *usage.Counter
	clock  *time.Time
}

func newFixture(t *testing.T, status hardware.Status, opts ...intent.Option) fixture {
	t.Helper()
	cfg := config.DefaultRoutingConfig()
	reg, err := cfg.Registry()
	require.NoError(t, err)

	hw := &switchableProvider{status: status}
	counter := usage.NewCounter(reg.IDs())
	r := New(reg, intent.New(reg, cfg, opts...), hw, WithUsage(counter))

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("decision-%d", seq)
	}
	return fixture{router: r, hw: hw, usage: counter, clock: &clock}
}

func (f fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestRouteHelpCommand(t *testing.T) {
	f := newFixture(t, idle)

	d, cls := f.router.Route(context.Background(), "help")
	assert.Equal(t, intent.TypeCommand, cls.Type)
	assert.Equal(t, "help", cls.Command)
	assert.Equal(t, backend.LoopbackClassifier, d.BackendID)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, SourceCommandOverride, d.Source)
}

func TestCommandsAlwaysLoopback(t *testing.T) {
	for _, status := range []hardware.Status{idle, overloaded, offlineHost} {
		f := newFixture(t, status)
		// a textually similar non-command query is cached first
		f.router.Route(context.Background(), "status of my essay")

		for _, q := range []string{"status", "exit", "clear history", "usage"} {
			d, _ := f.router.Route(context.Background(), q)
			assert.Equal(t, backend.LoopbackClassifier, d.BackendID, "%q with %+v", q, status)
			assert.Equal(t, SourceCommandOverride, d.Source)
		}
	}
}

func TestRouteExplicitRequest(t *testing.T) {
	for _, status := range []hardware.Status{idle, overloaded} {
		f := newFixture(t, status)

		d, cls := f.router.Route(context.Background(), "ask code how to reverse a linked list")
		assert.Equal(t, "code-specialist", d.BackendID)
		assert.Equal(t, 1.0, d.Confidence)
		assert.Equal(t, SourceExplicitRequest, d.Source)
		assert.Equal(t, "ask code how to reverse a linked list", cls.Payload)
	}
}

func TestKeywordMatchSurvivesConstrainedHardware(t *testing.T) {
	f := newFixture(t, overloaded)

	d, _ := f.router.Route(context.Background(), "can you brainstorm some startup ideas")
	assert.Equal(t, "brainstorm-specialist", d.BackendID)
	assert.Equal(t, 0.8, d.Confidence)
	assert.Equal(t, SourceKeywordMatch, d.Source)
	assert.True(t, d.Hardware.CPUConstrained)
	assert.True(t, d.Hardware.MemoryConstrained)
}

func TestRouteOffline(t *testing.T) {
	f := newFixture(t, offlineHost)

	d, _ := f.router.Route(context.Background(), "what's up")
	assert.Equal(t, backend.OfflineLocal, d.BackendID)
	assert.Equal(t, SourceHardwareFallback, d.Source)
	assert.True(t, d.Hardware.OfflineMode)

	noRuntime := offlineHost
	noRuntime.LocalRuntimeReachable = false
	f = newFixture(t, noRuntime)
	d, _ = f.router.Route(context.Background(), "what's up")
	assert.Equal(t, backend.LoopbackClassifier, d.BackendID)
}

func TestRouteGeneral(t *testing.T) {
	f := newFixture(t, idle, intent.WithConfidenceClassifier(intent.NopClassifier{}))

	d, cls := f.router.Route(context.Background(), "tell me something nice about the weather today")
	assert.Equal(t, intent.TypeGeneral, cls.Type)
	assert.Equal(t, backend.MainBrain, d.BackendID)
	assert.Equal(t, DefaultConfidence, d.Confidence)
	assert.Equal(t, SourceHardwareFallback, d.Source)
}

func TestGeneralShedsUnderCPULoad(t *testing.T) {
	f := newFixture(t, overloaded, intent.WithConfidenceClassifier(intent.NopClassifier{}))

	d, _ := f.router.Route(context.Background(), "tell me something nice about the weather today")
	assert.Equal(t, backend.LoopbackClassifier, d.BackendID)
	assert.Equal(t, SheddingConfidence, d.Confidence)
}

type fixedScorer struct{ id string }

func (f fixedScorer) Classify(string) (string, float64) { return f.id, 0.9 }

func TestClassifierDecisionShedsUnderCPULoad(t *testing.T) {
	query := "make my slides look nicer overall"

	f := newFixture(t, idle, intent.WithConfidenceClassifier(fixedScorer{id: "visual-specialist"}))
	d, _ := f.router.Route(context.Background(), query)
	assert.Equal(t, "visual-specialist", d.BackendID)
	assert.Equal(t, SourceConfidenceClassifier, d.Source)
	assert.Equal(t, 0.9, d.Confidence)

	f = newFixture(t, overloaded, intent.WithConfidenceClassifier(fixedScorer{id: "visual-specialist"}))
	d, _ = f.router.Route(context.Background(), query)
	assert.Equal(t, backend.LoopbackClassifier, d.BackendID)
}

func TestCacheDeterminismAndExpiry(t *testing.T) {
	f := newFixture(t, idle, intent.WithConfidenceClassifier(intent.NopClassifier{}))
	query := "tell me something nice about the weather today"

	first, _ := f.router.Route(context.Background(), query)

	// hardware changes but the cached decision is returned verbatim
	f.hw.set(overloaded)
	f.advance(4 * time.Minute)
	second, _ := f.router.Route(context.Background(), "  Tell me something   nice about the weather today ")
	assert.Equal(t, first, second)
	assert.Equal(t, "decision-1", second.ID)

	f.advance(time.Minute)
	third, _ := f.router.Route(context.Background(), query)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, backend.LoopbackClassifier, third.BackendID)
	assert.True(t, third.Hardware.CPUConstrained)
}

func TestRoutedUsageCountsFreshDecisions(t *testing.T) {
	f := newFixture(t, idle)

	f.router.Route(context.Background(), "ask math what is 7 squared")
	f.router.Route(context.Background(), "ask math what is 7 squared")
	f.router.Route(context.Background(), "ask math what is 8 squared")

	s, ok := f.usage.Get("math-specialist")
	require.True(t, ok)
	assert.Equal(t, int64(2), s.Routed)
	assert.Zero(t, s.Calls, "routing is not a call")
}

func TestConcurrentRouting(t *testing.T) {
	cfg := config.DefaultRoutingConfig()
	reg, err := cfg.Registry()
	require.NoError(t, err)
	r := New(reg, intent.New(reg, cfg), hardware.StaticProvider{Value: idle})

	queries := []string{"help", "ask code x y", "debug my app", "what's up", "write a poem"}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, _ := r.Route(context.Background(), queries[i%len(queries)])
			assert.NotEmpty(t, d.BackendID)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, len(queries), r.Cache().Len())
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/orchestrator"
	"github.com/zen-systems/switchyard/pkg/scheduler"
)

func withFlags(t *testing.T, mock, offline bool) {
	t.Helper()
	prevMock, prevOffline := mockFlag, offlineFlag
	mockFlag, offlineFlag = mock, offline
	t.Cleanup(func() { mockFlag, offlineFlag = prevMock, prevOffline })
}

func TestCreateAdaptersOnlyForConfiguredKeys(t *testing.T) {
	withFlags(t, false, false)
	cfg := &config.Config{
		AnthropicAPIKey: "test-key",
		CompatAPIKey:    "test-key",
		RoutingConfig:   config.DefaultRoutingConfig(),
	}

	set, ollama, err := createAdapters(cfg)
	require.NoError(t, err)
	require.NotNil(t, ollama)

	assert.Contains(t, set, backend.ProviderAnthropic)
	assert.Contains(t, set, backend.ProviderCompat)
	assert.Contains(t, set, backend.ProviderOllama)
	assert.NotContains(t, set, backend.ProviderOpenAI)
	assert.NotContains(t, set, backend.ProviderGoogle)
	assert.IsType(t, &adapter.LoopbackAdapter{}, set[backend.ProviderLoopback])
}

func TestCreateAdaptersMock(t *testing.T) {
	withFlags(t, true, false)
	cfg := &config.Config{RoutingConfig: config.DefaultRoutingConfig()}

	set, _, err := createAdapters(cfg)
	require.NoError(t, err)

	reg, err := cfg.RoutingConfig.Registry()
	require.NoError(t, err)
	for _, p := range reg.Providers() {
		_, err := set.For(p)
		assert.NoError(t, err, p)
	}
	assert.IsType(t, &adapter.MockAdapter{}, set[backend.ProviderAnthropic])
	assert.IsType(t, &adapter.LoopbackAdapter{}, set[backend.ProviderLoopback])
}

func TestHardwareProviderOfflineMock(t *testing.T) {
	withFlags(t, true, true)
	routing := config.DefaultRoutingConfig()

	p := hardwareProvider(context.Background(), routing, adapter.NewOllamaAdapter(""))
	status, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Online)
	assert.True(t, status.LocalRuntimeReachable)
}

func mockRuntime(t *testing.T, logs *bytes.Buffer) *runtime {
	t.Helper()
	cfg := &config.Config{RoutingConfig: config.DefaultRoutingConfig()}
	log := zerolog.New(zerolog.SyncWriter(logs))

	rt := &runtime{cfg: cfg, log: log}
	rt.hardware = hardware.NewCachedProvider(
		hardware.StaticProvider{Value: hardware.DefaultStatus()}, time.Minute, zerolog.Nop())

	providers := []string{
		backend.ProviderAnthropic, backend.ProviderOpenAI, backend.ProviderGoogle,
		backend.ProviderCompat, backend.ProviderOllama,
	}
	orch, err := orchestrator.Assemble(orchestrator.Setup{
		Routing:  cfg.RoutingConfig,
		Adapters: adapter.MockSet(providers, adapter.NewLoopbackAdapter()),
		Hardware: rt.hardware,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	rt.orch = orch
	return rt
}

func TestServeUsageReportCountsServedQueries(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	rt := mockRuntime(t, &logs)

	sched, err := startJobs(ctx, rt)
	require.NoError(t, err)
	defer sched.Stop()

	var out bytes.Buffer
	in := strings.NewReader("write a python function to parse csv files\n\nwhat is the capital of france\n")
	require.NoError(t, serveQueries(ctx, rt.orch, in, &out))

	var results []orchestrator.Result
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var res orchestrator.Result
		require.NoError(t, json.Unmarshal(sc.Bytes(), &res))
		results = append(results, res)
	}
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Success(), res.Query)
		assert.NotEmpty(t, res.Content)
	}

	logs.Reset()
	require.NoError(t, sched.RunNow(ctx, scheduler.JobUsageReport))

	var report map[string]any
	sc = bufio.NewScanner(bytes.NewReader(logs.Bytes()))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["message"] == "usage report" {
			report = line
		}
	}
	require.NotNil(t, report, logs.String())
	assert.GreaterOrEqual(t, report["calls"], float64(2))
	assert.EqualValues(t, 2, report["routed"])
}

func TestServeQueriesStopsOnExit(t *testing.T) {
	var logs bytes.Buffer
	rt := mockRuntime(t, &logs)

	var out bytes.Buffer
	in := strings.NewReader("exit\nwhat is the capital of france\n")
	require.NoError(t, serveQueries(context.Background(), rt.orch, in, &out))

	require.Equal(t, 1, strings.Count(out.String(), "\n"))
	var res orchestrator.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Exit)
}

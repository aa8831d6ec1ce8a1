package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/adapter"
	"github.com/zen-systems/switchyard/pkg/backend"
	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/history"
	"github.com/zen-systems/switchyard/pkg/logging"
	"github.com/zen-systems/switchyard/pkg/orchestrator"
	"github.com/zen-systems/switchyard/pkg/scheduler"
)

// runtime is everything a command needs to process queries.
type runtime struct {
	cfg      *config.Config
	log      zerolog.Logger
	orch     *orchestrator.Orchestrator
	hardware *hardware.CachedProvider
	history  *history.Store
}

type runtimeOptions struct {
	history bool
	context string
}

func (r *runtime) Close() {
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close history")
		}
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadWithRoutingFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if errs := cfg.RoutingConfig.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid routing config: %v", errs[0])
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(logging.Options{Level: level, Output: os.Stderr, Pretty: true})
}

func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	adapters, ollama, err := createAdapters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapters: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log}
	rt.hardware = hardware.NewCachedProvider(
		hardwareProvider(ctx, cfg.RoutingConfig, ollama),
		cfg.RoutingConfig.HardwareRefresh(),
		logging.Component(log, "hardware"),
	)

	setup := orchestrator.Setup{
		Routing:  cfg.RoutingConfig,
		Adapters: adapters,
		Hardware: rt.hardware,
		Log:      log,
	}
	if opts.history {
		store, err := history.Open(cfg.HistoryPath, cfg.HistoryTurns)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		rt.history = store
		setup.History = store
	}
	if opts.context != "" {
		setup.Context = orchestrator.StaticContext(opts.context)
	}

	rt.orch, err = orchestrator.Assemble(setup)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// startJobs runs the background jobs for a process that handles queries, so
// the usage report reflects the traffic of that same process. The caller
// must Stop the returned scheduler.
func startJobs(ctx context.Context, rt *runtime) (*scheduler.Scheduler, error) {
	sched := scheduler.New(logging.Component(rt.log, "scheduler"))
	sched.Register(scheduler.HardwareRefreshJob(rt.hardware))
	sched.Register(scheduler.UsageReportJob(rt.orch.Usage, logging.Component(rt.log, "usage")))
	if err := sched.Configure(rt.cfg.RoutingConfig.Jobs); err != nil {
		return nil, err
	}

	if err := sched.RunNow(ctx, scheduler.JobHardwareRefresh); err != nil {
		rt.log.Warn().Err(err).Msg("initial hardware reading failed")
	}
	sched.Start()
	return sched, nil
}

// hardwareProvider picks where host readings come from. Mock and offline
// runs never touch the network.
func hardwareProvider(ctx context.Context, routing *config.RoutingConfig, ollama *adapter.OllamaAdapter) hardware.Provider {
	switch {
	case offlineFlag:
		reachable := mockFlag
		if !mockFlag {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			reachable = ollama.Ping(pctx) == nil
			cancel()
		}
		return hardware.Offline(reachable)
	case mockFlag:
		return hardware.StaticProvider{Value: hardware.DefaultStatus()}
	}

	h := routing.Hardware
	return hardware.NewSystemProvider(
		h.ProbeAddress,
		time.Duration(h.ProbeTimeoutMs)*time.Millisecond,
		h.DiskPath,
		ollama.Ping,
	)
}

// createAdapters builds one adapter per provider with credentials. The local
// runtime and loopback adapters are always present. With --mock every remote
// provider answers from the mock adapter.
func createAdapters(cfg *config.Config) (adapter.Set, *adapter.OllamaAdapter, error) {
	endpoints := cfg.RoutingConfig.Endpoints
	ollama := adapter.NewOllamaAdapter(endpoints.OllamaURL)
	loopback := adapter.NewLoopbackAdapter()

	if mockFlag {
		providers := []string{
			backend.ProviderAnthropic, backend.ProviderOpenAI, backend.ProviderGoogle,
			backend.ProviderCompat, backend.ProviderOllama,
		}
		return adapter.MockSet(providers, loopback), ollama, nil
	}

	adapters := adapter.Set{
		backend.ProviderOllama:   ollama,
		backend.ProviderLoopback: loopback,
	}

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters[backend.ProviderAnthropic] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey, endpoints.OpenAIBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters[backend.ProviderOpenAI] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters[backend.ProviderGoogle] = a
	}

	if cfg.CompatAPIKey != "" {
		a, err := adapter.NewCompatAdapter(cfg.CompatAPIKey, endpoints.CompatBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create compat adapter: %w", err)
		}
		adapters[backend.ProviderCompat] = a
	}

	return adapters, ollama, nil
}

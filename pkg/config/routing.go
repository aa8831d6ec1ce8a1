package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/switchyard/pkg/backend"
)

// RoutingConfig holds the backend table and routing policy.
type RoutingConfig struct {
	Backends                      []backend.Descriptor `yaml:"backends" toml:"backends"`
	Aliases                       map[string]string    `yaml:"aliases" toml:"aliases"`
	MainBrain                     string               `yaml:"main_brain" toml:"main_brain"`
	Keywords                      []KeywordRule        `yaml:"keywords" toml:"keywords"`
	ScorerHints                   map[string][]string  `yaml:"scorer_hints,omitempty" toml:"scorer_hints"`
	Fillers                       []string             `yaml:"fillers,omitempty" toml:"fillers"`
	ClassifierBackend             string               `yaml:"classifier_backend,omitempty" toml:"classifier_backend"`
	ClassifierConfidenceThreshold float64              `yaml:"classifier_confidence_threshold,omitempty" toml:"classifier_confidence_threshold"`
	EnableLLMTieBreaker           *bool                `yaml:"enable_llm_tie_breaker,omitempty" toml:"enable_llm_tie_breaker"`
	Retry                         RetryConfig          `yaml:"retry,omitempty" toml:"retry"`
	Fallback                      FallbackConfig       `yaml:"fallback,omitempty" toml:"fallback"`
	Cache                         CacheConfig          `yaml:"cache,omitempty" toml:"cache"`
	Hardware                      HardwareConfig       `yaml:"hardware,omitempty" toml:"hardware"`
	Endpoints                     EndpointConfig       `yaml:"endpoints,omitempty" toml:"endpoints"`
	Jobs                          []JobConfig          `yaml:"jobs,omitempty" toml:"jobs"`
}

// KeywordRule maps whole-word keywords to a backend. Rules are evaluated in
// the order they appear; the first matching rule wins.
type KeywordRule struct {
	Category   string   `yaml:"category" toml:"category"`
	Keywords   []string `yaml:"keywords" toml:"keywords"`
	Backend    string   `yaml:"backend" toml:"backend"`
	Confidence float64  `yaml:"confidence,omitempty" toml:"confidence"`
}

// RetryConfig defines per-backend attempt and backoff behavior.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts,omitempty" toml:"max_attempts"`
	BaseBackoffMs  int `yaml:"base_backoff_ms,omitempty" toml:"base_backoff_ms"`
	MaxBackoffMs   int `yaml:"max_backoff_ms,omitempty" toml:"max_backoff_ms"`
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" toml:"timeout_seconds"`
}

// FallbackConfig defines per-category fallback ordering.
type FallbackConfig struct {
	AllowFallback *bool               `yaml:"allow_fallback,omitempty" toml:"allow_fallback"`
	Chains        map[string][]string `yaml:"chains,omitempty" toml:"chains"`
	MaxChain      int                 `yaml:"max_chain,omitempty" toml:"max_chain"`
}

// CacheConfig configures the routing decision cache.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds,omitempty" toml:"ttl_seconds"`
}

// HardwareConfig configures hardware polling and thresholds.
type HardwareConfig struct {
	RefreshSeconds         int     `yaml:"refresh_seconds,omitempty" toml:"refresh_seconds"`
	CPULimitPercent        float64 `yaml:"cpu_limit_percent,omitempty" toml:"cpu_limit_percent"`
	MemoryFreeFloorPercent float64 `yaml:"memory_free_floor_percent,omitempty" toml:"memory_free_floor_percent"`
	ProbeAddress           string  `yaml:"probe_address,omitempty" toml:"probe_address"`
	ProbeTimeoutMs         int     `yaml:"probe_timeout_ms,omitempty" toml:"probe_timeout_ms"`
	DiskPath               string  `yaml:"disk_path,omitempty" toml:"disk_path"`
}

// EndpointConfig holds base URLs for HTTP-speaking providers.
type EndpointConfig struct {
	CompatBaseURL string `yaml:"compat_base_url,omitempty" toml:"compat_base_url"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty" toml:"openai_base_url"`
	OllamaURL     string `yaml:"ollama_url,omitempty" toml:"ollama_url"`
}

// JobConfig schedules a background job by name.
type JobConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Schedule string `yaml:"schedule" toml:"schedule"`
	Enabled  *bool  `yaml:"enabled,omitempty" toml:"enabled"`
}

// IsEnabled reports whether the job should be scheduled.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// LoadRoutingConfig reads routing configuration from a YAML or TOML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{}
	applyRoutingDefaults(cfg)
	return cfg
}

// Registry builds the backend registry described by the config.
func (c *RoutingConfig) Registry() (*backend.Registry, error) {
	return backend.NewRegistry(c.Backends, c.Aliases)
}

// Validate checks every backend reference in the config.
// Returns a slice of validation errors (empty if all valid).
func (c *RoutingConfig) Validate() []error {
	reg, err := c.Registry()
	if err != nil {
		return []error{err}
	}

	var errs []error
	known := func(id string) bool {
		_, ok := reg.Get(id)
		return ok
	}

	if !known(c.MainBrain) {
		errs = append(errs, fmt.Errorf("main_brain: unknown backend %q", c.MainBrain))
	}
	if c.ClassifierBackend != "" && !known(c.ClassifierBackend) {
		errs = append(errs, fmt.Errorf("classifier_backend: unknown backend %q", c.ClassifierBackend))
	}
	for i, rule := range c.Keywords {
		if !known(rule.Backend) {
			errs = append(errs, fmt.Errorf("keywords[%d] (%s): unknown backend %q", i, rule.Category, rule.Backend))
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("keywords[%d] (%s): no keywords", i, rule.Category))
		}
	}
	for id := range c.ScorerHints {
		if !known(id) {
			errs = append(errs, fmt.Errorf("scorer_hints: unknown backend %q", id))
		}
	}
	for category, chain := range c.Fallback.Chains {
		for _, id := range chain {
			if !known(id) {
				errs = append(errs, fmt.Errorf("fallback chain %q: unknown backend %q", category, id))
			}
		}
	}

	return errs
}

// AttemptTimeout is the hard deadline for a single backend attempt.
func (c *RoutingConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.Retry.TimeoutSeconds) * time.Second
}

// CacheTTL is the lifetime of a cached routing decision.
func (c *RoutingConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// HardwareRefresh is the maximum age of a hardware snapshot.
func (c *RoutingConfig) HardwareRefresh() time.Duration {
	return time.Duration(c.Hardware.RefreshSeconds) * time.Second
}

// FallbackEnabled reports whether failed calls cascade to other backends.
func (c *RoutingConfig) FallbackEnabled() bool {
	return c.Fallback.AllowFallback == nil || *c.Fallback.AllowFallback
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = backend.DefaultDescriptors()
		if cfg.Aliases == nil {
			cfg.Aliases = backend.DefaultAliases()
		}
	}
	if cfg.Aliases == nil {
		cfg.Aliases = make(map[string]string)
	}
	if cfg.MainBrain == "" {
		cfg.MainBrain = backend.MainBrain
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywordRules()
	}
	for i := range cfg.Keywords {
		if cfg.Keywords[i].Confidence == 0 {
			cfg.Keywords[i].Confidence = 0.8
		}
	}
	if cfg.ScorerHints == nil {
		cfg.ScorerHints = DefaultScorerHints()
	}
	if len(cfg.Fillers) == 0 {
		cfg.Fillers = DefaultFillers()
	}
	if cfg.ClassifierConfidenceThreshold == 0 {
		cfg.ClassifierConfidenceThreshold = 0.7
	}
	if cfg.EnableLLMTieBreaker == nil {
		enabled := false
		cfg.EnableLLMTieBreaker = &enabled
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 2
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 1000
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 8000
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.BaseBackoffMs {
		cfg.Retry.MaxBackoffMs = cfg.Retry.BaseBackoffMs
	}
	if cfg.Retry.TimeoutSeconds == 0 {
		cfg.Retry.TimeoutSeconds = 30
	}
	if cfg.Fallback.Chains == nil {
		cfg.Fallback.Chains = DefaultFallbackChains()
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Hardware.RefreshSeconds == 0 {
		cfg.Hardware.RefreshSeconds = 60
	}
	if cfg.Hardware.CPULimitPercent == 0 {
		cfg.Hardware.CPULimitPercent = 90
	}
	if cfg.Hardware.MemoryFreeFloorPercent == 0 {
		cfg.Hardware.MemoryFreeFloorPercent = 10
	}
	if cfg.Hardware.ProbeAddress == "" {
		cfg.Hardware.ProbeAddress = "1.1.1.1:443"
	}
	if cfg.Hardware.ProbeTimeoutMs == 0 {
		cfg.Hardware.ProbeTimeoutMs = 1500
	}
	if cfg.Hardware.DiskPath == "" {
		cfg.Hardware.DiskPath = "/"
	}
	if cfg.Endpoints.CompatBaseURL == "" {
		cfg.Endpoints.CompatBaseURL = "https://integrate.api.nvidia.com/v1"
	}
	if cfg.Endpoints.OllamaURL == "" {
		cfg.Endpoints.OllamaURL = "http://127.0.0.1:11434"
	}
	if cfg.Jobs == nil {
		cfg.Jobs = DefaultJobs()
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	CompatAPIKey    string
	LogLevel        string
	HistoryPath     string
	HistoryTurns    int
	RoutingConfig   *RoutingConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.switchyard/config.yaml.
// API keys are never read from disk; they come from the environment only.
type FileConfig struct {
	LogLevel     string `yaml:"log_level"`
	HistoryPath  string `yaml:"history_path"`
	HistoryTurns int    `yaml:"history_turns"`
}

// Load reads ~/.switchyard/config.yaml, the environment, and the first
// routing file found in the config directory. Without a routing file the
// built-in defaults apply.
func Load() (*Config, error) {
	return load("")
}

// LoadWithRoutingFile is Load with an explicit routing file.
func LoadWithRoutingFile(routingPath string) (*Config, error) {
	if routingPath == "" {
		return nil, fmt.Errorf("routing file path is empty")
	}
	return load(routingPath)
}

func load(routingPath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	cfg := newConfig(configDir)

	if routingPath == "" {
		routingPath = findRoutingFile(configDir)
	}
	if routingPath == "" {
		cfg.RoutingConfig = DefaultRoutingConfig()
		return cfg, nil
	}

	routing, err := LoadRoutingConfig(routingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing config from %s: %w", routingPath, err)
	}
	cfg.RoutingConfig = routing
	return cfg, nil
}

func newConfig(configDir string) *Config {
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		CompatAPIKey:    os.Getenv("NVIDIA_API_KEY"),
		LogLevel:        getEnvOrDefault("SWITCHYARD_LOG_LEVEL", fileConfig.LogLevel),
		HistoryPath:     getEnvOrDefault("SWITCHYARD_HISTORY", fileConfig.HistoryPath),
		HistoryTurns:    fileConfig.HistoryTurns,
		ConfigDir:       configDir,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(configDir, "history.db")
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	return cfg
}

// HasProvider returns true if the credentials for the given provider are configured.
// Local providers need no credentials.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "compat":
		return c.CompatAPIKey != ""
	case "ollama", "loopback", "mock":
		return true
	default:
		return false
	}
}

// findRoutingFile prefers routing.yaml and falls back to routing.toml.
func findRoutingFile(configDir string) string {
	for _, name := range []string{"routing.yaml", "routing.yml", "routing.toml"} {
		path := filepath.Join(configDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("SWITCHYARD_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".switchyard")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

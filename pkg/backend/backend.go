package backend

import "fmt"

// Well-known backend identities the router refers to directly.
const (
	MainBrain          = "main-brain"
	LoopbackClassifier = "loopback-classifier"
	OfflineLocal       = "offline-local"
)

// Transport describes how a backend is reached.
type Transport string

const (
	TransportHostedAPI Transport = "hosted_api"
	TransportLocal     Transport = "local_process"
	TransportLoopback  Transport = "loopback_classifier"
)

// Valid reports whether t is a known transport.
func (t Transport) Valid() bool {
	switch t {
	case TransportHostedAPI, TransportLocal, TransportLoopback:
		return true
	}
	return false
}

// Level is a coarse resource requirement.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Categories used to order fallback chains.
const (
	CategoryCoding         = "coding"
	CategoryDocumentation  = "documentation"
	CategoryProblemSolving = "problem-solving"
	CategoryInformation    = "information"
	CategoryContent        = "content"
	CategoryTechnical      = "technical"
	CategoryIdeas          = "ideas"
	CategoryEthics         = "ethics"
	CategoryVisual         = "visual"
	CategoryReasoning      = "reasoning"
	CategoryGeneral        = "general"
	CategorySystem         = "system"
)

// Descriptor is the static description of one addressable backend.
// Descriptors are loaded once at startup and never mutated.
type Descriptor struct {
	ID                string    `yaml:"id" toml:"id"`
	RemoteModel       string    `yaml:"remote_model" toml:"remote_model"`
	Provider          string    `yaml:"provider" toml:"provider"`
	Transport         Transport `yaml:"transport" toml:"transport"`
	Category          string    `yaml:"category" toml:"category"`
	MemoryRequirement Level     `yaml:"memory" toml:"memory"`
	CPURequirement    Level     `yaml:"cpu" toml:"cpu"`
	OfflineCapable    bool      `yaml:"offline_capable,omitempty" toml:"offline_capable"`
	Priority          int       `yaml:"priority" toml:"priority"`
	Voice             string    `yaml:"voice,omitempty" toml:"voice"`
	SystemPrompt      string    `yaml:"system_prompt,omitempty" toml:"system_prompt"`
}

// IsSpecialist reports whether the backend is a hosted, category-tuned model.
func (d Descriptor) IsSpecialist() bool {
	return d.Transport == TransportHostedAPI && d.ID != MainBrain
}

func (d Descriptor) validate() error {
	if d.ID == "" {
		return fmt.Errorf("backend id is required")
	}
	if !d.Transport.Valid() {
		return fmt.Errorf("backend %q: unknown transport %q", d.ID, d.Transport)
	}
	if d.Provider == "" {
		return fmt.Errorf("backend %q: provider is required", d.ID)
	}
	return nil
}

package backend

// Provider names understood by the adapter layer.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderCompat    = "compat"
	ProviderOllama    = "ollama"
	ProviderLoopback  = "loopback"
)

// DefaultDescriptors returns the built-in backend table.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID: MainBrain, RemoteModel: "claude-sonnet-4-20250514", Provider: ProviderAnthropic,
			Transport: TransportHostedAPI, Category: CategoryGeneral,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 1, Voice: "companion",
		},
		{
			ID: LoopbackClassifier, RemoteModel: "loopback-v1", Provider: ProviderLoopback,
			Transport: TransportLoopback, Category: CategorySystem,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, OfflineCapable: true, Priority: 0, Voice: "terse",
		},
		{
			ID: OfflineLocal, RemoteModel: "llama3.2:3b", Provider: ProviderOllama,
			Transport: TransportLocal, Category: CategoryGeneral,
			MemoryRequirement: LevelHigh, CPURequirement: LevelHigh, OfflineCapable: true, Priority: 2, Voice: "companion",
		},
		{
			ID: "code-specialist", RemoteModel: "qwen/qwen2.5-coder-32b-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryCoding,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 10, Voice: "engineer",
		},
		{
			ID: "debug-specialist", RemoteModel: "deepseek-ai/deepseek-r1", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryCoding,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 11, Voice: "engineer",
		},
		{
			ID: "script-specialist", RemoteModel: "ibm/granite-34b-code-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryCoding,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 12, Voice: "engineer",
		},
		{
			ID: "docs-specialist", RemoteModel: "gpt-4.1-mini", Provider: ProviderOpenAI,
			Transport: TransportHostedAPI, Category: CategoryDocumentation,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 20, Voice: "librarian",
		},
		{
			ID: "troubleshoot-specialist", RemoteModel: "nvidia/llama-3.1-nemotron-70b-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryProblemSolving,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 30, Voice: "mechanic",
		},
		{
			ID: "research-specialist", RemoteModel: "gemini-2.0-flash", Provider: ProviderGoogle,
			Transport: TransportHostedAPI, Category: CategoryInformation,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 40, Voice: "librarian",
		},
		{
			ID: "summary-specialist", RemoteModel: "meta/llama-3.3-70b-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryInformation,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 41, Voice: "librarian",
		},
		{
			ID: "content-specialist", RemoteModel: "mistralai/mistral-large-2-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryContent,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 50, Voice: "storyteller",
		},
		{
			ID: "translate-specialist", RemoteModel: "google/gemma-2-27b-it", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryContent,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 51, Voice: "storyteller",
		},
		{
			ID: "technical-specialist", RemoteModel: "microsoft/phi-3-medium-128k-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryTechnical,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 60, Voice: "engineer",
		},
		{
			ID: "brainstorm-specialist", RemoteModel: "writer/palmyra-creative-122b", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryIdeas,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 70, Voice: "storyteller",
		},
		{
			ID: "ethics-specialist", RemoteModel: "claude-opus-4-20250514", Provider: ProviderAnthropic,
			Transport: TransportHostedAPI, Category: CategoryEthics,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 80, Voice: "philosopher",
		},
		{
			ID: "visual-specialist", RemoteModel: "meta/llama-3.2-90b-vision-instruct", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryVisual,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 90, Voice: "artist",
		},
		{
			ID: "reasoning-specialist", RemoteModel: "qwen/qwq-32b", Provider: ProviderCompat,
			Transport: TransportHostedAPI, Category: CategoryReasoning,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 100, Voice: "philosopher",
		},
		{
			ID: "math-specialist", RemoteModel: "gpt-4.1", Provider: ProviderOpenAI,
			Transport: TransportHostedAPI, Category: CategoryReasoning,
			MemoryRequirement: LevelLow, CPURequirement: LevelLow, Priority: 101, Voice: "philosopher",
		},
	}
}

// DefaultAliases returns the built-in user-facing names for backends.
func DefaultAliases() map[string]string {
	return map[string]string{
		"brain":         MainBrain,
		"main":          MainBrain,
		"general":       MainBrain,
		"local":         OfflineLocal,
		"offline":       OfflineLocal,
		"loopback":      LoopbackClassifier,
		"classifier":    LoopbackClassifier,
		"code":          "code-specialist",
		"coder":         "code-specialist",
		"debug":         "debug-specialist",
		"debugger":      "debug-specialist",
		"script":        "script-specialist",
		"shell":         "script-specialist",
		"docs":          "docs-specialist",
		"documentation": "docs-specialist",
		"troubleshoot":  "troubleshoot-specialist",
		"fix":           "troubleshoot-specialist",
		"research":      "research-specialist",
		"summary":       "summary-specialist",
		"summarize":     "summary-specialist",
		"content":       "content-specialist",
		"writer":        "content-specialist",
		"translate":     "translate-specialist",
		"technical":     "technical-specialist",
		"tech":          "technical-specialist",
		"brainstorm":    "brainstorm-specialist",
		"ideas":         "brainstorm-specialist",
		"ethics":        "ethics-specialist",
		"visual":        "visual-specialist",
		"vision":        "visual-specialist",
		"reasoning":     "reasoning-specialist",
		"reason":        "reasoning-specialist",
		"math":          "math-specialist",
	}
}

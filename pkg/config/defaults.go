package config

import "github.com/zen-systems/switchyard/pkg/backend"

// DefaultKeywordRules returns the ordered keyword table. Order is priority:
// coding > documentation > problem-solving > information > content >
// technical > ideas > ethics > visual > reasoning.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Category: backend.CategoryCoding,
			Keywords: []string{"code", "coding", "program", "programming", "function", "implement", "refactor", "algorithm", "compile"},
			Backend:  "code-specialist",
		},
		{
			Category: backend.CategoryCoding,
			Keywords: []string{"debug", "debugging", "bug", "stack trace", "exception", "segfault"},
			Backend:  "debug-specialist",
		},
		{
			Category: backend.CategoryCoding,
			Keywords: []string{"script", "bash", "shell", "powershell", "cron job"},
			Backend:  "script-specialist",
		},
		{
			Category: backend.CategoryDocumentation,
			Keywords: []string{"docs", "documentation", "readme", "docstring", "api reference", "document"},
			Backend:  "docs-specialist",
		},
		{
			Category: backend.CategoryProblemSolving,
			Keywords: []string{"troubleshoot", "troubleshooting", "fix", "broken", "not working", "error"},
			Backend:  "troubleshoot-specialist",
		},
		{
			Category: backend.CategoryInformation,
			Keywords: []string{"research", "explain", "what is", "who is", "history of", "compare"},
			Backend:  "research-specialist",
		},
		{
			Category: backend.CategoryInformation,
			Keywords: []string{"summarize", "summary", "tldr", "key points"},
			Backend:  "summary-specialist",
		},
		{
			Category: backend.CategoryContent,
			Keywords: []string{"write", "essay", "blog", "email", "story", "poem", "article"},
			Backend:  "content-specialist",
		},
		{
			Category: backend.CategoryContent,
			Keywords: []string{"translate", "translation"},
			Backend:  "translate-specialist",
		},
		{
			Category: backend.CategoryTechnical,
			Keywords: []string{"architecture", "system design", "network", "kubernetes", "database", "infrastructure"},
			Backend:  "technical-specialist",
		},
		{
			Category: backend.CategoryIdeas,
			Keywords: []string{"brainstorm", "brainstorming", "ideas", "idea", "suggest"},
			Backend:  "brainstorm-specialist",
		},
		{
			Category: backend.CategoryEthics,
			Keywords: []string{"ethics", "ethical", "moral", "morally", "fairness"},
			Backend:  "ethics-specialist",
		},
		{
			Category: backend.CategoryVisual,
			Keywords: []string{"visual", "image", "diagram", "picture", "chart", "logo"},
			Backend:  "visual-specialist",
		},
		{
			Category: backend.CategoryReasoning,
			Keywords: []string{"reasoning", "logic", "puzzle", "riddle", "step by step"},
			Backend:  "reasoning-specialist",
		},
		{
			Category: backend.CategoryReasoning,
			Keywords: []string{"math", "calculate", "equation", "integral", "derivative", "probability", "proof"},
			Backend:  "math-specialist",
		},
	}
}

// DefaultScorerHints returns word-start hints used by the fallback scorer when
// no whole-word keyword matched.
func DefaultScorerHints() map[string][]string {
	return map[string][]string{
		"code-specialist":         {"golang", "python", "javascript", "typescript", "rust", "java", "variable", "compil", "regex"},
		"debug-specialist":        {"crash", "panic", "traceback", "stacktrace", "null pointer", "debugg"},
		"script-specialist":       {"automat", "one-liner", "makefile", "crontab"},
		"docs-specialist":         {"comment", "manual", "guide", "changelog"},
		"troubleshoot-specialist": {"fail", "stuck", "wrong", "won't", "doesn't work", "slow"},
		"research-specialist":     {"why do", "how does", "histor", "fact"},
		"summary-specialist":      {"shorten", "condense", "recap"},
		"content-specialist":      {"draft", "tweet", "caption", "letter", "rewrite"},
		"translate-specialist":    {"spanish", "french", "german", "japanese", "in english"},
		"technical-specialist":    {"server", "deploy", "docker", "latency", "scal"},
		"brainstorm-specialist":   {"startup", "name for", "invent", "imagine"},
		"ethics-specialist":       {"should i", "right thing", "fair"},
		"visual-specialist":       {"color", "colour", "layout", "photo", "drawing"},
		"reasoning-specialist":    {"deduce", "infer", "therefore", "paradox"},
		"math-specialist":         {"percent", "formula", "solve", "statistic", "matrix", "sum of"},
	}
}

// DefaultFillers returns leading words and greetings stripped before matching.
func DefaultFillers() []string {
	return []string{
		"hey", "hi", "hello", "yo", "um", "uh", "hmm", "so", "ok", "okay", "please",
		"could you", "can you", "would you", "will you",
		"could you please", "can you please", "would you please",
		"hey there", "i was wondering if", "i wonder if",
	}
}

// DefaultFallbackChains returns category-adjacent backends tried after a
// failure, before the main brain and the remaining specialists.
func DefaultFallbackChains() map[string][]string {
	return map[string][]string{
		backend.CategoryCoding:         {"code-specialist", "debug-specialist", "script-specialist", "technical-specialist"},
		backend.CategoryDocumentation:  {"docs-specialist", "summary-specialist", "content-specialist"},
		backend.CategoryProblemSolving: {"troubleshoot-specialist", "debug-specialist", "technical-specialist"},
		backend.CategoryInformation:    {"research-specialist", "summary-specialist", "docs-specialist"},
		backend.CategoryContent:        {"content-specialist", "translate-specialist", "brainstorm-specialist"},
		backend.CategoryTechnical:      {"technical-specialist", "code-specialist", "troubleshoot-specialist"},
		backend.CategoryIdeas:          {"brainstorm-specialist", "content-specialist"},
		backend.CategoryEthics:         {"ethics-specialist", "reasoning-specialist"},
		backend.CategoryVisual:         {"visual-specialist", "content-specialist"},
		backend.CategoryReasoning:      {"reasoning-specialist", "math-specialist"},
	}
}

// DefaultJobs returns the built-in background job schedule.
func DefaultJobs() []JobConfig {
	return []JobConfig{
		{Name: "hardware-refresh", Schedule: "@every 1m"},
		{Name: "usage-report", Schedule: "@every 15m"},
	}
}

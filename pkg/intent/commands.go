package intent

import (
	"regexp"
	"strings"
)

// commandPattern maps a directive pattern to a command name. When name is
// empty the first capture group is the name and any later groups are args.
type commandPattern struct {
	name string
	re   *regexp.Regexp
}

var commandPatterns = []commandPattern{
	{name: "help", re: regexp.MustCompile(`^(?:help|\?|commands)$`)},
	{name: "status", re: regexp.MustCompile(`^(?:status|stats|health)$`)},
	{name: "exit", re: regexp.MustCompile(`^(?:exit|quit|bye|goodbye)$`)},
	{name: "clear", re: regexp.MustCompile(`^(?:clear|cls|reset)$`)},
	{name: "memory", re: regexp.MustCompile(`^memory(?:\s+(\S+))?$`)},
	{re: regexp.MustCompile(`^(backends|models|usage|hardware|goals|history|sync|version|config)$`)},
	{re: regexp.MustCompile(`^(show|list|clear|reset|sync|export)\s+(history|memory|goals|usage|cache|backends|models|issues|notes)$`)},
}

// matchCommand returns the command name and args for a cleaned query.
func matchCommand(cleaned string) (string, []string, bool) {
	text := strings.TrimRight(strings.ToLower(cleaned), ".! ")
	if text == "" {
		text = strings.ToLower(cleaned)
	}

	for _, p := range commandPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := p.name
		groups := m[1:]
		if name == "" {
			name, groups = groups[0], groups[1:]
		}
		var args []string
		for _, g := range groups {
			if g != "" {
				args = append(args, g)
			}
		}
		return name, args, true
	}
	return "", nil, false
}

// CommandNames lists the directive names the classifier can emit.
func CommandNames() []string {
	return []string{
		"help", "status", "exit", "clear", "memory",
		"backends", "models", "usage", "hardware", "goals", "history", "sync", "version", "config",
		"show", "list", "reset", "export",
	}
}

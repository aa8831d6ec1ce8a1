package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CommandHandler answers one administrative directive locally.
type CommandHandler func(ctx context.Context, args []string) (string, error)

// LoopbackAdapter answers directives in-process and gives a short canned
// reply to anything else. It never touches the network.
type LoopbackAdapter struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewLoopbackAdapter creates an adapter with no handlers.
func NewLoopbackAdapter() *LoopbackAdapter {
	return &LoopbackAdapter{handlers: make(map[string]CommandHandler)}
}

// Name returns the adapter identifier.
func (a *LoopbackAdapter) Name() string {
	return "loopback"
}

// Handle registers fn for a command name, replacing any earlier handler.
func (a *LoopbackAdapter) Handle(name string, fn CommandHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[strings.ToLower(name)] = fn
}

// Commands lists the registered command names.
func (a *LoopbackAdapter) Commands() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.handlers))
	for name := range a.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate runs the command handler for req.Command, or returns a
// lightweight reply for free text.
func (a *LoopbackAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Command == "" {
		return &Response{
			Content: "I'm running in lightweight local mode and can't reach a full model right now. " +
				"Try again shortly, or type 'help' for local commands.",
			Model: "loopback",
		}, nil
	}

	a.mu.RLock()
	fn, ok := a.handlers[strings.ToLower(req.Command)]
	a.mu.RUnlock()
	if !ok {
		return &Response{
			Content: fmt.Sprintf("Command %q is not available here. Type 'help' for the list.", req.Command),
			Model:   "loopback",
		}, nil
	}

	out, err := fn(ctx, req.Args)
	if err != nil {
		return nil, &AdapterError{
			Provider:  a.Name(),
			Permanent: true,
			Err:       fmt.Errorf("command %s: %w", req.Command, err),
		}
	}
	return &Response{Content: out, Model: "loopback"}, nil
}

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/zen-systems/switchyard/pkg/adapter"
)

// Version is reported by the version command. It is set at build time.
var Version = "dev"

const recentHistory = 10

type command struct {
	name    string
	summary string
	handler adapter.CommandHandler
}

// RegisterCommands installs the local command handlers on lb.
func (o *Orchestrator) RegisterCommands(lb *adapter.LoopbackAdapter) {
	for _, c := range o.commands() {
		lb.Handle(c.name, c.handler)
	}
}

func (o *Orchestrator) commands() []command {
	cmds := []command{
		{"status", "hardware, usage and cache at a glance", o.cmdStatus},
		{"usage", "per-backend call and token counts", o.cmdUsage},
		{"hardware", "current host snapshot", o.cmdHardware},
		{"backends", "registered backends", o.cmdBackends},
		{"models", "alias of backends", o.cmdBackends},
		{"history", "recent interactions", o.cmdHistory},
		{"memory", "what the assistant remembers", o.cmdMemory},
		{"clear", "forget history and cached routes (clear cache|history)", o.cmdClear},
		{"reset", "alias of clear", o.cmdClear},
		{"show", "show history|usage|backends|cache", o.cmdShow},
		{"list", "alias of show", o.cmdShow},
		{"export", "export history as JSON", o.cmdExport},
		{"config", "routing configuration summary", o.cmdConfig},
		{"version", "build version", o.cmdVersion},
		{"exit", "end the session", o.cmdExit},
		{"goals", "goal tracking", o.notConfigured("goal tracking")},
		{"sync", "sync external integrations", o.notConfigured("sync")},
	}
	help := command{"help", "this list", nil}
	help.handler = func(context.Context, []string) (string, error) {
		return renderHelp(append([]command{help}, cmds...)), nil
	}
	return append([]command{help}, cmds...)
}

func renderHelp(cmds []command) string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s\t%s\n", c.name, c.summary)
	}
	w.Flush()
	sb.WriteString("\nAsk a specific backend with: ask <backend> <question>")
	return sb.String()
}

func (o *Orchestrator) cmdStatus(ctx context.Context, _ []string) (string, error) {
	hw, err := o.cmdHardware(ctx, nil)
	if err != nil {
		return "", err
	}
	total := o.Usage.Totals()
	return fmt.Sprintf("%s\nUsage: %d calls, %d failures, ~%d tokens\nRouting cache: %d entries",
		hw, total.Calls, total.Failures, total.Tokens, o.Router.Cache().Len()), nil
}

func (o *Orchestrator) cmdUsage(context.Context, []string) (string, error) {
	stats := o.Usage.Stats()
	ids := o.Usage.Active()
	if len(ids) == 0 {
		return "No backend has been used yet.", nil
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tCALLS\tFAILURES\tROUTED\tTOKENS")
	for _, id := range ids {
		s := stats[id]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", id, s.Calls, s.Failures, s.Routed, s.Tokens)
	}
	w.Flush()
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (o *Orchestrator) cmdHardware(ctx context.Context, _ []string) (string, error) {
	status, err := o.Hardware.Status(ctx)
	if err != nil {
		return "Hardware status unavailable; assuming an idle, online host.", nil
	}
	mode := "online"
	if !status.Online {
		mode = "offline"
	}
	runtime := "unreachable"
	if status.LocalRuntimeReachable {
		runtime = "reachable"
	}
	return fmt.Sprintf("Host: %s, CPU %.0f%%, memory free %.0f%%, disk used %.0f%%, local runtime %s",
		mode, status.CPUPercent, status.MemoryFreePercent, status.DiskPercent, runtime), nil
}

func (o *Orchestrator) cmdBackends(context.Context, []string) (string, error) {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tCATEGORY\tTRANSPORT\tALIASES")
	for _, d := range o.Registry.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Category, d.Transport, strings.Join(o.Registry.AliasesFor(d.ID), ", "))
	}
	w.Flush()
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (o *Orchestrator) cmdHistory(ctx context.Context, _ []string) (string, error) {
	if o.history == nil {
		return "History is not enabled.", nil
	}
	recent, err := o.history.Recent(ctx, recentHistory)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "No history yet.", nil
	}
	var sb strings.Builder
	for _, in := range recent {
		fmt.Fprintf(&sb, "%s  [%s] %s\n", in.CreatedAt.Local().Format("Jan 2 15:04"), in.BackendID, in.Query)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (o *Orchestrator) cmdMemory(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && (args[0] == "clear" || args[0] == "reset") {
		return o.cmdClear(ctx, []string{"history"})
	}
	if o.history == nil {
		return "Memory is not enabled.", nil
	}
	block, err := o.history.Context(ctx, "")
	if err != nil {
		return "", err
	}
	if block == "" {
		return "Nothing remembered yet.", nil
	}
	return "Recent context:\n" + block, nil
}

func (o *Orchestrator) cmdClear(ctx context.Context, args []string) (string, error) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	var parts []string
	if target == "" || target == "cache" {
		n := o.Router.Cache().Purge()
		parts = append(parts, fmt.Sprintf("%d cached routes", n))
	}
	if (target == "" || target == "history" || target == "memory") && o.history != nil {
		n, err := o.history.Clear(ctx)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%d history entries", n))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Nothing to clear for %q.", target), nil
	}
	return "Cleared " + strings.Join(parts, " and ") + ".", nil
}

func (o *Orchestrator) cmdShow(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "Show what? Try: show history, show usage, show backends, show cache.", nil
	}
	switch args[0] {
	case "history", "memory":
		return o.cmdHistory(ctx, nil)
	case "usage":
		return o.cmdUsage(ctx, nil)
	case "backends", "models":
		return o.cmdBackends(ctx, nil)
	case "cache":
		return fmt.Sprintf("Routing cache: %d entries", o.Router.Cache().Len()), nil
	default:
		return o.notConfigured(args[0])(ctx, nil)
	}
}

func (o *Orchestrator) cmdExport(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] == "usage" {
		return marshal(o.Usage.Stats())
	}
	if o.history == nil {
		return "History is not enabled.", nil
	}
	recent, err := o.history.Recent(ctx, recentHistory)
	if err != nil {
		return "", err
	}
	return marshal(recent)
}

func (o *Orchestrator) cmdConfig(context.Context, []string) (string, error) {
	cfg := o.Routing
	chains := make([]string, 0, len(cfg.Fallback.Chains))
	for category := range cfg.Fallback.Chains {
		chains = append(chains, category)
	}
	sort.Strings(chains)
	return fmt.Sprintf(
		"Main brain: %s\nKeyword rules: %d\nClassifier threshold: %.2f\nAttempts per backend: %d, timeout %s\nRouting cache TTL: %s\nFallback: %t (chains for %s)",
		cfg.MainBrain, len(cfg.Keywords), cfg.ClassifierConfidenceThreshold,
		cfg.Retry.MaxAttempts, cfg.AttemptTimeout(), cfg.CacheTTL(),
		cfg.FallbackEnabled(), strings.Join(chains, ", "),
	), nil
}

func (o *Orchestrator) cmdVersion(context.Context, []string) (string, error) {
	return "switchyard " + Version, nil
}

func (o *Orchestrator) cmdExit(context.Context, []string) (string, error) {
	return "Goodbye.", nil
}

func (o *Orchestrator) notConfigured(what string) adapter.CommandHandler {
	return func(context.Context, []string) (string, error) {
		return fmt.Sprintf("No %s integration is configured.", what), nil
	}
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

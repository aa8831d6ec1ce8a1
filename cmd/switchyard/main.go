package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/orchestrator"
	"github.com/zen-systems/switchyard/pkg/usage"
)

var (
	configFile  string
	logLevel    string
	mockFlag    bool
	offlineFlag bool
	jsonFlag    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "switchyard",
		Short: "Personal assistant that routes each query to the right model",
		Long: `Switchyard classifies a query, routes it to the best backend for the
	job given current hardware and connectivity, and falls back across other
	backends when one fails.`,
		SilenceUsage: true,
		Version:      orchestrator.Version,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to routing config file (yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "answer every hosted backend with the mock adapter")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "pretend the host has no connectivity")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "print machine-readable output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(hardwareCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var backendFlag string
	var contextFlag string
	var statsFlag bool
	var historyFlag bool

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer one query",
		Long: `Classifies and routes the query, invokes the chosen backend and falls
	back to others on failure.

	Use --backend to send the query to a specific backend or alias.
	Use --context to send extra context along with the query.
	Use --stats to print routing and usage details after the answer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			rt, err := newRuntime(ctx, runtimeOptions{history: historyFlag, context: contextFlag})
			if err != nil {
				return err
			}
			defer rt.Close()

			if backendFlag != "" {
				if _, ok := rt.orch.Registry.Resolve(backendFlag); !ok {
					return fmt.Errorf("unknown backend %q", backendFlag)
				}
				query = "ask " + backendFlag + " " + query
			}

			res, err := rt.orch.Process(ctx, query)
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Content)
			if statsFlag {
				printStats(cmd.ErrOrStderr(), res)
				printUsage(cmd.ErrOrStderr(), rt.orch.Usage)
			}
			if !res.Success() {
				return fmt.Errorf("no backend answered")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backendFlag, "backend", "", "backend id or alias to ask directly")
	cmd.Flags().StringVar(&contextFlag, "context", "", "context block to send with the query")
	cmd.Flags().BoolVar(&statsFlag, "stats", false, "print routing and usage details")
	cmd.Flags().BoolVar(&historyFlag, "history", false, "use and record conversation history")

	return cmd
}

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [query]",
		Short: "Show the routing decision for a query without invoking anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			decision, cls := rt.orch.Router.Route(ctx, strings.Join(args, " "))
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"classification": cls,
					"decision":       decision,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "BACKEND\t%s\n", decision.BackendID)
			fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", decision.Confidence)
			fmt.Fprintf(w, "SOURCE\t%s\n", decision.Source)
			fmt.Fprintf(w, "INTENT\t%s\n", decision.Intent)
			fmt.Fprintf(w, "CPU CONSTRAINED\t%t\n", decision.Hardware.CPUConstrained)
			fmt.Fprintf(w, "MEMORY CONSTRAINED\t%t\n", decision.Hardware.MemoryConstrained)
			fmt.Fprintf(w, "OFFLINE\t%t\n", decision.Hardware.OfflineMode)
			for _, reason := range decision.Reasons {
				fmt.Fprintf(w, "REASON\t%s\n", reason)
			}
			return w.Flush()
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show how a query is classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			cls := rt.orch.Classifier.Classify(strings.Join(args, " "))
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), cls)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "TYPE\t%s\n", cls.Type)
			fmt.Fprintf(w, "INTENT\t%s\n", cls.Intent)
			if cls.Command != "" {
				fmt.Fprintf(w, "COMMAND\t%s %s\n", cls.Command, strings.Join(cls.Args, " "))
			}
			if cls.BackendID != "" {
				fmt.Fprintf(w, "BACKEND\t%s\n", cls.BackendID)
			}
			if cls.Keyword != "" {
				fmt.Fprintf(w, "KEYWORD\t%s\n", cls.Keyword)
			}
			fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", cls.Confidence)
			fmt.Fprintf(w, "CLEANED\t%s\n", cls.Cleaned)
			return w.Flush()
		},
	}
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "backends",
		Aliases: []string{"models"},
		Short:   "List registered backends, their aliases and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := cfg.RoutingConfig.Registry()
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), reg.All())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tPROVIDER\tMODEL\tTRANSPORT\tPRIORITY\tALIASES\tSTATUS")
			for _, d := range reg.All() {
				status := "no key"
				if mockFlag || cfg.HasProvider(d.Provider) {
					status = "ready"
				}
				model := d.RemoteModel
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					d.ID, d.Provider, model, d.Transport, d.Priority,
					formatList(reg.AliasesFor(d.ID)), status)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "MAIN BRAIN\t%s\n", cfg.RoutingConfig.MainBrain)
			return w.Flush()
		},
	}
}

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Show keyword routing rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), cfg.RoutingConfig.Keywords)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tCATEGORY\tBACKEND\tCONFIDENCE\tKEYWORDS")
			for i, rule := range cfg.RoutingConfig.Keywords {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\n",
					i+1, rule.Category, rule.Backend, rule.Confidence, formatList(rule.Keywords))
			}
			return w.Flush()
		},
	}
}

func hardwareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hardware",
		Short: "Show the current host reading and constraint flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			status, err := rt.hardware.Refresh(ctx)
			if err != nil {
				rt.log.Warn().Err(err).Msg("hardware reading incomplete")
			}
			hw := rt.cfg.RoutingConfig.Hardware
			snap := status.Snapshot(hardware.Thresholds{
				CPULimitPercent:        hw.CPULimitPercent,
				MemoryFreeFloorPercent: hw.MemoryFreeFloorPercent,
			})

			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), map[string]any{"status": status, "snapshot": snap})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "CPU\t%.1f%%\tlimit %.0f%%\n", status.CPUPercent, hw.CPULimitPercent)
			fmt.Fprintf(w, "MEMORY FREE\t%.1f%%\tfloor %.0f%%\n", status.MemoryFreePercent, hw.MemoryFreeFloorPercent)
			fmt.Fprintf(w, "DISK USED\t%.1f%%\t\n", status.DiskPercent)
			fmt.Fprintf(w, "ONLINE\t%t\t\n", status.Online)
			fmt.Fprintf(w, "LOCAL RUNTIME\t%t\t\n", status.LocalRuntimeReachable)
			fmt.Fprintf(w, "CONSTRAINED\tcpu=%t memory=%t offline=%t\t\n",
				snap.CPUConstrained, snap.MemoryConstrained, snap.OfflineMode)
			return w.Flush()
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session with conversation history",
		Long: `Reads queries from stdin, one per line, until "exit" or end of input.
	Recent turns are remembered and sent as context with later queries.
	Background jobs run for the length of the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, runtimeOptions{history: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := startJobs(ctx, rt)
			if err != nil {
				return err
			}
			defer sched.Stop()

			out := cmd.OutOrStdout()
			in := bufio.NewScanner(cmd.InOrStdin())
			in.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			fmt.Fprintln(out, `Type "help" for commands, "exit" to leave.`)
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					break
				}
				line := strings.TrimSpace(in.Text())
				if line == "" {
					continue
				}

				res, err := rt.orch.Process(ctx, line)
				if err != nil {
					break
				}
				fmt.Fprintln(out, res.Content)
				fmt.Fprintln(out)
				if res.Exit {
					break
				}
			}
			if err := in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			printUsage(out, rt.orch.Usage)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer queries from stdin and run background jobs until interrupted",
		Long: `Reads queries from stdin, one per line, and writes one JSON result per
	line to stdout. Meanwhile the hardware reading is kept fresh and backend
	usage is logged on the schedules listed under jobs in the routing config.
	Keeps running after stdin closes until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, runtimeOptions{history: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := startJobs(ctx, rt)
			if err != nil {
				return err
			}
			defer sched.Stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "switchyard serving %d jobs, press Ctrl-C to stop\n", len(sched.Names()))
			if err := serveQueries(ctx, rt.orch, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}

// serveQueries answers each non-empty input line with a JSON line. It stops
// at end of input, on an exit command, or when ctx is done.
func serveQueries(ctx context.Context, orch *orchestrator.Orchestrator, r io.Reader, w io.Writer) error {
	in := bufio.NewScanner(r)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for ctx.Err() == nil && in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		res, err := orch.Process(ctx, line)
		if err != nil {
			return err
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if res.Exit {
			break
		}
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, res *orchestrator.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "ROUTED\t%s (%s, %.2f)\n", res.Decision.BackendID, res.Decision.Source, res.Decision.Confidence)
	fmt.Fprintf(tw, "ANSWERED\t%s\n", res.Invocation.BackendID)
	fmt.Fprintf(tw, "ATTEMPTS\t%d\n", res.Invocation.TotalAttempts)
	fmt.Fprintf(tw, "FALLBACK\t%t\n", res.Invocation.FallbackUsed())
	fmt.Fprintf(tw, "TRACE\t%s\n", strings.Join(res.Trace, " > "))
	fmt.Fprintf(tw, "TOOK\t%s\n", res.Duration.Round(time.Millisecond))
	tw.Flush()
}

func printUsage(w io.Writer, counter *usage.Counter) {
	ids := counter.Active()
	if len(ids) == 0 {
		return
	}
	stats := counter.Stats()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "BACKEND\tCALLS\tFAILURES\tTOKENS")
	for _, id := range ids {
		s := stats[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", id, s.Calls, s.Failures, s.Tokens)
	}
	tw.Flush()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

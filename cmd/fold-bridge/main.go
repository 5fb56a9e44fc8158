// ABOUTME: CLI entry point for fold-bridge, the multi-backend tool dispatcher.
// ABOUTME: Loads backend manifests, brings up sessions, and routes tool calls.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/fold-bridge/internal/adapter"
	"github.com/2389/fold-bridge/internal/bridge"
	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
	"github.com/2389/fold-bridge/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "backends":
		err = runBackends(ctx)
	case "tools":
		err = runTools(ctx, args)
	case "call":
		err = runCall(ctx, args)
	case "probe":
		err = runProbe(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: fold-bridge <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  backends                      List backends and their status")
	fmt.Println("  tools <backend>               List tools a backend advertises")
	fmt.Println("  call <backend> <tool> [json]  Call a tool (args as a JSON object)")
	fmt.Println("  probe <backend>               Check a backend's reachability")
	fmt.Println("  history [flags]               Show recent tool calls")
	fmt.Println("  version                       Print version")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  FOLD_BRIDGE_CONFIG   Config file path (default: ~/.config/fold-bridge/bridge.toml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  fold-bridge backends")
	fmt.Println("  fold-bridge call filesystem list_directory '{\"path\": \"/projects\"}'")
	fmt.Println("  fold-bridge history --backend filesystem --limit 20")
	fmt.Println()
}

func setupLogger(cfg LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// setup loads config and manifests and builds an initialized bridge.
// The returned cleanup closes the bridge and the call log.
func setup(ctx context.Context) (*bridge.Bridge, *manifest.Set, func(), error) {
	cfg, err := loadConfig(configPath())
	if err != nil {
		return nil, nil, nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	registry := adapter.NewRegistry()
	loader := manifest.NewLoader(registry, logger)
	set, err := loader.Load(cfg.Bridge.Manifests)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading manifests from %s: %w", cfg.Bridge.Manifests, err)
	}

	opts := bridge.Options{
		Adapter: adapter.Options{
			CallTimeout:  cfg.CallTimeout(),
			ProbeTimeout: cfg.ProbeTimeout(),
			Logger:       logger,
		},
		Logger: logger,
	}

	var callLog *store.CallLog
	if cfg.Bridge.Database != "" {
		callLog, err = store.NewCallLog(cfg.Bridge.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening call log: %w", err)
		}
		opts.Recorder = callLog
	}

	b := bridge.New(set, registry, opts)
	if _, err := b.Initialize(ctx); err != nil {
		if callLog != nil {
			callLog.Close()
		}
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = b.Shutdown()
		if callLog != nil {
			_ = callLog.Close()
		}
	}
	return b, set, cleanup, nil
}

func runBackends(ctx context.Context) error {
	b, set, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tTOOLS\tDESCRIPTION")
	for _, info := range b.Backends() {
		status := green.Sprint("ready")
		if !info.Ready {
			status = red.Sprint("unavailable")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", info.ID, info.Kind, status, info.ToolCount, info.Description)
	}
	for _, desc := range b.Descriptors() {
		if !desc.Enabled {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", desc.ID, desc.Kind, gray.Sprint("disabled"), len(desc.Tools), desc.Description)
		}
	}
	w.Flush()

	if failed := set.Failed(); len(failed) > 0 {
		fmt.Println()
		red.Println("Failed to load:")
		for id, loadErr := range failed {
			fmt.Printf("  %s: %v\n", id, loadErr)
		}
	}
	return nil
}

func runTools(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fold-bridge tools <backend>")
	}

	b, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tools, err := b.ListTools(args[0])
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		color.Yellow("No tools available (backend may be unreachable)")
		return nil
	}

	cyan := color.New(color.FgCyan)
	for _, tool := range tools {
		cyan.Println(tool.Name)
		fmt.Printf("  %s\n", tool.Description)
		for name, desc := range tool.Parameters {
			fmt.Printf("    %s: %s\n", name, desc)
		}
	}
	return nil
}

func runCall(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: fold-bridge call <backend> <tool> [json-args]")
	}

	var toolArgs map[string]any
	if len(args) > 2 {
		if err := json.Unmarshal([]byte(args[2]), &toolArgs); err != nil {
			return fmt.Errorf("parsing tool arguments: %w", err)
		}
	}

	b, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := b.Call(ctx, args[0], args[1], toolArgs)
	if err != nil {
		return err
	}

	printResult(res)
	if !res.OK {
		os.Exit(1)
	}
	return nil
}

func printResult(res *result.Result) {
	if !res.OK {
		color.Red("FAILED: %s", res.Reason)
		if res.Raw != "" {
			fmt.Println(res.Raw)
		}
		return
	}
	for _, block := range res.Content {
		if block.Kind == result.KindText {
			fmt.Println(block.Text)
		} else {
			fmt.Println(string(block.Raw))
		}
	}
}

func runProbe(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fold-bridge probe <backend>")
	}

	b, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	backends, err := b.ListBackends()
	if err != nil {
		return err
	}
	if info, ok := backends[args[0]]; ok {
		color.Green("%s is reachable (%d tools)", info.ID, info.ToolCount)
		return nil
	}

	// Distinguish unknown from unreachable.
	for _, info := range b.Backends() {
		if info.ID == args[0] {
			return fmt.Errorf("%s is unreachable", args[0])
		}
	}
	return fmt.Errorf("%w: %s", bridge.ErrUnknownBackend, args[0])
}

func runHistory(ctx context.Context, args []string) error {
	cfg, err := loadConfig(configPath())
	if err != nil {
		return err
	}
	if cfg.Bridge.Database == "" {
		return fmt.Errorf("bridge.database is not configured; call history is disabled")
	}

	filter, err := parseHistoryFlags(args)
	if err != nil {
		return err
	}

	callLog, err := store.NewCallLog(cfg.Bridge.Database)
	if err != nil {
		return fmt.Errorf("opening call log: %w", err)
	}
	defer callLog.Close()

	records, err := callLog.List(ctx, filter)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tBACKEND\tTOOL\tOUTCOME\tDURATION")
	for _, rec := range records {
		outcome := green.Sprint("ok")
		if !rec.OK {
			outcome = red.Sprint(rec.Reason)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.At.Local().Format(time.DateTime),
			rec.BackendID,
			rec.Tool,
			outcome,
			rec.Duration,
		)
	}
	w.Flush()
	return nil
}

// parseHistoryFlags parses --backend, --tool, and --limit.
func parseHistoryFlags(args []string) (store.Filter, error) {
	var filter store.Filter
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--backend":
			if i+1 >= len(args) {
				return filter, fmt.Errorf("--backend requires a value")
			}
			i++
			filter.BackendID = args[i]
		case "--tool":
			if i+1 >= len(args) {
				return filter, fmt.Errorf("--tool requires a value")
			}
			i++
			filter.Tool = args[i]
		case "--limit":
			if i+1 >= len(args) {
				return filter, fmt.Errorf("--limit requires a value")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return filter, fmt.Errorf("parsing --limit: %w", err)
			}
			filter.Limit = n
		default:
			return filter, fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	return filter, nil
}

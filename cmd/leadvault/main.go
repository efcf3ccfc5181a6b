package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hpungsan/leadvault/internal/capture"
	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/mcp"
	"github.com/hpungsan/leadvault/internal/storage"
	"github.com/hpungsan/leadvault/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "capture": true, "star": true, "remove": true, "clear": true,
	"list": true, "show": true, "link": true, "metrics": true,
	"export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  _                _                 _ _
 | | ___  __ _  __| |_   ____ _ _   _| | |_
 | |/ _ \/ _' |/ _' \ \ / / _' | | | | | __|
 | |  __/ (_| | (_| |\ V / (_| | |_| | | |_
 |_|\___|\__,_|\__,_| \_/ \__,_|\__,_|_|\__|

  Local lead tracker

  Usage: leadvault <command> [options]
         leadvault --help

  MCP server mode requires piped input.`)
}

// newLogger returns the stderr logger. LEADVAULT_LOG_LEVEL=debug enables request logs.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LEADVAULT_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before opening storage
	if isHelpOrVersion(args) {
		if err := newCLIApp(nil).Run(args); err != nil {
			reportError(os.Stderr, err)
			return 1
		}
		return 0
	}

	logger := newLogger()
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	home, err := config.HomeDir()
	if err != nil {
		reportError(os.Stderr, fmt.Errorf("could not determine home directory: %w", err))
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = home
	}
	cfg, err := config.LoadWithRepo(home, wd)
	if err != nil {
		reportError(os.Stderr, fmt.Errorf("failed to load config: %w", err))
		return 1
	}
	cfg = config.ApplyEnv(cfg)

	backend, err := storage.Open(cfg, home)
	if err != nil {
		reportError(os.Stderr, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err))
		return 1
	}
	defer backend.Close()

	st := store.New(backend, store.Options{
		Config: cfg,
		Home:   home,
		Titler: capture.NewFetcher(time.Duration(cfg.CaptureTimeoutSeconds) * time.Second),
	})
	if err := st.Load(context.Background()); err != nil {
		reportError(os.Stderr, fmt.Errorf("failed to load leads: %w", err))
		return 1
	}

	env := &appEnv{store: st, home: home, logger: logger}

	// CLI mode: known subcommand
	if isCLIMode(args) {
		if err := newCLIApp(env).Run(args); err != nil {
			reportError(os.Stderr, err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) >= 2 && isTerminal() {
		reportError(os.Stderr, fmt.Errorf("unknown command %q", args[1]))
		fmt.Fprintf(os.Stderr, "Run 'leadvault --help' for usage.\n")
		return 1
	}

	// MCP server mode (default)
	if err := mcp.Run(st, Version, logger); err != nil {
		reportError(os.Stderr, err)
		return 1
	}
	return 0
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattjoyce/interactions-gw/internal/config"
	"github.com/mattjoyce/interactions-gw/internal/doctor"
	"github.com/mattjoyce/interactions-gw/internal/interaction"
	"github.com/mattjoyce/interactions-gw/internal/lock"
	"github.com/mattjoyce/interactions-gw/internal/log"
	"github.com/mattjoyce/interactions-gw/internal/registrar"
	"github.com/mattjoyce/interactions-gw/internal/webhook"
	"gopkg.in/yaml.v3"
)

const version = "0.3.0"

func main() {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	// --- NOUNS ---
	case "config":
		return runConfigNoun(rest)
	case "commands":
		return runCommandsNoun(rest)

	// --- ROOT ---
	case "start":
		if hasHelpFlag(rest) {
			printStartHelp()
			return 0
		}
		return runStart(rest)
	case "doctor":
		return runConfigCheck(rest)
	case "version":
		fmt.Printf("interactions-gw version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`interactions-gw - Signed interaction webhook for slash commands

Usage:
  interactions-gw <command> [flags]
  interactions-gw <noun> <action> [flags]

Commands:
  start                 Register commands (best effort) and serve interactions

Config Commands:
  config check          Validate configuration and the command catalog
  config lock           Write .checksums for the config directory
  config show           Print the resolved configuration (secrets redacted)

Slash Commands:
  commands list         Show the built-in commands and their replies
  commands register     Register the built-in commands once and exit

General:
  version               Show version information
  help                  Show this help message

Configuration is read from --config, $INTERACTIONS_CONFIG, ./config.yaml,
~/.config/interactions-gw/config.yaml or /etc/interactions-gw/config.yaml, then
overridden by environment variables (a .env file in the working directory is loaded).
`)
}

// --- NOUN DISPATCHERS ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runCommandsNoun(args []string) int {
	if len(args) < 1 {
		printCommandsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printCommandsNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		return runCommandsList(actionArgs)
	case "register":
		if hasHelpFlag(actionArgs) {
			printCommandsRegisterHelp()
			return 0
		}
		return runCommandsRegister(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown commands action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: interactions-gw config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printCommandsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: interactions-gw commands <action> [flags]")
	fmt.Fprintln(w, "Actions: list, register")
}

func printStartHelp() {
	fmt.Println("Usage: interactions-gw start [--config PATH]")
	fmt.Println("Serve interactions in the foreground. Commands are registered in the background when enabled.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: interactions-gw config check [--config PATH] [--format human|json] [--strict] [--json]")
	fmt.Println("Validate configuration, integrity and the command catalog.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: interactions-gw config lock [--config PATH] [-v|--verbose] [--dry-run]")
	fmt.Println("Authorize the current config file by writing its BLAKE3 hash to .checksums.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: interactions-gw config show [--config PATH] [--json]")
	fmt.Println("Print the merged configuration with the bot token redacted.")
}

func printCommandsRegisterHelp() {
	fmt.Println("Usage: interactions-gw commands register [--config PATH] [--json]")
	fmt.Println("Register every built-in command with the platform and report the outcome.")
}

// resolveConfigPath returns the explicit path or the first discovered one.
// Empty means environment-only configuration.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return config.Discover()
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path := resolveConfigPath(*configPath)
	if path != "" && *configPath == "" {
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("interactions-gw starting", "version", version, "config", cfg.SourceFile, "service", cfg.Service.Name)

	if cfg.Service.PIDFile != "" {
		pidLock, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	commands := interaction.Commands()
	replies, err := interaction.NewReplyTable(commands, interaction.FallbackCommand)
	if err != nil {
		logger.Error("invalid command catalog", "error", err)
		return 1
	}
	responder := interaction.NewResponder(replies, log.WithComponent("interaction"))

	webhookConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("failed to configure interaction server", "error", err)
		return 1
	}
	server := webhook.New(webhookConfig, responder, log.WithComponent("webhook"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if cfg.Registration.Enabled {
		reg := registrar.New(registrar.FromGlobalConfig(cfg), commands, nil, log.WithComponent("registrar"))
		reg.RegisterInBackground(ctx)
	} else {
		logger.Info("command registration disabled")
	}

	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	logger.Info("interactions-gw running (press Ctrl+C to stop)", "commands", replies.Len())

	code := waitForExit(logger, sigCh, cancel, done, webhook.ShutdownTimeout+time.Second)
	logger.Info("interactions-gw stopped")
	return code
}

// waitForExit blocks until a signal arrives or the server stops on its own. After a signal
// it cancels the server and waits for in-flight interactions to drain, bounded by grace.
func waitForExit(logger *slog.Logger, sigCh <-chan os.Signal, cancel context.CancelFunc, done <-chan error, grace time.Duration) int {
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-done:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("interaction server failed", "error", err)
			return 1
		}
		return 0
	}

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("interaction server shutdown failed", "error", err)
			return 1
		}
		return 0
	case <-time.After(grace):
		logger.Warn("interaction server did not drain in time", "timeout", grace)
		return 1
	}
}

func runConfigCheck(args []string) int {
	var configPath string
	var strict, jsonOut bool
	var format string

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if jsonOut {
		format = "json"
	}

	cfg, err := config.LoadUnchecked(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, interaction.Commands()).Validate()

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	isVerbose := verbose || verboseShort

	path := resolveConfigPath(configPath)
	if path == "" {
		fmt.Fprintln(os.Stderr, "No config file found; nothing to lock")
		return 1
	}

	file, err := config.ResolveConfigFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config: %v\n", err)
		return 1
	}

	report, err := config.LockConfigFile(file, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	if isVerbose {
		fmt.Printf("  HASH %s: %s\n", filepath.Base(report.ConfigFile), report.Digest)
	}

	if dryRun {
		fmt.Printf("Dry run completed (no files written): %s\n", report.ManifestPath)
	} else {
		fmt.Printf("Successfully locked configuration: %s\n", report.ManifestPath)
	}
	return 0
}

func runConfigShow(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadUnchecked(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	shown := *cfg
	if shown.Discord.BotToken != "" {
		shown.Discord.BotToken = "<redacted>"
	}

	out, err := yaml.Marshal(shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "YAML format error: %v\n", err)
		return 1
	}

	if !jsonOut {
		fmt.Print(string(out))
		return 0
	}

	// Re-read the YAML so JSON keys and duration strings match the config file.
	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "YAML format error: %v\n", err)
		return 1
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
		return 1
	}
	fmt.Println(string(js))
	return 0
}

func runCommandsList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	commands := interaction.Commands()
	if *jsonOut {
		out, err := json.MarshalIndent(commands, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	for _, c := range commands {
		marker := ""
		if c.Name == interaction.FallbackCommand {
			marker = " (fallback)"
		}
		fmt.Printf("/%s%s\n  %s\n  -> %s\n", c.Name, marker, c.Description, c.Reply)
	}
	return 0
}

func runCommandsRegister(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Discord.ApplicationID == "" || cfg.Discord.BotToken == "" {
		fmt.Fprintln(os.Stderr, "discord.application_id and discord.bot_token are required to register commands")
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	reg := registrar.New(registrar.FromGlobalConfig(cfg), interaction.Commands(), nil, log.WithComponent("registrar"))

	report, regErr := reg.Register(context.Background())

	if jsonOut {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	} else {
		for _, res := range report.Results {
			if res.OK() {
				fmt.Printf("  OK   /%s (%d)\n", res.Command, res.StatusCode)
				continue
			}
			fmt.Printf("  FAIL /%s: %s\n", res.Command, res.Error)
		}
		fmt.Printf("Registered %d of %d command(s)\n", report.Registered, len(report.Results))
	}

	if regErr != nil {
		return 1
	}
	return 0
}

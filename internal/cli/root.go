// Package cli implements the agentdeck command tree.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/backend"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/output"
)

// errFailure marks a typed backend failure whose detail was already printed
// as part of the result. Execute maps it to exit code 1 without re-printing.
var errFailure = errors.New("backend reported failure")

var (
	flagBackend string
	flagJSON    bool
	flagDebug   bool
)

// NewRootCmd builds the agentdeck command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentdeck",
		Short: "One typed interface over several coding-assistant CLIs",
		Long: `agentdeck puts one capability contract in front of independently built
coding-assistant CLIs: run a message, export conversation history, list
stored sessions, list installed personas.

Backends are integrated as black boxes. agentdeck only captures, types, and
exposes whatever the backend emitted; it makes no promise about the answers.

The active backend comes from config (backend = "...") or AGENTDECK_BACKEND,
and can be overridden per call with --backend.

Examples:
  agentdeck run "explain this panic"            # run via the active backend
  agentdeck --backend codex sessions            # list codex sessions here
  agentdeck export ses_abc123 --json            # machine-readable transcript
  agentdeck agents                              # installed personas
  agentdeck watch ses_abc123                    # follow a session's store`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if flagDebug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend to use (gemini, opencode, crush, codex)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON with the stable wire projection")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newAgentsCmd())
	cmd.AddCommand(newBackendsCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFailure) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// activeAdapter loads config and builds the adapter selected by flags/config.
func activeAdapter() (backend.Adapter, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
	adapter, err := backend.Active(cfg)
	if err != nil {
		return nil, nil, err
	}
	return adapter, cfg, nil
}

// workDir resolves the caller's working directory.
func workDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}

func formatter() *output.Formatter {
	return output.NewFormatter(os.Stdout, flagJSON)
}

package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/backend"
	"github.com/agentdeck/agentdeck/internal/result"
)

func newRunCmd() *cobra.Command {
	var (
		sessionID string
		persona   string
		model     string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <message>",
		Short: "Run a message through the active backend",
		Long: `Run one message through the active backend and print its response.

The backend runs in the current directory. Interrupt (Ctrl-C) cancels
cooperatively: the backend process is terminated and a failure result is
reported; partial output is discarded. --timeout adds a caller-driven
deadline on top of that - there is no backend-internal timeout.

Examples:
  agentdeck run "add a unit test for the parser"
  agentdeck run --session ses_abc123 "continue where we left off"
  agentdeck run --agent reviewer --model gpt-5 "review this diff"
  agentdeck run --timeout 5m "migrate the schema" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, err := activeAdapter()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res := adapter.Run(ctx, args[0], backend.RunOptions{
				SessionID: sessionID,
				Persona:   persona,
				Model:     model,
				WorkDir:   workDir(),
			})
			return printRun(res)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	cmd.Flags().StringVar(&persona, "agent", "", "persona/agent to run as")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the run after this duration (0 = no deadline)")

	return cmd
}

func printRun(res result.RunResult) error {
	f := formatter()
	if f.JSONMode() {
		if err := f.JSON(res); err != nil {
			return err
		}
		if !res.Success {
			return errFailure
		}
		return nil
	}

	if !res.Success {
		f.Error(res.Error)
		return errFailure
	}
	for _, p := range res.Parts {
		switch p.Kind {
		case result.PartThinking:
			f.Dim(f.Wrap(p.Text))
		case result.PartTool:
			f.Tool(p.Text)
		default:
			f.Textln("%s", f.Wrap(p.Text))
		}
	}
	if res.SessionID != "" {
		f.Line()
		f.Dim("session: " + res.SessionID)
	}
	return nil
}

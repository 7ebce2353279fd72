package cli

import (
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/output"
	"github.com/agentdeck/agentdeck/internal/result"
)

func newExportCmd() *cobra.Command {
	var noFilter bool

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session's conversation history",
		Long: `Export the persisted history of one session as typed messages.

History comes from the backend's own store (export subcommand, database, or
roll-out files, depending on the backend). Tool-invocation turns render the
thinking text together with the tool name and arguments.

Examples:
  agentdeck export ses_abc123
  agentdeck export ses_abc123 --json
  agentdeck --backend codex export 0193e6f3-... --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, err := activeAdapter()
			if err != nil {
				return err
			}
			dir := workDir()
			if noFilter {
				dir = ""
			}
			res := adapter.Export(args[0], dir)
			return printExport(res)
		},
	}

	cmd.Flags().BoolVar(&noFilter, "all", false, "do not scope the lookup to the current directory")

	return cmd
}

func printExport(res result.ExportResult) error {
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
	printMessages(f, res.Messages)
	return nil
}

// printMessages renders transcript messages; shared by export and watch.
func printMessages(f *output.Formatter, messages []result.HistoryMessage) {
	for _, m := range messages {
		header := string(m.Role)
		if m.TimestampMS != nil {
			header += "  " + result.FormatTimestamp(*m.TimestampMS)
		}
		f.Title(header)
		switch m.ContentKind {
		case result.ContentTool, result.ContentToolUse:
			f.Tool(m.Content)
		default:
			f.Textln("%s", f.Wrap(m.Content))
		}
		f.Line()
	}
}

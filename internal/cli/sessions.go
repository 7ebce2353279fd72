package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/output"
)

func newSessionsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List the active backend's stored sessions",
		Long: `List stored sessions, scoped to the current directory by default.

The scope uses only the workspace path the backend recorded in its own
session metadata. Sessions whose record cannot be read are excluded rather
than shown by default. --all lists every session regardless of workspace.

Examples:
  agentdeck sessions
  agentdeck sessions --all
  agentdeck --backend crush sessions --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, err := activeAdapter()
			if err != nil {
				return err
			}
			dir := workDir()
			if all {
				dir = ""
			}
			res := adapter.ListSessions(dir)

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
			if len(res.Sessions) == 0 {
				f.Dim("no sessions")
				return nil
			}
			table := output.NewTable(os.Stdout, "ID", "TITLE", "UPDATED")
			for _, s := range res.Sessions {
				table.AddRow(s.ID, s.Title, s.Updated)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list sessions from every workspace")

	return cmd
}

package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the active backend's installed personas",
		Long: `List the personas/agents installed for the active backend.

What counts as a persona is backend-specific: agent definition files,
configuration profiles, or extensions. The kind column says which.

Examples:
  agentdeck agents
  agentdeck --backend codex agents --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, err := activeAdapter()
			if err != nil {
				return err
			}
			res := adapter.ListAgents()

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
			if len(res.Agents) == 0 {
				f.Dim("no agents installed")
				return nil
			}
			for _, a := range res.Agents {
				f.Title(a.Name + "  (" + a.Kind + ")")
				if len(a.Details) > 0 {
					f.Textln("  %s", strings.Join(a.Details, "\n  "))
				}
				f.Line()
			}
			return nil
		},
	}
	return cmd
}

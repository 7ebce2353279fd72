package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/backend"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/output"
)

func newBackendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List registered backends and their availability",
		Long: `List every registered backend, whether its executable is on PATH, and
whether a session store was found for the current directory.

Examples:
  agentdeck backends
  agentdeck backends --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			type status struct {
				Name      string `json:"name"`
				Active    bool   `json:"active"`
				Installed bool   `json:"installed"`
				Store     string `json:"store,omitempty"`
			}
			var statuses []status
			for _, name := range backend.Names() {
				adapter, err := backend.ForName(name, cfg)
				if err != nil {
					continue
				}
				s := status{Name: name, Active: name == cfg.Backend}
				if _, err := exec.LookPath(adapter.CLIName()); err == nil {
					s.Installed = true
				}
				if loc, ok := adapter.(backend.StoreLocator); ok {
					s.Store = loc.StorePath(workDir())
				}
				statuses = append(statuses, s)
			}

			f := formatter()
			if f.JSONMode() {
				return f.JSON(statuses)
			}
			table := output.NewTable(os.Stdout, "BACKEND", "ACTIVE", "INSTALLED", "STORE")
			for _, s := range statuses {
				table.AddRow(s.Name, mark(s.Active), mark(s.Installed), s.Store)
			}
			table.Render()
			return nil
		},
	}
	return cmd
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

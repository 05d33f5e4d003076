package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the interactive browse command.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the marketplace and install or update a module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				spinner := newSpinner(ctx, "Fetching module list...")
				spinner.Start()
				catalog, err := s.catalog.FetchCatalog(ctx)
				spinner.Stop()
				if err != nil {
					return err
				}

				model := NewModuleListModel(sortedModules(catalog), installedVersions(s))
				final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
				if err != nil {
					return fmt.Errorf("run browser: %w", err)
				}
				sel := final.(ModuleListModel).Selected
				if sel == nil {
					return nil
				}

				id := sel.Module.ID
				switch sel.Action {
				case ActionInstall:
					return runEach(ctx, []string{id}, "Installing", "Installed", s.installer.Install)
				case ActionUpdate:
					return runEach(ctx, []string{id}, "Updating", "Updated", s.installer.Update)
				}
				return nil
			})
		},
	}
}

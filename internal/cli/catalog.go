package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/modmarket/pkg/marketplace"
	"github.com/matzehuels/modmarket/pkg/registry"
)

// withServices opens the service graph for the duration of fn.
func (c *CLI) withServices(ctx context.Context, fn func(*services) error) error {
	s, err := c.openServices(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.Logger.Warn("close backends", "err", err)
		}
	}()
	return fn(s)
}

// installedVersions maps installed module ids to their local version.
func installedVersions(s *services) map[string]string {
	out := make(map[string]string)
	mods, err := s.registry.List()
	if err != nil {
		s.catalog.Logger.Debug("list installed modules", "err", err)
		return out
	}
	for _, m := range mods {
		out[m.ID] = m.Version
	}
	return out
}

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var (
		asJSON  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List modules available on the marketplace",
		Long: `List all modules published on the marketplace.

The module list is cached for the duration configured by the cache/expireTime
setting. Use --refresh to drop the cached copy first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				if refresh {
					if err := s.catalog.Flush(ctx); err != nil {
						return err
					}
				}

				spinner := newSpinner(ctx, "Fetching module list...")
				spinner.Start()
				prog := newProgress(loggerFromContext(ctx))
				catalog, err := s.catalog.FetchCatalog(ctx)
				spinner.Stop()
				if err != nil {
					return err
				}
				prog.done(fmt.Sprintf("Fetched %d modules", len(catalog)))

				mods := sortedModules(catalog)
				if asJSON {
					return writeJSON(os.Stdout, mods)
				}
				if len(mods) == 0 {
					printInfo("The marketplace has no modules")
					return nil
				}
				fmt.Println(moduleTable(mods, installedVersions(s)))
				printNewline()
				printNextStep("Install a module", appName+" install <id>")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the module list as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached module list")

	return cmd
}

// infoCommand creates the info command.
func (c *CLI) infoCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show live marketplace details for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				m, err := s.catalog.FetchModuleInfo(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(os.Stdout, m)
				}
				printModule(m, installedVersions(s)[m.ID])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the module as JSON")

	return cmd
}

func printModule(m *marketplace.Module, installed string) {
	fmt.Println(StyleTitle.Render(m.Name))
	if m.Description != "" {
		printDetail("%s", m.Description)
	}
	printNewline()
	printKeyValue("ID", m.ID)
	printKeyValue("Installed", installed)
	printKeyValue("Latest", m.LatestVersion)
	printKeyValue("Compatible", m.CompatibleVersion())
	if m.LatestCompatibleVersion != nil && m.LatestCompatibleVersion.DownloadURL != "" {
		printKeyValue("Download", m.LatestCompatibleVersion.DownloadURL)
	}
	if m.CompatibleVersion() == "" {
		printNewline()
		printWarning("No release is compatible with this application version")
	}
}

// latestCommand creates the latest command.
func (c *CLI) latestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the newest host application version",
		Long: `Print the newest version of the host application known to the marketplace.

Prints nothing and exits successfully when the marketplace cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				if v := s.catalog.FetchLatestPlatformVersion(ctx); v != "" {
					fmt.Println(v)
				}
				return nil
			})
		},
	}
}

// updatesCommand creates the updates command.
func (c *CLI) updatesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "updates",
		Short: "List installed modules with a newer compatible release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				spinner := newSpinner(ctx, "Checking for updates...")
				spinner.Start()
				pending, err := s.updates.ListAvailableUpdates(ctx)
				spinner.Stop()
				if err != nil {
					return err
				}

				mods := sortedModules(pending)
				if asJSON {
					return writeJSON(os.Stdout, mods)
				}
				if len(mods) == 0 {
					printSuccess("All modules are up to date")
					return nil
				}
				fmt.Println(moduleTable(mods, installedVersions(s)))
				printNewline()
				printNextStep("Update all", appName+" update --all")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print pending updates as JSON")

	return cmd
}

// installedCommand creates the installed command.
func (c *CLI) installedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "List locally installed modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withServices(cmd.Context(), func(s *services) error {
				mods, err := s.registry.List()
				if err != nil {
					return err
				}
				if len(mods) == 0 {
					printInfo("No modules installed in %s", s.registry.Dir())
					return nil
				}
				c.Logger.Debug("registered hooks", "hooks", registry.Hooks())
				for _, m := range mods {
					line := fmt.Sprintf("%-20s %s", m.ID, StyleValue.Render(orNone(m.Version)))
					if s.registry.HasAutostart(m.ID) {
						line += " " + StyleDim.Render("autostart")
					}
					missing, err := s.registry.MissingHooks(m.ID)
					if err != nil {
						return err
					}
					for _, name := range missing {
						line += " " + StyleWarning.Render("unregistered hook "+name)
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

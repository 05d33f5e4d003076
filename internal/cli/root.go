package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/modmarket/pkg/buildinfo"
	"github.com/matzehuels/modmarket/pkg/observability"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The --verbose flag is owned by main, which adjusts the logger level before
// PersistentPreRunE runs. At debug level the install, cache and HTTP
// observability hooks are routed to the logger.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "modmarket installs and updates modules from an online marketplace",
		Long: `modmarket browses a module marketplace, installs the latest release that is
compatible with the host application, and reports modules with pending updates.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.Logger.GetLevel() <= log.DebugLevel {
				hooks := observability.NewLogHooks(c.Logger)
				observability.SetInstallHooks(hooks)
				observability.SetCacheHooks(hooks)
				observability.SetHTTPHooks(hooks)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/modmarket/config.toml)")

	// Marketplace
	root.AddCommand(c.listCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.latestCommand())
	root.AddCommand(c.browseCommand())

	// Local modules
	root.AddCommand(c.installCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.updatesCommand())
	root.AddCommand(c.installedCommand())

	// Operations
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

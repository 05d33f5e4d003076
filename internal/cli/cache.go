package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/modmarket/internal/config"
	"github.com/matzehuels/modmarket/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the module list cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the cached module list",
		Long: `Drop the cached module list so the next lookup goes to the marketplace.

With the file backend every entry in the cache directory is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				if err := s.catalog.Flush(ctx); err != nil {
					return err
				}
				if fc, ok := s.cache.(*cache.FileCache); ok {
					n, err := fc.Clear()
					if err != nil {
						return fmt.Errorf("clear cache dir: %w", err)
					}
					printSuccess("Cleared %d cached entries", n)
					printDetail("Directory: %s", fc.Dir())
					return nil
				}
				printSuccess("Cleared module list (%s backend)", s.cfg.Cache.Backend)
				return nil
			})
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != config.CacheFile {
				return fmt.Errorf("cache backend %q has no directory", cfg.Cache.Backend)
			}
			fmt.Println(cfg.Cache.Dir)
			return nil
		},
	}
}

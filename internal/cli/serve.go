package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/modmarket/internal/api"
)

// serveCommand creates the serve command for the admin HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the marketplace workflow over HTTP",
		Long: `Start the admin HTTP API. Install and update requests are processed one at a
time. The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				addr := s.cfg.API.Listen
				if listen != "" {
					addr = listen
				}
				srv := api.New(s.catalog, s.installer, s.updates, c.Logger)
				return srv.ListenAndServe(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides api.listen)")

	return cmd
}

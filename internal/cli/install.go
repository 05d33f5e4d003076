package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/modmarket/pkg/errors"
)

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install <id>...",
		Short: "Install modules from the marketplace",
		Long: `Install the latest release of each module that is compatible with the host
application. Modules that are already installed are reported and skipped;
use "update" to reinstall them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withServices(ctx, func(s *services) error {
				return runEach(ctx, args, "Installing", "Installed", s.installer.Install)
			})
		},
	}
}

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "update [id]...",
		Short: "Reinstall modules at their latest compatible release",
		Long: `Remove each module folder, install the latest compatible release and run
the module's update hook.

The update is not atomic: if the download fails the module stays removed
until the next successful install.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if all == (len(args) > 0) {
				return errs.New(errs.ErrCodeInvalidInput, "pass module ids or --all")
			}
			return c.withServices(ctx, func(s *services) error {
				ids := args
				if all {
					pending, err := s.updates.ListAvailableUpdates(ctx)
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						printSuccess("All modules are up to date")
						return nil
					}
					ids = ids[:0]
					for _, m := range sortedModules(pending) {
						ids = append(ids, m.ID)
					}
				}
				return runEach(ctx, ids, "Updating", "Updated", s.installer.Update)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "update every module with a pending update")

	return cmd
}

// runEach applies action to every id, reporting each result. It stops at
// context cancellation and returns an error naming the failed modules.
func runEach(ctx context.Context, ids []string, verb, pastTense string, action func(context.Context, string) error) error {
	var failed []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		spinner := newSpinner(ctx, fmt.Sprintf("%s %s...", verb, id))
		spinner.Start()
		prog := newProgress(loggerFromContext(ctx))
		err := action(ctx, id)
		if err != nil {
			spinner.StopWithError("%s: %s", id, errs.UserMessage(err))
			loggerFromContext(ctx).Debug("action failed", "id", id, "err", err)
			failed = append(failed, id)
			continue
		}
		spinner.StopWithSuccess("%s %s", pastTense, id)
		prog.done(fmt.Sprintf("%s %s", pastTense, id))
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d modules failed: %v", len(failed), len(ids), failed)
	}
	return nil
}

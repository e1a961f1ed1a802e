package commands

import (
	"context"
	"fmt"

	"github.com/atlasops/plansync/pkg/iojson"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// SyncCmd implements the plansync sync command.
type SyncCmd struct {
	flags *Flags

	plan   string
	repo   string
	dryRun bool
	quiet  bool
}

// NewSyncCmd creates a new sync command.
func NewSyncCmd(flags *Flags) *SyncCmd {
	return &SyncCmd{flags: flags}
}

// Register adds the sync command to the application.
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Push then pull in one run",
		UsageText: "plansync sync [--plan <path>] [--repo <owner/repo>] [--dry-run] [--quiet]",
		Description: `Runs a full two-way reconciliation: local status is pushed to
GitHub, then issue state is pulled back into the plan.

With --quiet nothing is printed and partial failures exit zero,
which keeps the command safe to run from editor hooks.

Examples:
  plansync sync
  plansync sync --dry-run
  plansync sync --quiet`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "plan",
				Aliases:     []string{"p"},
				Usage:       "path to the plan file (discovered from the working directory if omitted)",
				Destination: &cmd.plan,
			},
			&cli.StringFlag{
				Name:        "repo",
				Aliases:     []string{"r"},
				Usage:       "repository in owner/repo form (overrides detection)",
				Destination: &cmd.repo,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "report planned actions without touching anything",
				Destination: &cmd.dryRun,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "suppress output and exit zero on partial failure",
				Destination: &cmd.quiet,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	opts, err := cmd.flags.resolveOptions(ctx, cmd.plan, cmd.repo, cmd.dryRun)
	if err != nil {
		return err
	}

	result, err := cmd.flags.Service.Sync(ctx, opts)
	if err != nil {
		return err
	}

	if cmd.quiet {
		// Hooks want a silent best-effort run. Failures still land in
		// the log file.
		if result.HasErrors() {
			log.Warn().Int("failed", len(result.Errors)).Msg("sync finished with errors")
		}
		return nil
	}

	if err := cmd.flags.resolveConflicts(ctx, opts, result); err != nil {
		return err
	}

	if err := iojson.WriteLine(c.Root().Writer, result); err != nil {
		return err
	}

	if result.HasErrors() {
		return fmt.Errorf("%d actions failed", len(result.Errors))
	}

	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/atlasops/plansync/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// PushCmd implements the plansync push command.
type PushCmd struct {
	flags *Flags

	plan   string
	repo   string
	dryRun bool
}

// NewPushCmd creates a new push command.
func NewPushCmd(flags *Flags) *PushCmd {
	return &PushCmd{flags: flags}
}

// Register adds the push command to the application.
func (cmd *PushCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "push",
		Usage:     "Push local plan status to GitHub issues",
		UsageText: "plansync push [--plan <path>] [--repo <owner/repo>] [--dry-run]",
		Description: `Creates issues for unsynced plan items and closes issues for
items completed locally. The result is printed as JSON.

Examples:
  plansync push
  plansync push --plan docs/rollout_plan.md
  plansync push --repo octo/rocket --dry-run`,
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
				Usage:       "report planned actions without touching the remote",
				Destination: &cmd.dryRun,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PushCmd) run(ctx context.Context, c *cli.Command) error {
	opts, err := cmd.flags.resolveOptions(ctx, cmd.plan, cmd.repo, cmd.dryRun)
	if err != nil {
		return err
	}

	result, err := cmd.flags.Service.Push(ctx, opts)
	if err != nil {
		return err
	}

	if err := cmd.flags.resolveConflicts(ctx, opts, result); err != nil {
		return err
	}

	if err := iojson.WriteLine(c.Root().Writer, result); err != nil {
		return err
	}

	if result.HasErrors() {
		return fmt.Errorf("%d of %d actions failed", len(result.Errors), len(result.Errors)+result.Created+result.Closed)
	}

	return nil
}

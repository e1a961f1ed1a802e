package commands

import (
	"context"
	"fmt"

	"github.com/atlasops/plansync/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// PullCmd implements the plansync pull command.
type PullCmd struct {
	flags *Flags

	plan   string
	dryRun bool
}

// NewPullCmd creates a new pull command.
func NewPullCmd(flags *Flags) *PullCmd {
	return &PullCmd{flags: flags}
}

// Register adds the pull command to the application.
func (cmd *PullCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "pull",
		Usage:     "Pull issue status from GitHub into the plan",
		UsageText: "plansync pull [--plan <path>] [--dry-run]",
		Description: `Updates local checkboxes from the state of their linked issues,
honoring the configured conflict strategy. The plan must have been
pushed at least once.

Examples:
  plansync pull
  plansync pull --plan docs/rollout_plan.md --dry-run`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "plan",
				Aliases:     []string{"p"},
				Usage:       "path to the plan file (discovered from the working directory if omitted)",
				Destination: &cmd.plan,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "report planned updates without touching the plan",
				Destination: &cmd.dryRun,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PullCmd) run(ctx context.Context, c *cli.Command) error {
	opts, err := cmd.flags.resolveOptions(ctx, cmd.plan, "", cmd.dryRun)
	if err != nil {
		return err
	}

	result, err := cmd.flags.Service.Pull(ctx, opts)
	if err != nil {
		return err
	}

	if err := iojson.WriteLine(c.Root().Writer, result); err != nil {
		return err
	}

	if result.HasErrors() {
		return fmt.Errorf("%d updates failed", len(result.Errors))
	}

	return nil
}

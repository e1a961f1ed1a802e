package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/atlasops/plansync/internal/core/styles"
	"github.com/urfave/cli/v3"
)

// InitCmd implements the plansync init command.
type InitCmd struct {
	flags *Flags

	repo string
}

// NewInitCmd creates a new init command.
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application.
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Verify auth and prepare the repository for syncing",
		UsageText: "plansync init [--repo <owner/repo>]",
		Description: `Checks that gh is authenticated, resolves the target repository
from the git remote (or --repo) and creates the sync labels on it.

Examples:
  plansync init
  plansync init --repo octo/rocket`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "repo",
				Aliases:     []string{"r"},
				Usage:       "repository in owner/repo form (overrides detection)",
				Destination: &cmd.repo,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	repo, err := cmd.flags.Service.Init(ctx, dir, cmd.repo)
	if err != nil {
		return err
	}

	w := c.Root().Writer
	fmt.Fprintln(w, styles.Bullet(styles.Success, "repository "+repo+" is ready"))
	for _, label := range cmd.flags.Config.Labels.All() {
		fmt.Fprintln(w, styles.Bullet(styles.Muted, "label "+label))
	}

	return nil
}

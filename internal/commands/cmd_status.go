package commands

import (
	"context"
	"fmt"

	"github.com/atlasops/plansync/internal/core/styles"
	"github.com/atlasops/plansync/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// StatusCmd implements the plansync status command.
type StatusCmd struct {
	flags *Flags

	plan string
	json bool
}

// NewStatusCmd creates a new status command.
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

// Register adds the status command to the application.
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the plan's sync state without touching the network",
		UsageText: "plansync status [--plan <path>] [--json]",
		Description: `Summarizes item counts and the last sync time from the plan
document alone. No remote calls are made.

Examples:
  plansync status
  plansync status --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "plan",
				Aliases:     []string{"p"},
				Usage:       "path to the plan file (discovered from the working directory if omitted)",
				Destination: &cmd.plan,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the summary as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	opts, err := cmd.flags.resolveOptions(ctx, cmd.plan, "", false)
	if err != nil {
		return err
	}

	summary, err := cmd.flags.Service.Status(ctx, opts.PlanPath)
	if err != nil {
		return err
	}

	if cmd.json {
		return iojson.WriteLine(c.Root().Writer, summary)
	}

	w := c.Root().Writer

	repo := summary.Repo
	if repo == "" {
		repo = styles.Muted.Render("not linked")
	}
	lastSync := styles.Muted.Render("never")
	if summary.LastSync != nil {
		lastSync = summary.LastSync.Local().Format("2006-01-02 15:04")
	}

	fmt.Fprintln(w, styles.Title.Render("Plan sync status"))
	fmt.Fprintln(w, styles.KV("Plan", summary.Plan))
	fmt.Fprintln(w, styles.KV("Repository", repo))
	fmt.Fprintln(w, styles.KV("Items", fmt.Sprintf("%d total, %s pending, %s completed",
		summary.Total,
		styles.Warning.Render(fmt.Sprintf("%d", summary.Pending)),
		styles.Success.Render(fmt.Sprintf("%d", summary.Completed)),
	)))
	fmt.Fprintln(w, styles.KV("Synced", fmt.Sprintf("%d of %d", summary.Synced, summary.Total)))
	fmt.Fprintln(w, styles.KV("Last sync", lastSync))

	return nil
}

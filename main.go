package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/atlasops/plansync/internal/commands"
	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/github"
	"github.com/atlasops/plansync/internal/core/plan"
	"github.com/atlasops/plansync/internal/sync"
	"github.com/atlasops/plansync/pkg/executil"
	"github.com/atlasops/plansync/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "plansync",
		Usage:     "Keep markdown plans and GitHub issues in sync",
		UsageText: "plansync [global options] command [command options]",
		Description: `Plansync links the checkbox items of a markdown plan file to GitHub
issues and reconciles status in both directions.

Run 'plansync init' once per repository to create the sync labels,
then 'plansync sync' whenever the plan or the issues change.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("PLANSYNC_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file",
				Sources:     cli.EnvVars("PLANSYNC_LOG_FILE"),
				Value:       commands.DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PLANSYNC_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			exec := &executil.RealExecutor{}
			client := github.NewCLIClient(exec, cfg.GhPath, cfg.GitPath)

			syncExec := sync.NewExecutor(client, cfg.Retry, cfg.Sync.Concurrency)
			if cfg.Sync.BatchCreate {
				httpClient := &http.Client{Timeout: cfg.Retry.CallTimeout()}
				switch cfg.Sync.BatchTransport {
				case config.BatchTransportREST:
					syncExec = syncExec.WithBatcher(github.NewRESTClient(httpClient, client.AuthToken, ""))
				default:
					syncExec = syncExec.WithBatcher(github.NewGraphQLBatcher(httpClient, client.AuthToken, ""))
				}
			}

			store := plan.NewFileStore()

			flags.Config = cfg
			flags.Store = store
			flags.Remote = client
			flags.Service = sync.NewService(store, client, syncExec, cfg)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewInitCmd(flags).Register(app)
	app = commands.NewPushCmd(flags).Register(app)
	app = commands.NewPullCmd(flags).Register(app)
	app = commands.NewSyncCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

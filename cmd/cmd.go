package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/stupside/plarchive/internal/app"
	"github.com/stupside/plarchive/internal/archiver"
	"github.com/stupside/plarchive/internal/browser"
	"github.com/stupside/plarchive/internal/logging"
	"github.com/stupside/plarchive/internal/prompt"
	"github.com/stupside/plarchive/internal/version"
)

const snapshotDir = ".debug"

// Root returns the root CLI command.
func Root() *cli.Command {
	var (
		configPath string
		outputDir  string
		debug      bool
	)

	return &cli.Command{
		Name:      "plarchive",
		Usage:     "Archive PrairieLearn course questions for offline viewing",
		Version:   version.Version,
		ArgsUsage: "[course-url]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to configuration file",
				Value:       app.DefaultConfigPath,
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "Enable debug logging and browser snapshots",
				Destination: &debug,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Directory the course archive is written under",
				Destination: &outputDir,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := app.Load(configPath)
			if err != nil {
				return ctx, err
			}

			run, err := logging.New(logging.Options{Dir: cfg.Log.Dir, Debug: debug})
			if err != nil {
				return ctx, err
			}
			run.Logger.Debug("logging to file", "path", run.Path)

			cmd.Metadata["config"] = cfg
			cmd.Metadata["log"] = run
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if run, ok := cmd.Metadata["log"].(*logging.Run); ok {
				return run.Close()
			}
			return nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}
			log := loggerFrom(cmd)

			snapshots := ""
			if debug {
				snapshots = snapshotDir
			}

			// The course URL is positional; it defaults to site.course_url.
			a := archiver.New(cfg, archiver.Options{
				CourseURL: cmd.Args().First(),
				Root:      outputDir,
				Open: func(ctx context.Context) (archiver.Browser, error) {
					s, err := browser.Open(ctx, cfg.Browser, log, snapshots)
					if err != nil {
						return nil, err
					}
					return s, nil
				},
				Prompter: prompt.New(os.Stdin, os.Stdout),
			}, log)

			if err := a.Run(ctx); err != nil {
				return loggedError{err}
			}
			return nil
		},
		Commands: []*cli.Command{
			rewriteCommand(),
			discoverCommand(),
			{
				Name:  "info",
				Usage: "Print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					loggerFrom(cmd).Info("build",
						"version", version.Version,
						"commit", version.Commit,
						"build_time", version.BuildTime,
					)
					return nil
				},
			},
		},
		Metadata: map[string]any{},
	}
}

// loggerFrom returns the run logger set up by the root command.
func loggerFrom(cmd *cli.Command) *slog.Logger {
	if run, ok := cmd.Root().Metadata["log"].(*logging.Run); ok {
		return run.Logger
	}
	return slog.Default()
}

// loggedError marks an error the command already reported to the run log.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

// Logged reports whether err was already written to the run log.
func Logged(err error) bool {
	var l loggedError
	return errors.As(err, &l)
}

func requireArg(cmd *cli.Command, name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: missing <%s> argument", cmd.Name, name)
	}
	return nil
}

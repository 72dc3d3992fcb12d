package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/stupside/plarchive/internal/app"
	"github.com/stupside/plarchive/internal/archive"
)

// rewriteCommand returns the "rewrite" CLI subcommand.
func rewriteCommand() *cli.Command {
	var dir string

	return &cli.Command{
		Name:      "rewrite",
		Usage:     "Make site-relative links in an existing archive absolute",
		ArgsUsage: "<archive-dir>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "archive-dir",
				Destination: &dir,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArg(cmd, "archive-dir", dir); err != nil {
				return err
			}
			if info, err := os.Stat(dir); err != nil {
				return fmt.Errorf("opening archive: %w", err)
			} else if !info.IsDir() {
				return fmt.Errorf("opening archive: %s is not a directory", dir)
			}

			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			rewriter, err := archive.NewRewriter(cfg.Site.Origin, cfg.Site.RewritePrefixes, loggerFrom(cmd))
			if err != nil {
				return err
			}
			stats, err := rewriter.RewriteTree(ctx, archive.At(dir).Dir())
			if err != nil {
				return fmt.Errorf("rewrite failed: %w", err)
			}
			if stats.Failed > 0 {
				return fmt.Errorf("rewrite failed for %d of %d files", stats.Failed, stats.Files)
			}
			return nil
		},
	}
}

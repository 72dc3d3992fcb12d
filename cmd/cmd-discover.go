package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/urfave/cli/v3"

	"github.com/stupside/plarchive/internal/app"
	"github.com/stupside/plarchive/internal/archiver"
	"github.com/stupside/plarchive/internal/selection"
)

// discoverCommand returns the "discover" CLI subcommand.
func discoverCommand() *cli.Command {
	var listingPath string

	return &cli.Command{
		Name:      "discover",
		Usage:     "List the module types of a saved course listing page",
		ArgsUsage: "<listing.html>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "listing",
				Destination: &listingPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArg(cmd, "listing.html", listingPath); err != nil {
				return err
			}

			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(listingPath)
			if err != nil {
				return fmt.Errorf("opening listing: %w", err)
			}
			defer f.Close()

			doc, err := goquery.NewDocumentFromReader(f)
			if err != nil {
				return fmt.Errorf("parsing listing: %w", err)
			}

			catalog, err := archiver.Discover(doc, cfg)
			if err != nil {
				return err
			}

			log := loggerFrom(cmd)
			log.InfoContext(ctx, "course", "name", archiver.CourseName(doc, cfg.Site.CourseURL))
			archiver.LogCatalog(ctx, log, catalog)

			selection.Render(os.Stdout, catalog.Available(), catalog.Excluded())
			return nil
		},
	}
}

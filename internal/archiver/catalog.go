package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/plarchive/internal/app"
	"github.com/stupside/plarchive/internal/discovery"
	"github.com/stupside/plarchive/internal/fsname"
)

// FallbackCourseName names the archive when the course cannot be identified.
const FallbackCourseName = "PrairieLearn_Archive"

var (
	courseCode     = regexp.MustCompile(`([A-Z]+\s*\d+)`)
	courseInstance = regexp.MustCompile(`/course_instance/(\d+)`)
)

// CourseName identifies the course from the navbar label ("CS 233" becomes
// CS_233), then from the course instance id in courseURL.
func CourseName(doc *goquery.Document, courseURL string) string {
	label := strings.TrimSpace(doc.Find("li.navbar-text").First().Text())
	if m := courseCode.FindStringSubmatch(label); m != nil {
		return fsname.Sanitize(strings.Join(strings.Fields(m[1]), "_"))
	}
	if m := courseInstance.FindStringSubmatch(courseURL); m != nil {
		return "Course_" + m[1]
	}
	return FallbackCourseName
}

// Discover runs module discovery over a listing with the configured bounds.
func Discover(doc *goquery.Document, cfg *app.Config) (*discovery.Catalog, error) {
	origin, err := url.Parse(cfg.Site.Origin)
	if err != nil {
		return nil, fmt.Errorf("parsing site origin: %w", err)
	}
	cat, err := discovery.Discover(doc, discovery.Options{
		Origin:        origin,
		WeekMin:       cfg.Crawl.WeekMin,
		WeekMax:       cfg.Crawl.WeekMax,
		NameMaxLength: cfg.Crawl.NameMaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering modules: %w", err)
	}
	return cat, nil
}

// LogCatalog logs one line per module type and the overall counts.
func LogCatalog(ctx context.Context, log *slog.Logger, cat *discovery.Catalog) {
	for _, mt := range cat.Types() {
		log.InfoContext(ctx, "module type",
			"type", mt.Key, "items", mt.Count, "group_items", mt.GroupCount, "group", mt.Group, "sample", mt.SampleTitle)
	}
	log.InfoContext(ctx, "discovery finished",
		"types", len(cat.Types()), "assessments", len(cat.Candidates()), "group_assessments", len(cat.Grouped()))
}

// Package archiver runs a complete archive session: login, discovery,
// selection, crawl and the final path rewrite.
package archiver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/plarchive/internal/app"
	"github.com/stupside/plarchive/internal/archive"
	"github.com/stupside/plarchive/internal/assets"
	"github.com/stupside/plarchive/internal/capture"
	"github.com/stupside/plarchive/internal/crawl"
	"github.com/stupside/plarchive/internal/prompt"
	"github.com/stupside/plarchive/internal/selection"
)

// ErrNoModules is returned when the listing holds no selectable module type.
var ErrNoModules = errors.New("no non-group modules found")

const listingPathKey = "/assessments"

// Browser is the session an archive run drives.
type Browser interface {
	crawl.Page
	ClickSignIn(ctx context.Context, providers []string) (bool, error)
	Close()
}

// Opener starts the browser session.
type Opener func(ctx context.Context) (Browser, error)

// Options configure an Archiver.
type Options struct {
	// CourseURL overrides site.course_url.
	CourseURL string
	// Root overrides archive.root.
	Root     string
	Open     Opener
	Prompter *prompt.Prompter
}

// Archiver archives one course.
type Archiver struct {
	cfg       *app.Config
	courseURL string
	root      string
	open      Opener
	prompt    *prompt.Prompter
	log       *slog.Logger
}

// New returns an Archiver. Empty option fields fall back to cfg.
func New(cfg *app.Config, opts Options, log *slog.Logger) *Archiver {
	return &Archiver{
		cfg:       cfg,
		courseURL: cmp.Or(opts.CourseURL, cfg.Site.CourseURL),
		root:      cmp.Or(opts.Root, cfg.Archive.Root),
		open:      opts.Open,
		prompt:    opts.Prompter,
		log:       log,
	}
}

// Run performs the archive. The browser is closed on every path. A lost
// session still runs the path rewrite over what was saved, then returns
// crawl.ErrSessionLost.
func (a *Archiver) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.log.ErrorContext(ctx, "archive run failed", "error", err)
		}
	}()

	origin, err := url.Parse(a.cfg.Site.Origin)
	if err != nil {
		return fmt.Errorf("parsing site origin: %w", err)
	}

	b, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	defer func() {
		b.Close()
		a.log.Info("browser closed")
	}()

	if err := a.login(ctx, b); err != nil {
		return err
	}

	html, err := b.HTML(ctx)
	if err != nil {
		return fmt.Errorf("reading course listing: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parsing course listing: %w", err)
	}

	course := CourseName(doc, a.courseURL)
	layout := archive.NewLayout(a.root, course)
	if err := os.MkdirAll(layout.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	a.log.InfoContext(ctx, "course identified", "course", course, "dir", layout.Dir())

	if err := os.WriteFile(layout.DebugListingPath(), []byte(html), 0o644); err != nil {
		a.log.WarnContext(ctx, "could not save listing page", "error", err)
	}

	catalog, err := Discover(doc, a.cfg)
	if err != nil {
		return err
	}
	LogCatalog(ctx, a.log, catalog)

	available := catalog.Available()
	if len(available) == 0 {
		return ErrNoModules
	}

	set, err := selection.Ask(ctx, a.prompt, available, catalog.Excluded())
	if err != nil {
		return err
	}
	selected := catalog.Select(set.Has)
	a.log.InfoContext(ctx, "modules selected", "types", strings.Join(set.Keys(), ","), "assessments", len(selected))

	localizer := assets.NewLocalizer(assets.NewDownloader(a.cfg.Download, a.log), origin, a.cfg.Site.AssetMarkers, a.log)
	driver := crawl.New(b, capture.New(b, localizer, a.log), crawl.Options{
		Layout: layout,
		Validator: archive.Validator{
			MinSize:      a.cfg.Archive.MinHTMLSize,
			ProbeBytes:   a.cfg.Archive.HTMLProbeBytes,
			Host:         origin.Hostname(),
			AssetMarkers: a.cfg.Site.AssetMarkers,
		},
		LoginMarkers:     a.cfg.Site.LoginMarkers,
		PanelLabels:      a.cfg.Crawl.PanelLabels,
		NameMaxLength:    a.cfg.Crawl.NameMaxLength,
		AssessmentSettle: a.cfg.Crawl.AssessmentSettle,
		QuestionSettle:   a.cfg.Crawl.QuestionSettle,
		PanelSettle:      a.cfg.Crawl.PanelSettle,
	}, a.log)

	_, crawlErr := driver.Run(ctx, selected)
	if crawlErr != nil && !errors.Is(crawlErr, crawl.ErrSessionLost) {
		return fmt.Errorf("crawling: %w", crawlErr)
	}

	rewriter, err := archive.NewRewriter(a.cfg.Site.Origin, a.cfg.Site.RewritePrefixes, a.log)
	if err != nil {
		return err
	}
	if _, err := rewriter.RewriteTree(ctx, layout.Dir()); err != nil {
		return fmt.Errorf("rewriting paths: %w", err)
	}

	if crawlErr != nil {
		return crawlErr
	}
	a.log.InfoContext(ctx, "archive complete", "dir", layout.Dir())
	return nil
}

// login opens the course page and hands the window to the operator until
// they confirm they are signed in.
func (a *Archiver) login(ctx context.Context, b Browser) error {
	a.log.InfoContext(ctx, "opening course page", "url", a.courseURL)
	if err := b.Navigate(ctx, a.courseURL); err != nil {
		return fmt.Errorf("opening course page: %w", err)
	}

	if clicked, err := b.ClickSignIn(ctx, a.cfg.Site.LoginProviders); err != nil {
		a.log.DebugContext(ctx, "sign-in link not clicked", "error", err)
	} else if clicked {
		a.log.InfoContext(ctx, "clicked sign-in link")
	}

	out := a.prompt.Out()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Please complete the login in the browser window.")
	fmt.Fprintln(out, "Make sure the course assessments page is visible.")
	if err := a.prompt.WaitForEnter(ctx, ">>> Press Enter once logged in... "); err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}

	if err := crawl.Wait(ctx, a.cfg.Crawl.LoginSettle); err != nil {
		return err
	}

	current, err := b.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("checking login: %w", err)
	}
	if strings.Contains(current, listingPathKey) {
		return nil
	}

	a.log.InfoContext(ctx, "returning to course page", "from", current)
	if err := b.Navigate(ctx, a.courseURL); err != nil {
		return fmt.Errorf("returning to course page: %w", err)
	}
	return crawl.Wait(ctx, a.cfg.Crawl.AssessmentSettle)
}

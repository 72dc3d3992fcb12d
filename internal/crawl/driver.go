// Package crawl walks the selected assessments and saves each of their
// questions, skipping work already on disk.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/plarchive/internal/archive"
	"github.com/stupside/plarchive/internal/assets"
	"github.com/stupside/plarchive/internal/capture"
	"github.com/stupside/plarchive/internal/discovery"
)

// ErrSessionLost stops the crawl: the platform redirected to a login page or
// refused the session cookies.
var ErrSessionLost = errors.New("session lost, please log in again")

// Page is the browser page the driver navigates.
type Page interface {
	capture.Page
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ExpandPanels(ctx context.Context, labels []string) (int, error)
}

// Capturer saves the loaded question page into a folder.
type Capturer interface {
	Capture(ctx context.Context, pageURL string, folder archive.Folder) (capture.Result, error)
}

// Options configure a Driver.
type Options struct {
	Layout        archive.Layout
	Validator     archive.Validator
	LoginMarkers  []string
	PanelLabels   []string
	NameMaxLength int

	AssessmentSettle time.Duration
	QuestionSettle   time.Duration
	PanelSettle      time.Duration
}

// Report counts what one Run did.
type Report struct {
	Assessments int
	Questions   int
	Saved       int
	Skipped     int
	Failed      int
}

// Driver visits assessments and questions one at a time.
type Driver struct {
	page      Page
	capturer  Capturer
	opts      Options
	completed CompletedSet
	log       *slog.Logger
}

// New returns a Driver with an empty completed set.
func New(page Page, capturer Capturer, opts Options, log *slog.Logger) *Driver {
	return &Driver{
		page:      page,
		capturer:  capturer,
		opts:      opts,
		completed: CompletedSet{},
		log:       log,
	}
}

// Run processes assessments in order. Group assessments are skipped. It
// returns ErrSessionLost as soon as the session is found to be gone, and
// ctx.Err() when cancelled; every other failure is logged and skipped.
func (d *Driver) Run(ctx context.Context, assessments []discovery.Assessment) (Report, error) {
	var rep Report

	for i, a := range assessments {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if a.Group {
			d.log.DebugContext(ctx, "skipping group assessment", "assessment", a.Name)
			continue
		}

		if err := d.checkSession(ctx); err != nil {
			return rep, err
		}

		d.log.InfoContext(ctx, "processing assessment",
			"index", i+1, "total", len(assessments), "week", a.Week, "assessment", a.Name)

		if err := d.assessment(ctx, a, &rep); err != nil {
			if errors.Is(err, ErrSessionLost) || ctx.Err() != nil {
				return rep, err
			}
			rep.Failed++
			d.log.ErrorContext(ctx, "assessment failed", "assessment", a.Name, "error", err)
		}
	}

	d.log.InfoContext(ctx, "crawl finished",
		"assessments", rep.Assessments, "questions", rep.Questions,
		"saved", rep.Saved, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func (d *Driver) assessment(ctx context.Context, a discovery.Assessment, rep *Report) error {
	if err := d.page.Navigate(ctx, a.URL); err != nil {
		return err
	}
	if err := Wait(ctx, d.opts.AssessmentSettle); err != nil {
		return err
	}

	html, err := d.page.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parsing assessment page: %w", err)
	}
	base, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("parsing assessment URL: %w", err)
	}

	questions := discovery.Questions(doc, base, d.opts.NameMaxLength)
	rep.Assessments++
	d.log.InfoContext(ctx, "found questions", "assessment", a.Name, "count", len(questions))

	for _, q := range questions {
		rep.Questions++
		if err := d.question(ctx, a, q, rep); err != nil {
			if errors.Is(err, ErrSessionLost) || ctx.Err() != nil {
				return err
			}
			rep.Failed++
			d.log.ErrorContext(ctx, "question failed", "assessment", a.Name, "question", q.Title, "error", err)
		}
	}
	return nil
}

func (d *Driver) question(ctx context.Context, a discovery.Assessment, q discovery.Question, rep *Report) error {
	key := Key(a.Name, q.Title)
	if d.completed.Has(key) {
		rep.Skipped++
		d.log.DebugContext(ctx, "already saved this run", "question", key)
		return nil
	}

	folder := archive.Folder(d.opts.Layout.QuestionDir(a.Week, a.Name, q.Category, q.Title))
	status := d.opts.Validator.Inspect(folder)
	if status.Complete() {
		d.completed.Add(key)
		rep.Skipped++
		d.log.InfoContext(ctx, "skipping, already archived", "question", q.Title, "folder", folder.String())
		return nil
	}
	if status.ValidHTML {
		d.log.InfoContext(ctx, "re-fetching incomplete question",
			"question", q.Title, "needs_images", status.NeedsImages, "needs_screenshot", status.NeedsScreenshot)
	}

	d.log.InfoContext(ctx, "processing question", "category", q.Category, "question", q.Title)

	if err := d.page.Navigate(ctx, q.URL); err != nil {
		return err
	}
	if err := d.checkSession(ctx); err != nil {
		return err
	}
	if err := Wait(ctx, d.opts.QuestionSettle); err != nil {
		return err
	}

	if n, err := d.page.ExpandPanels(ctx, d.opts.PanelLabels); err != nil {
		d.log.DebugContext(ctx, "expanding panels failed", "error", err)
	} else if n > 0 {
		d.log.DebugContext(ctx, "expanded panels", "count", n)
	}
	if err := Wait(ctx, d.opts.PanelSettle); err != nil {
		return err
	}

	if _, err := d.capturer.Capture(ctx, q.URL, folder); err != nil {
		if errors.Is(err, assets.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrSessionLost, err)
		}
		return err
	}

	d.completed.Add(key)
	rep.Saved++
	return nil
}

// checkSession returns ErrSessionLost when the browser sits on a login page.
// A failed URL read is not evidence of a lost session.
func (d *Driver) checkSession(ctx context.Context) error {
	current, err := d.page.CurrentURL(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.log.WarnContext(ctx, "could not check session, continuing", "error", err)
		return nil
	}
	if LoginPage(current, d.opts.LoginMarkers) {
		d.log.ErrorContext(ctx, "session expired, please log in again", "url", current)
		return ErrSessionLost
	}
	return nil
}

// LoginPage reports whether rawURL looks like a login page.
func LoginPage(rawURL string, markers []string) bool {
	lower := strings.ToLower(rawURL)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Wait sleeps for d unless ctx ends first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

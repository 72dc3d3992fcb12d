// Package capture persists one rendered question page: its markup with
// localized images, and a full-page screenshot.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/stupside/plarchive/internal/archive"
	"github.com/stupside/plarchive/internal/assets"
)

// Page is the live browser page being captured.
type Page interface {
	HTML(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Localizer rewrites a page to reference local image copies.
type Localizer interface {
	Localize(ctx context.Context, html, pageURL string, folder archive.Folder, cookies []*http.Cookie) (string, assets.Report, error)
}

// Result describes what a capture wrote.
type Result struct {
	Images        assets.Report
	Screenshot    bool
	ScreenshotErr error
}

// Capturer writes question folders from the live page.
type Capturer struct {
	page      Page
	localizer Localizer
	log       *slog.Logger
}

// New returns a Capturer reading from page.
func New(page Page, localizer Localizer, log *slog.Logger) *Capturer {
	return &Capturer{page: page, localizer: localizer, log: log}
}

// Capture saves the page loaded from pageURL into folder as index.html and
// render.png. A failed screenshot is logged and reported in the result. An
// expired session returns assets.ErrUnauthorized before anything is written.
func (c *Capturer) Capture(ctx context.Context, pageURL string, folder archive.Folder) (Result, error) {
	var res Result

	html, err := c.page.HTML(ctx)
	if err != nil {
		return res, err
	}

	cookies, err := c.page.Cookies(ctx)
	if err != nil {
		// Continue without cookies; protected images fail individually.
		c.log.WarnContext(ctx, "could not read cookies", "error", err)
	}

	html, res.Images, err = c.localizer.Localize(ctx, html, pageURL, folder, cookies)
	if err != nil {
		return res, fmt.Errorf("localizing images: %w", err)
	}
	if res.Images.SessionExpired {
		return res, assets.ErrUnauthorized
	}

	if err := os.MkdirAll(folder.String(), 0o755); err != nil {
		return res, fmt.Errorf("creating question folder: %w", err)
	}
	if err := os.WriteFile(folder.IndexPath(), []byte(html), 0o644); err != nil {
		return res, fmt.Errorf("writing %s: %w", archive.IndexFile, err)
	}
	c.log.InfoContext(ctx, "saved html", "path", folder.IndexPath(), "bytes", len(html))

	png, err := c.page.Screenshot(ctx)
	if err == nil {
		err = os.WriteFile(folder.ScreenshotPath(), png, 0o644)
	}
	if err != nil {
		res.ScreenshotErr = err
		c.log.ErrorContext(ctx, "screenshot failed", "folder", folder.String(), "error", err)
		return res, nil
	}

	res.Screenshot = true
	c.log.InfoContext(ctx, "saved screenshot", "path", folder.ScreenshotPath())
	return res, nil
}

// Package browser wraps the chromedp session the archiver drives: one
// visible Chrome window, reused for login, listing and every question page.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/stupside/plarchive/internal/app"
)

// documentJS serializes the doctype and the root element so saved pages
// keep standards mode.
const documentJS = `(document.doctype ? new XMLSerializer().serializeToString(document.doctype) + "\n" : "") + document.documentElement.outerHTML`

// Session owns the chromedp lifecycle for a single archive run.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         *slog.Logger
	snapshotDir string
}

// Open starts Chrome and prepares the first tab. Snapshots are written
// under snapshotDir when the logger is at debug level.
func Open(ctx context.Context, cfg app.BrowserConfig, log *slog.Logger, snapshotDir string) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(cfg)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
	)

	s := &Session{
		ctx:         taskCtx,
		cancel:      taskCancel,
		allocCancel: allocCancel,
		timeout:     cfg.Timeout,
		log:         log,
		snapshotDir: snapshotDir,
	}

	err := s.run(ctx,
		network.Enable(),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorDeny),
		injectCDPStealth(),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	log.Info("browser started", "headless", cfg.Headless)
	return s, nil
}

// run executes actions on the session tab, bounded by the browser timeout
// and by ctx. A child of the chromedp task context is never cancelled
// here: doing so breaks the target in chromedp v0.14.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("browser action timed out after %s", s.timeout)
	}
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	s.Snapshot(ctx, "navigate")
	return nil
}

// CurrentURL returns the URL of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// HTML returns the rendered document including its doctype.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.Evaluate(documentJS, &html)); err != nil {
		return "", fmt.Errorf("reading page markup: %w", err)
	}
	return html, nil
}

// Screenshot scrolls to the top and captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var (
		buf      []byte
		scrolled bool
	)
	err := s.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, 0); true`, &scrolled),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	if len(buf) == 0 {
		return nil, errors.New("capturing screenshot: empty image")
	}
	if !bytes.HasPrefix(buf, []byte("\x89PNG")) {
		s.log.WarnContext(ctx, "screenshot is not a PNG", "bytes", len(buf))
	}
	return buf, nil
}

// Cookies returns the browser cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

// Close tears down the browser and allocator. It is safe to call twice.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

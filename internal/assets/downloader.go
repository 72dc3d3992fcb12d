// Package assets downloads the images a question page embeds and rewrites
// the page to reference the local copies.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/stupside/plarchive/internal/app"
)

// ErrUnauthorized means the platform rejected the session cookies. It is a
// session condition, not a transient failure, and is never retried.
var ErrUnauthorized = errors.New("session expired: asset request unauthorized")

// StatusError is returned for non-success responses other than 401.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
}

// Downloader fetches assets with the browser session's cookies, retrying
// transient failures with exponential backoff.
type Downloader struct {
	client *resty.Client
	log    *slog.Logger
}

// NewDownloader builds a Downloader. MaxAttempts counts the first request.
func NewDownloader(cfg app.DownloadConfig, log *slog.Logger) *Downloader {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(max(cfg.MaxAttempts-1, 0))
	client.SetRetryWaitTime(cfg.RetryWait)
	client.SetRetryMaxWaitTime(cfg.MaxRetryWait)
	client.AddRetryCondition(retryable)
	client.AddRetryHook(func(res *resty.Response, err error) {
		if res == nil || res.Request == nil {
			return
		}
		attrs := []any{"url", res.Request.URL, "attempt", res.Request.Attempt}
		if err != nil {
			attrs = append(attrs, "error", err)
		} else {
			attrs = append(attrs, "status", res.StatusCode())
		}
		log.Warn("asset download failed, retrying", attrs...)
	})

	return &Downloader{client: client, log: log}
}

// retryable retries transport errors, throttling and server errors. A 401
// is final.
func retryable(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if res == nil {
		return false
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Fetch downloads url and returns the body. It returns ErrUnauthorized on
// HTTP 401 and a *StatusError on other non-200 responses.
func (d *Downloader) Fetch(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error) {
	res, err := d.client.R().
		SetContext(ctx).
		SetCookies(cookies).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
		return res.Body(), nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &StatusError{URL: url, Status: res.StatusCode()}
	}
}

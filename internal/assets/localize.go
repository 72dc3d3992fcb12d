package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"

	"github.com/stupside/plarchive/internal/archive"
	"github.com/stupside/plarchive/internal/fsname"
)

const maxFileNameLength = 200

// Fetcher downloads a single asset.
type Fetcher interface {
	Fetch(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error)
}

// Report summarizes one Localize call.
type Report struct {
	Found          int
	Downloaded     int
	Reused         int
	Failed         int
	SessionExpired bool
}

// Localizer downloads course and question images into a question folder and
// points the page at the local copies.
type Localizer struct {
	fetcher Fetcher
	host    string
	markers []string
	log     *slog.Logger
}

// NewLocalizer returns a Localizer for images served by origin whose path
// contains one of markers.
func NewLocalizer(fetcher Fetcher, origin *url.URL, markers []string, log *slog.Logger) *Localizer {
	return &Localizer{
		fetcher: fetcher,
		host:    strings.ToLower(origin.Hostname()),
		markers: markers,
		log:     log,
	}
}

// Localize rewrites every matching <img src> in html to images/<name>,
// downloading the file into the folder's images directory unless a non-empty
// copy is already there. Relative sources are resolved against pageURL.
//
// A failed download leaves that image's src untouched. An unauthorized
// response stops further downloads and sets Report.SessionExpired.
func (l *Localizer) Localize(ctx context.Context, html, pageURL string, folder archive.Folder, cookies []*http.Cookie) (string, Report, error) {
	var rep Report

	base, err := url.Parse(pageURL)
	if err != nil {
		return html, rep, fmt.Errorf("parsing page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html, rep, fmt.Errorf("parsing page: %w", err)
	}

	changed := false

	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		u, ok := l.match(base, src)
		if !ok {
			return true
		}
		rep.Found++

		name, err := l.localize(ctx, u, folder, cookies, &rep)
		switch {
		case errors.Is(err, ErrUnauthorized):
			rep.SessionExpired = true
			l.log.ErrorContext(ctx, "session expired, please log in again", "url", u.String())
			return false
		case err != nil:
			rep.Failed++
			l.log.ErrorContext(ctx, "image download failed", "url", u.String(), "error", err)
			return true
		}

		img.SetAttr("src", archive.LocalImageRef(url.PathEscape(name)))
		changed = true
		return true
	})

	if rep.Downloaded > 0 {
		l.log.InfoContext(ctx, "downloaded images", "count", rep.Downloaded, "folder", folder.String())
	}

	if !changed {
		return html, rep, nil
	}

	out, err := doc.Html()
	if err != nil {
		return html, rep, fmt.Errorf("rendering page: %w", err)
	}
	return out, rep, nil
}

// match resolves src and reports whether it is a platform asset worth
// keeping locally.
func (l *Localizer) match(base *url.URL, src string) (*url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if strings.ToLower(u.Hostname()) != l.host {
		return nil, false
	}
	for _, m := range l.markers {
		if strings.Contains(u.Path, m) {
			return u, true
		}
	}
	return nil, false
}

// localize returns the local file name for u, downloading it when needed.
func (l *Localizer) localize(ctx context.Context, u *url.URL, folder archive.Folder, cookies []*http.Cookie, rep *Report) (string, error) {
	dir := folder.ImagesPath()
	name, fallback := fileName(u)

	if existing, ok := existingCopy(dir, name, fallback); ok {
		rep.Reused++
		return existing, nil
	}

	body, err := l.fetcher.Fetch(ctx, u.String(), cookies)
	if err != nil {
		return "", err
	}

	if fallback {
		name += mimetype.Detect(body).Extension()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating images directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}

	rep.Downloaded++
	l.log.InfoContext(ctx, "downloaded image", "name", name)
	return name, nil
}

// fileName derives the local name from the URL path. When the path has no
// usable base name, a name is derived from the URL digest and fallback is
// true; the extension is then sniffed from the downloaded bytes.
func fileName(u *url.URL) (name string, fallback bool) {
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		base := path.Base(u.Path)
		if clean := fsname.Clean(base, maxFileNameLength); clean != "" {
			return clean, false
		}
	}
	sum := md5.Sum([]byte(u.String()))
	return "image_" + hex.EncodeToString(sum[:])[:8], true
}

// existingCopy looks for a non-empty file already saved under name. Fallback
// names match any extension.
func existingCopy(dir, name string, fallback bool) (string, bool) {
	candidates := []string{filepath.Join(dir, name)}
	if fallback {
		matches, _ := filepath.Glob(filepath.Join(dir, name+"*"))
		candidates = append(candidates, matches...)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return filepath.Base(c), true
		}
	}
	return "", false
}

package archive

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlMarkers = [][]byte{[]byte("<!doctype html"), []byte("<html")}

// Validator decides whether a persisted index.html can be trusted.
type Validator struct {
	// MinSize is the smallest acceptable file size in bytes; error pages and
	// truncated writes fall below it.
	MinSize int64
	// ProbeBytes is how much of the file head is searched for an HTML marker.
	ProbeBytes int
	// Host and AssetMarkers identify platform images that should have been
	// saved locally: an img on Host (or site-relative) whose path contains
	// one of the markers.
	Host         string
	AssetMarkers []string
}

// ValidHTML reports whether path exists, is at least MinSize bytes long and
// starts with an HTML document marker (case-insensitive).
func (v Validator) ValidHTML(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() < v.MinSize {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, v.ProbeBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	head = bytes.ToLower(head[:n])

	for _, m := range htmlMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}
	return false
}

// Status describes what a question folder already holds.
type Status struct {
	ValidHTML       bool
	NeedsImages     bool
	NeedsScreenshot bool
}

// Complete reports whether the folder can be skipped without re-fetching.
func (s Status) Complete() bool {
	return s.ValidHTML && !s.NeedsImages && !s.NeedsScreenshot
}

// Inspect examines a question folder. Images are required when the saved
// HTML references localized images, or still points at a platform image
// whose download failed.
func (v Validator) Inspect(folder Folder) Status {
	var st Status

	st.ValidHTML = v.ValidHTML(folder.IndexPath())
	if !st.ValidHTML {
		return st
	}

	if _, err := os.Stat(folder.ScreenshotPath()); err != nil {
		st.NeedsScreenshot = true
	}

	local, remote := v.imageRefs(folder.IndexPath())
	if remote || (local && dirEmpty(folder.ImagesPath())) {
		st.NeedsImages = true
	}

	return st
}

// imageRefs reports whether the page has localized images and whether it
// still has platform images that were never localized. An unreadable page
// requires images.
func (v Validator) imageRefs(path string) (local, remote bool) {
	f, err := os.Open(path)
	if err != nil {
		return true, false
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return true, false
	}

	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		src = strings.TrimSpace(src)
		if strings.HasPrefix(src, ImagesDir+"/") {
			local = true
			return
		}
		if v.platformImage(src) {
			remote = true
		}
	})
	return local, remote
}

func (v Validator) platformImage(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	if u.Host != "" && !strings.EqualFold(u.Hostname(), v.Host) {
		return false
	}
	for _, m := range v.AssetMarkers {
		if m != "" && strings.Contains(u.Path, m) {
			return true
		}
	}
	return false
}

func dirEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err != nil || len(entries) == 0
}

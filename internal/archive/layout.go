// Package archive owns the on-disk output tree: where question folders live,
// when a folder can be trusted on resume, and the final path rewrite pass.
package archive

import (
	"fmt"
	"path/filepath"
)

const (
	IndexFile      = "index.html"
	ScreenshotFile = "render.png"
	ImagesDir      = "images"
	DebugListing   = "_debug_main_page.html"

	dirSuffix = "_archive"
)

// Layout maps course entities onto the archive directory tree:
// <root>/<course>_archive/<week>/<assessment>/<category>/<question>/.
type Layout struct {
	dir string
}

// NewLayout returns the layout for a course archived under root.
func NewLayout(root, course string) Layout {
	return Layout{dir: filepath.Join(root, course+dirSuffix)}
}

// At returns a layout rooted at an existing archive directory.
func At(dir string) Layout {
	return Layout{dir: dir}
}

// Dir is the archive root directory.
func (l Layout) Dir() string { return l.dir }

// DebugListingPath is where the raw listing page is written.
func (l Layout) DebugListingPath() string {
	return filepath.Join(l.dir, DebugListing)
}

// QuestionDir returns the folder holding one question's files. All segments
// are expected to be sanitized already.
func (l Layout) QuestionDir(week, assessment, category, question string) string {
	return filepath.Join(l.dir, week, assessment, category, question)
}

// Folder is a question folder on disk.
type Folder string

func (f Folder) IndexPath() string      { return filepath.Join(string(f), IndexFile) }
func (f Folder) ScreenshotPath() string { return filepath.Join(string(f), ScreenshotFile) }
func (f Folder) ImagesPath() string     { return filepath.Join(string(f), ImagesDir) }

func (f Folder) String() string { return string(f) }

// LocalImageRef is the src written into saved HTML for a localized image.
func LocalImageRef(name string) string {
	return fmt.Sprintf("%s/%s", ImagesDir, name)
}

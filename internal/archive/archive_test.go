package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/plarchive/internal/logging"
)

var validator = Validator{
	MinSize:      1000,
	ProbeBytes:   500,
	Host:         "us.prairielearn.com",
	AssetMarkers: []string{"clientFilesCourse", "clientFilesQuestion"},
}

func page(body string) string {
	return "<!DOCTYPE html>\n<html><head><title>q</title></head><body>" + body + strings.Repeat("<p>filler</p>", 100) + "</body></html>"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLayout(t *testing.T) {
	l := NewLayout("/tmp/out", "CS_233")

	assert.Equal(t, filepath.Join("/tmp/out", "CS_233_archive"), l.Dir())
	assert.Equal(t, filepath.Join("/tmp/out", "CS_233_archive", "_debug_main_page.html"), l.DebugListingPath())

	f := Folder(l.QuestionDir("Week_1", "HW1", "General", "Q1"))
	assert.Equal(t, filepath.Join("/tmp/out", "CS_233_archive", "Week_1", "HW1", "General", "Q1", "index.html"), f.IndexPath())
	assert.Equal(t, "images/fig.png", LocalImageRef("fig.png"))
}

func TestValidHTML(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "full page", content: page(""), want: true},
		{name: "lowercase root only", content: "<html>" + strings.Repeat("x", 1200) + "</html>", want: true},
		{name: "too small", content: "<!doctype html><html><body>error</body></html>", want: false},
		{name: "no marker", content: strings.Repeat("not html ", 200), want: false},
		{name: "marker after probe window", content: strings.Repeat(" ", 600) + "<html>" + strings.Repeat("x", 600), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".html")
			writeFile(t, path, tc.content)
			assert.Equal(t, tc.want, validator.ValidHTML(path))
		})
	}

	assert.False(t, validator.ValidHTML(filepath.Join(dir, "missing.html")))
}

func TestInspect(t *testing.T) {
	t.Run("complete folder", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(`<img src="images/fig.png">`))
		writeFile(t, filepath.Join(f.ImagesPath(), "fig.png"), "png")
		writeFile(t, f.ScreenshotPath(), "png")

		st := validator.Inspect(f)
		assert.True(t, st.Complete())
	})

	t.Run("no images referenced and none saved", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(""))
		writeFile(t, f.ScreenshotPath(), "png")

		assert.True(t, validator.Inspect(f).Complete())
	})

	t.Run("referenced images missing", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(`<img class="x" src="images/fig.png">`))
		writeFile(t, f.ScreenshotPath(), "png")
		require.NoError(t, os.MkdirAll(f.ImagesPath(), 0o755))

		st := validator.Inspect(f)
		assert.True(t, st.ValidHTML)
		assert.True(t, st.NeedsImages)
		assert.False(t, st.Complete())
	})

	t.Run("platform image never localized", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(`<img src="https://us.prairielearn.com/pl/course_instance/1/instance_question/9/clientFilesQuestion/fig.png">`))
		writeFile(t, f.ScreenshotPath(), "png")

		st := validator.Inspect(f)
		assert.True(t, st.ValidHTML)
		assert.True(t, st.NeedsImages)
		assert.False(t, st.Complete())
	})

	t.Run("site-relative platform image never localized", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(`<img src="/pl/course/3/clientFilesCourse/logo.png">`))
		writeFile(t, f.ScreenshotPath(), "png")

		assert.True(t, validator.Inspect(f).NeedsImages)
	})

	t.Run("foreign and non-asset images are not required", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(`<img src="https://cdn.example.com/clientFilesCourse/x.png"><img src="https://us.prairielearn.com/assets/icon.svg">`))
		writeFile(t, f.ScreenshotPath(), "png")

		assert.True(t, validator.Inspect(f).Complete())
	})

	t.Run("screenshot missing", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), page(""))

		st := validator.Inspect(f)
		assert.True(t, st.NeedsScreenshot)
		assert.False(t, st.Complete())
	})

	t.Run("truncated index", func(t *testing.T) {
		f := Folder(t.TempDir())
		writeFile(t, f.IndexPath(), "<html></html>")
		writeFile(t, f.ScreenshotPath(), "png")

		assert.False(t, validator.Inspect(f).Complete())
	})
}

func newRewriter(t *testing.T) *Rewriter {
	t.Helper()
	r, err := NewRewriter("https://us.prairielearn.com/", []string{"/assets/", "/pl/"}, logging.Discard())
	require.NoError(t, err)
	return r
}

func TestRewrite(t *testing.T) {
	r := newRewriter(t)

	in := `<link href="/assets/app.css"><script src="/pl/static/x.js"></script>` +
		`<img src="images/local.png"><a href="/other/page">o</a><a href="https://cdn.example.com/pl/y">y</a>`
	want := `<link href="https://us.prairielearn.com/assets/app.css"><script src="https://us.prairielearn.com/pl/static/x.js"></script>` +
		`<img src="images/local.png"><a href="/other/page">o</a><a href="https://cdn.example.com/pl/y">y</a>`

	once := r.Rewrite(in)
	assert.Equal(t, want, once)
	assert.Equal(t, once, r.Rewrite(once))
}

func TestRewriteFileIsIdempotent(t *testing.T) {
	r := newRewriter(t)
	path := filepath.Join(t.TempDir(), "index.html")
	writeFile(t, path, page(`<link rel="stylesheet" href="/assets/bootstrap.css">`))

	changed, err := r.RewriteFile(path)
	require.NoError(t, err)
	assert.True(t, changed)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	changed, err = r.RewriteFile(path)
	require.NoError(t, err)
	assert.False(t, changed)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(second), `href="https://us.prairielearn.com/assets/bootstrap.css"`)
}

func TestRewriteTree(t *testing.T) {
	r := newRewriter(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "_debug_main_page.html"), `<a href="/pl/course_instance/1">c</a>`)
	writeFile(t, filepath.Join(dir, "Week_1", "HW1", "General", "Q1", "index.html"), `<script src="/assets/x.js"></script>`)
	writeFile(t, filepath.Join(dir, "Week_1", "HW1", "General", "Q2", "index.html"), `<p>nothing relative</p>`)
	writeFile(t, filepath.Join(dir, "Week_1", "HW1", "General", "Q1", "render.png"), `src="/assets/not-html"`)

	stats, err := r.RewriteTree(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, RewriteStats{Files: 3, Rewritten: 2}, stats)

	png, err := os.ReadFile(filepath.Join(dir, "Week_1", "HW1", "General", "Q1", "render.png"))
	require.NoError(t, err)
	assert.Equal(t, `src="/assets/not-html"`, string(png))

	stats, err = r.RewriteTree(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Rewritten)
}

func TestRewriteTreeMissingDir(t *testing.T) {
	_, err := newRewriter(t).RewriteTree(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

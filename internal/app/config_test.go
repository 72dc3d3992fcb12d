package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plarchive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenDefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(DefaultConfigPath)
	require.NoError(t, err)

	assert.Equal(t, "https://us.prairielearn.com", cfg.Site.Origin)
	assert.Equal(t, 1, cfg.Crawl.WeekMin)
	assert.Equal(t, 14, cfg.Crawl.WeekMax)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawl.QuestionSettle)
	assert.Equal(t, int64(1000), cfg.Archive.MinHTMLSize)
	assert.Equal(t, []string{"/assets/", "/pl/"}, cfg.Site.RewritePrefixes)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  origin: https://pl.example.edu
  course_url: https://pl.example.edu/pl/course_instance/7/assessments
  login_markers: [auth]
crawl:
  week_max: 16
  panel_settle: 0s
download:
  max_attempts: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://pl.example.edu", cfg.Site.Origin)
	assert.Equal(t, []string{"auth"}, cfg.Site.LoginMarkers, "lists replace defaults instead of merging")
	assert.Equal(t, 16, cfg.Crawl.WeekMax)
	assert.Equal(t, time.Duration(0), cfg.Crawl.PanelSettle)
	assert.Equal(t, 5, cfg.Download.MaxAttempts)
	assert.Equal(t, []string{"clientFilesCourse", "clientFilesQuestion"}, cfg.Site.AssetMarkers)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"week range inverted": "crawl:\n  week_min: 5\n  week_max: 2\n",
		"origin not a url":    "site:\n  origin: not a url\n",
		"relative prefix":     "site:\n  rewrite_prefixes: [assets/]\n",
		"zero attempts":       "download:\n  max_attempts: 0\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validating config")
		})
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup writes a config that keeps log files inside a temp directory.
func setup(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "plarchive.yaml")
	body := fmt.Sprintf("site:\n  origin: https://pl.test\nlog:\n  dir: %s\n", filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))
	return configPath, dir
}

func TestRewriteCommand(t *testing.T) {
	configPath, dir := setup(t)

	page := filepath.Join(dir, "CS_233_archive", "Week_1", "HW1", "General", "Q1", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0o755))
	require.NoError(t, os.WriteFile(page, []byte(`<script src="/assets/app.js"></script><a href="https://pl.test/pl/x">x</a>`), 0o644))

	err := Root().Run(context.Background(), []string{"plarchive", "--config", configPath, "rewrite", filepath.Join(dir, "CS_233_archive")})
	require.NoError(t, err)

	b, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Equal(t, `<script src="https://pl.test/assets/app.js"></script><a href="https://pl.test/pl/x">x</a>`, string(b))

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "plarchive_*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRewriteCommandRequiresDirectory(t *testing.T) {
	configPath, dir := setup(t)

	err := Root().Run(context.Background(), []string{"plarchive", "--config", configPath, "rewrite"})
	require.Error(t, err)

	err = Root().Run(context.Background(), []string{"plarchive", "--config", configPath, "rewrite", filepath.Join(dir, "missing")})
	require.Error(t, err)
}

func TestDiscoverCommand(t *testing.T) {
	configPath, dir := setup(t)

	listing := filepath.Join(dir, "_debug_main_page.html")
	html := `<html><body><table><tbody>
<tr><th data-testid="assessment-group-heading">Week 2</th></tr>
<tr><td><span class="badge">HW3</span></td><td><a href="/pl/course_instance/1/assessment/3/">Homework 3</a></td></tr>
</tbody></table></body></html>`
	require.NoError(t, os.WriteFile(listing, []byte(html), 0o644))

	err := Root().Run(context.Background(), []string{"plarchive", "--config", configPath, "discover", listing})
	require.NoError(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  max_attempts: 0\n"), 0o644))

	err := Root().Run(context.Background(), []string{"plarchive", "--config", path, "info"})
	require.Error(t, err)
}

func TestLogged(t *testing.T) {
	base := errors.New("boom")

	assert.False(t, Logged(base))
	assert.True(t, Logged(loggedError{base}))
	assert.True(t, Logged(fmt.Errorf("wrapped: %w", loggedError{base})))
	assert.ErrorIs(t, loggedError{base}, base)
}

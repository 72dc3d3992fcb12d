package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Snapshot writes a screenshot and the markup of the current page under the
// snapshot directory. It only runs at debug level and never fails.
func (s *Session) Snapshot(ctx context.Context, label string) {
	if s.snapshotDir == "" || !s.log.Enabled(ctx, slog.LevelDebug) {
		return
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		s.log.DebugContext(ctx, "snapshot: mkdir failed", "error", err)
		return
	}

	prefix := filepath.Join(s.snapshotDir, fmt.Sprintf("%s_%d", label, time.Now().UnixMilli()))

	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		s.log.DebugContext(ctx, "snapshot: screenshot failed", "label", label, "error", err)
	} else if err := os.WriteFile(prefix+".jpg", buf, 0o644); err != nil {
		s.log.DebugContext(ctx, "snapshot: write image failed", "error", err)
	}

	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		s.log.DebugContext(ctx, "snapshot: html failed", "label", label, "error", err)
	} else if err := os.WriteFile(prefix+".html", []byte(html), 0o644); err != nil {
		s.log.DebugContext(ctx, "snapshot: write html failed", "error", err)
	}

	s.log.DebugContext(ctx, "snapshot: saved", "label", label, "path", prefix)
}

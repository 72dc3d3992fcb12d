package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rewriter turns site-root-relative src/href attributes in saved pages into
// absolute URLs so the archive renders without the original session.
type Rewriter struct {
	origin  string
	pattern *regexp.Regexp
	log     *slog.Logger
}

// RewriteStats summarizes a rewrite pass.
type RewriteStats struct {
	Files     int
	Rewritten int
	Failed    int
}

// NewRewriter builds a rewriter for attributes whose value starts with one of
// prefixes (for example "/assets/" and "/pl/").
func NewRewriter(origin string, prefixes []string, log *slog.Logger) (*Rewriter, error) {
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("no rewrite prefixes configured")
	}
	quoted := make([]string, len(prefixes))
	for i, p := range prefixes {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile(`(src|href)="((?:` + strings.Join(quoted, "|") + `)[^"]+)"`)
	if err != nil {
		return nil, fmt.Errorf("compiling rewrite pattern: %w", err)
	}
	return &Rewriter{
		origin:  strings.TrimRight(origin, "/"),
		pattern: re,
		log:     log,
	}, nil
}

// Rewrite returns content with every matching attribute made absolute.
// Already absolute values no longer match, so Rewrite is idempotent.
func (r *Rewriter) Rewrite(content string) string {
	return r.pattern.ReplaceAllString(content, `${1}="`+r.origin+`${2}"`)
}

// RewriteFile rewrites one file in place and reports whether it changed.
func (r *Rewriter) RewriteFile(path string) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	original := string(b)
	updated := r.Rewrite(original)
	if updated == original {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// RewriteTree rewrites every *.html file under dir. Per-file failures are
// logged and counted; only a failure to walk dir itself is returned.
func (r *Rewriter) RewriteTree(ctx context.Context, dir string) (RewriteStats, error) {
	var stats RewriteStats

	if _, err := os.Stat(dir); err != nil {
		return stats, fmt.Errorf("archive directory: %w", err)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		stats.Files++
		changed, err := r.RewriteFile(path)
		if err != nil {
			stats.Failed++
			r.log.WarnContext(ctx, "rewrite failed", "path", path, "error", err)
			return nil
		}
		if changed {
			stats.Rewritten++
			if stats.Rewritten%50 == 0 {
				r.log.InfoContext(ctx, "rewriting paths", "rewritten", stats.Rewritten)
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", dir, err)
	}

	r.log.InfoContext(ctx, "path rewrite complete", "files", stats.Files, "rewritten", stats.Rewritten, "failed", stats.Failed)
	return stats, nil
}

// Package logging builds the per-run logger: leveled, timestamped records go
// to a log file named after the run start time and to the console.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// FilePrefix starts every run log file name.
const FilePrefix = "plarchive"

// Run is the logger for a single archive run and the file backing it.
type Run struct {
	Logger *slog.Logger
	Path   string
	file   *os.File
}

// Options configure New.
type Options struct {
	Dir     string
	Debug   bool
	Console io.Writer
	Now     func() time.Time
}

// New opens <dir>/plarchive_<YYYYmmdd_HHMMSS>.log and returns a logger that
// writes every record to both the file and the console.
func New(opts Options) (*Run, error) {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", FilePrefix, opts.Now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	level := slog.LevelInfo
	consoleLevel := log.InfoLevel
	if opts.Debug {
		level = slog.LevelDebug
		consoleLevel = log.DebugLevel
	}

	console := log.NewWithOptions(opts.Console, log.Options{
		Level:           consoleLevel,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})

	return &Run{
		Logger: slog.New(slog.NewMultiHandler(fileHandler, console)),
		Path:   path,
		file:   f,
	}, nil
}

// Close flushes and closes the log file.
func (r *Run) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	if err := r.file.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
		r.file.Close()
		return fmt.Errorf("syncing log file: %w", err)
	}
	return r.file.Close()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

package app

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// DefaultConfigPath is the config file looked up when --config is not given.
const DefaultConfigPath = "config.yaml"

// Config holds all application configuration.
type Config struct {
	Site     SiteConfig     `koanf:"site" validate:"required"`
	Browser  BrowserConfig  `koanf:"browser" validate:"required"`
	Crawl    CrawlConfig    `koanf:"crawl" validate:"required"`
	Download DownloadConfig `koanf:"download" validate:"required"`
	Archive  ArchiveConfig  `koanf:"archive" validate:"required"`
	Log      LogConfig      `koanf:"log"`
}

// SiteConfig describes the learning platform being archived.
type SiteConfig struct {
	Origin          string   `koanf:"origin" validate:"required,url"`
	CourseURL       string   `koanf:"course_url" validate:"required,url"`
	LoginProviders  []string `koanf:"login_providers"`
	LoginMarkers    []string `koanf:"login_markers" validate:"required,min=1"`
	AssetMarkers    []string `koanf:"asset_markers" validate:"required,min=1"`
	RewritePrefixes []string `koanf:"rewrite_prefixes" validate:"required,min=1,dive,startswith=/"`
}

// BrowserConfig holds settings for the browser session.
type BrowserConfig struct {
	Timeout      time.Duration `koanf:"timeout" validate:"required"`
	Headless     bool          `koanf:"headless"`
	NoSandbox    bool          `koanf:"no_sandbox"`
	ChromePath   string        `koanf:"chrome_path"`
	WindowWidth  int           `koanf:"window_width" validate:"min=320"`
	WindowHeight int           `koanf:"window_height" validate:"min=240"`
}

// CrawlConfig holds discovery and crawl pacing settings.
type CrawlConfig struct {
	WeekMin          int           `koanf:"week_min" validate:"min=0"`
	WeekMax          int           `koanf:"week_max" validate:"gtefield=WeekMin"`
	NameMaxLength    int           `koanf:"name_max_length" validate:"min=16"`
	LoginSettle      time.Duration `koanf:"login_settle"`
	AssessmentSettle time.Duration `koanf:"assessment_settle"`
	QuestionSettle   time.Duration `koanf:"question_settle"`
	PanelSettle      time.Duration `koanf:"panel_settle"`
	PanelLabels      []string      `koanf:"panel_labels"`
}

// DownloadConfig holds asset download settings.
type DownloadConfig struct {
	Timeout      time.Duration `koanf:"timeout" validate:"required"`
	MaxAttempts  int           `koanf:"max_attempts" validate:"min=1,max=10"`
	RetryWait    time.Duration `koanf:"retry_wait"`
	MaxRetryWait time.Duration `koanf:"max_retry_wait" validate:"gtefield=RetryWait"`
}

// ArchiveConfig holds output tree settings.
type ArchiveConfig struct {
	Root           string `koanf:"root" validate:"required"`
	MinHTMLSize    int64  `koanf:"min_html_size" validate:"min=0"`
	HTMLProbeBytes int    `koanf:"html_probe_bytes" validate:"min=16"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	Dir string `koanf:"dir"`
}

//go:embed defaults.yaml
var defaultsYAML []byte

// Load reads and validates configuration. The embedded defaults are loaded
// first and the YAML file at path is layered on top. A missing file is only
// tolerated for DefaultConfigPath.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}

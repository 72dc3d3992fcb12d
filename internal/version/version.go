package version

// Set at build time with -ldflags "-X github.com/stupside/plarchive/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

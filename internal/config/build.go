package config

// Set at compile time, for example:
//
//	go build -ldflags "-X billingsync/internal/config.version=1.2.3 \
//	    -X billingsync/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X billingsync/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

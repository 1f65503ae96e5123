// Package version holds build-time version information.
//
// The variables are set during build via ldflags:
//
//	-ldflags "-X docindex/internal/version.version=v1.0.0 -X docindex/internal/version.commit=abc123 -X docindex/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
)

//nolint:gochecknoglobals // Set via ldflags during build.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is shown in the full version output.
const ApplicationName = "docindex"

// Default values used when build information is not injected.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info holds resolved version information.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Get returns the current version information with defaults applied.
func Get() Info {
	info := Info{Version: version, Commit: commit, BuildTime: buildTime}
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	if info.Commit == "" {
		info.Commit = DefaultCommit
	}
	if info.BuildTime == "" {
		info.BuildTime = DefaultBuildTime
	}
	return info
}

// IsDevelopment reports whether this is an uninjected development build.
func (i Info) IsDevelopment() bool {
	return i.Version == DefaultVersion
}

// Write prints the version information. With short set, only the version
// number is printed.
func (i Info) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, i.Version)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nVersion: %s\nCommit: %s\nBuilt: %s\n",
		ApplicationName, i.Version, i.Commit, i.BuildTime)
	return err
}

// SetBuildVars overrides the build variables. Test use only.
func SetBuildVars(ver, com, bt string) {
	version = ver
	commit = com
	buildTime = bt
}

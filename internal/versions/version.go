// Package versions reports build metadata and orders entity version strings.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Set with -ldflags "-X github.com/matrixhub/catalog-server/internal/versions.Version=..."
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// Info is the build metadata served by /version and the version command
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary
func Get() Info {
	var settings []debug.BuildSetting
	if bi, ok := debug.ReadBuildInfo(); ok {
		settings = bi.Settings
	}
	return resolve(Version, Commit, BuildDate, settings)
}

// resolve fills gaps left by ldflags from the VCS stamp of a development build
func resolve(version, commit, buildDate string, settings []debug.BuildSetting) Info {
	if version == "dev" {
		for _, s := range settings {
			switch {
			case s.Key == "vcs.revision" && commit == unknown:
				commit = s.Value
			case s.Key == "vcs.time" && buildDate == unknown:
				buildDate = s.Value
			}
		}
		short := commit
		if len(short) > 8 {
			short = short[:8]
		}
		version = "dev-" + short
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format(time.DateTime + " MST")
	}

	return Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Package version provides the build version of the helpdesk binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Name is the product name used in user agents and event producers.
const Name = "wadesk"

// Overridden with -ldflags "-X github.com/memohai/wadesk/internal/version.Version=..." at build time.
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

var loadOnce sync.Once

// Info is the build information reported by the version command and /api/health.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

// fillFromBuildInfo fills CommitHash and BuildTime from VCS stamps when ldflags left them empty.
func fillFromBuildInfo() {
	loadOnce.Do(func() {
		if CommitHash != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				CommitHash = setting.Value
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	})
}

// Get returns the build information.
func Get() Info {
	fillFromBuildInfo()
	return Info{
		Version:   Version,
		Commit:    CommitHash,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// GetInfo returns the version with the short commit hash, e.g. "1.2.0 (abc1234)".
func GetInfo() string {
	info := Get()
	if info.Commit == "" {
		return info.Version
	}
	short := info.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", info.Version, short)
}

// UserAgent is sent on outbound API calls.
func UserAgent() string {
	return Name + "/" + Version
}

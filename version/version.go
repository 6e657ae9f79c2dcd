// Package version reports the build identity of the voicememo binary.
package version

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/kbukum/voicememo/version.Version=v1.2.0".
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is the build identity, as served by `voicememo version`.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

var (
	once   sync.Once
	cached Info
)

// Get returns the build info. Values missing from ldflags are filled from
// the VCS stamps the go toolchain embeds.
func Get() Info {
	once.Do(func() { cached = read(debug.ReadBuildInfo) })
	return cached
}

func read(buildInfo func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	bi, ok := buildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// Short renders the version with the commit, e.g. "v1.2.0-3f2a9c1-dirty".
func (i Info) Short() string {
	s := i.Version
	if i.GitCommit != "" {
		s += "-" + i.GitCommit
	}
	if i.Dirty {
		s += "-dirty"
	}
	return s
}

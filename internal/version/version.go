// Package version provides version and build information for the binary.
package version

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionFile string

// Linker-injected variables. Set via:
//
//	go build -ldflags "-X github.com/oriondocs/orion/internal/version.gitCommit=VALUE"
var (
	gitCommit string
	buildDate string
)

// Info holds version and build information.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// String formats Info for human-readable display.
func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s",
		i.Version, i.GitCommit, i.BuildDate)
}

// Get returns the version, git commit, and build date of this binary.
func Get() Info {
	return Info{
		Version:   strings.TrimSpace(versionFile),
		GitCommit: commit(),
		BuildDate: date(),
	}
}

// commit prefers the linker flag, falling back to debug.ReadBuildInfo for
// go install builds.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if dirty {
		return revision + "-dirty"
	}
	return revision
}

func date() string {
	if buildDate != "" {
		return buildDate
	}
	return "unknown"
}

// Package version holds build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var fillOnce sync.Once

// String renders the build metadata on one line. Values not set by ldflags
// are taken from the module build info when the binary was built with `go install`.
func String() string {
	fillOnce.Do(fromBuildInfo)
	return fmt.Sprintf("patentscope %s (commit %s, built %s)", Version, Commit, Date)
}

func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown":
			Commit = shortRev(s.Value)
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Package vars holds build metadata set through -ldflags -X, with the
// module version from the Go build info as a fallback for go install.
package vars

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

// License of the project
const License = "GPL-2.0"

// Linker-provided values. _revision and _buildTime are strings because -X
// can only set strings; init converts them.
var (
	Name      = "mbrelay"
	Version   = "dev"
	Commit    = "unknown"
	Revision  = 0
	BuildTime = time.Unix(0, 0)
	URL       = "https://github.com/woozymasta/mbrelay"

	_revision  string
	_buildTime string
)

// BuildInfo is served on /api/version.
type BuildInfo struct {
	BuildTime   time.Time `json:"build_time,omitempty"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	GoVersion   string    `json:"go_version"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
	Revision    int       `json:"revision,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}

	if Version == "dev" {
		Version = moduleVersion(Version)
	}
}

// moduleVersion returns the main module version recorded by go install, or def.
func moduleVersion(def string) string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return def
	}

	return bi.Main.Version
}

// Print writes the build information to the standard output.
func Print() {
	info := Info()
	fmt.Printf(`name:       %s
url:        %s
file:       %s
version:    %s
commit:     %s
revision:   %d
built:      %s
go:         %s
license:    %s
user-agent: %s
`, info.Name, info.URL, os.Args[0], info.Version, info.Commit, info.Revision,
		info.BuildTime.Format(time.RFC3339), info.GoVersion, info.License, UserAgent())
}

// Info returns a BuildInfo struct containing detailed build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		GoVersion:   runtime.Version(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		URL:         URL,
		License:     License,
	}
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}

// UserAgent is the User-Agent sent to Metabans and the GeoIP mirror,
// e.g. "mbrelay/v1.2.3 (+https://github.com/woozymasta/mbrelay)".
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

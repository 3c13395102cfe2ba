package meta

import (
	"fmt"
	"runtime"
)

// Info describes the build context info for a courage binary.
//
// It encapsulates a bunch of information that's included at build time
// by the Go linker. See the vars below for more information
//
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
	GoTag     string
}

// These will be filled in using the linker -X flag
var (
	// Version as an arbitrary string
	Version string

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	// GoTag is the set of Go build tags the binary was built with
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

const unknown = "unknown"

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   orUnknown(Version),
		Build:     orUnknown(Build),
		Branch:    orUnknown(Branch),
		BuildTime: orUnknown(BuildTimeUTC),
		GoTag:     GoTag,
		Platform:  platform,
	}
}

// String renders the info the way `courage version` prints it.
func (i Info) String() string {
	s := fmt.Sprintf("courage %s (%s@%s) built %s\n%s %s", i.Version, i.Branch, i.Build, i.BuildTime, i.GoVersion, i.Platform)
	if i.GoTag != "" {
		s += " " + i.GoTag
	}

	return s
}

func orUnknown(value string) string {
	if value == "" {
		return unknown
	}

	return value
}

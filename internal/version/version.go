// Package version normalizes the agent's reported build version.
package version

import (
	"regexp"
	"runtime/debug"
)

// Fallback is reported when no build version information is available.
const Fallback = "0.0.0"

var semverPrefix = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Normalize extracts the longest MAJOR.MINOR.PATCH prefix found in raw,
// falling back to Fallback if none is present.
func Normalize(raw string) string {
	match := semverPrefix.FindString(raw)
	if match == "" {
		return Fallback
	}
	return match
}

// BuildInfoVersion reads the running binary's build info and normalizes
// its main module version into MAJOR.MINOR.PATCH form.
func BuildInfoVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Fallback
	}
	return Normalize(info.Main.Version)
}

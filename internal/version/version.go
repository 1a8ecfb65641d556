// Package version holds the build identity of the ember toolchain.
// Release builds stamp the variables below through -ldflags; a bare
// `go build` yields the -dev form.
package version

import "github.com/fatih/color"

var (
	// Version is the semantic version of the toolchain, rendered with
	// one color per component.
	Version = colored("0", "1", "0") + "-dev"

	// GitCommit is the hash of the commit the binary was built from.
	GitCommit = ""

	// GitMessage is the subject line of that commit.
	GitMessage = ""

	// BuildDate is the build timestamp in ISO-8601.
	BuildDate = ""
)

func colored(major, minor, patch string) string {
	return color.New(color.FgYellow, color.Bold).Sprint(major) + "." +
		color.New(color.FgGreen, color.Bold).Sprint(minor) + "." +
		color.New(color.FgBlue, color.Bold).Sprint(patch)
}

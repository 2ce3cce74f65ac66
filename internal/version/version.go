// Package version holds build metadata injected via ldflags.
package version

// Service is the name reported in logs and the health endpoint.
const Service = "taleforge"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns "taleforge <version> (<commit>, <date>)".
func String() string {
	return Service + " " + Version + " (" + Commit + ", " + Date + ")"
}

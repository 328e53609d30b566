// Package buildinfo carries the version stamp linked into the dnsbench binary.
package buildinfo

// Release builds overwrite these through
// -ldflags "-X github.com/eddygk/dns-bench-sub000/internal/buildinfo.Version=...";
// a plain go build keeps the development placeholders.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the full stamp for startup logs.
func String() string {
	return Version + " (" + GitCommit + " @ " + BuildTime + ")"
}

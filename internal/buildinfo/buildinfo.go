// Package buildinfo carries version metadata injected at build time:
//
//	go build -ldflags "-X stoplookup.onebusaway.org/internal/buildinfo.Version=v1.2.0 ..."
package buildinfo

import "fmt"

var (
	Version    = "dev"
	CommitHash = "unknown"
	Branch     = "unknown"
	BuildTime  = "unknown"
	Dirty      = "false"
)

// ShortHash returns the first seven characters of CommitHash.
func ShortHash() string {
	if len(CommitHash) >= 7 {
		return CommitHash[:7]
	}
	return "unknown"
}

// String formats the build metadata on one line.
func String() string {
	s := fmt.Sprintf("%s (%s, %s) built %s", Version, ShortHash(), Branch, BuildTime)
	if Dirty == "true" {
		s += " dirty"
	}
	return s
}

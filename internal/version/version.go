// Package version holds build identification, overridden at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0 \
//	  -X .../internal/version.GitSHA=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the release tag of this build.
	Version = "dev"
	// GitSHA is the commit this build was cut from.
	GitSHA = "unknown"
)

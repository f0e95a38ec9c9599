// Package version reports build information for the running binary.
//
// Values are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/meshkit/version.Version=1.0.0"
package version

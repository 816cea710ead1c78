// Package version exposes the build version of the service.
package version

// Version is the current release. Overridden at build time via
// -ldflags "-X github.com/verdantfund/verdant/internal/version.Version=...".
var Version = "dev"

// Package version exposes the build identity stamped at link time.
package version

// Version is overridden via -ldflags "-X .../internal/version.Version=x.y.z".
var Version = "0.1.0-dev"

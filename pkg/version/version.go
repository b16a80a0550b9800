package version

import "runtime/debug"

// Version is the current application version.
// This is a var (not const) so it can be overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/nodeview/pkg/version.Version=v0.2.0"
var Version = "v0.1.0"

// String returns Version, or the module version recorded by `go install`
// when the binary was built without ldflags.
func String() string {
	if Version != "" && Version != "v0.1.0" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

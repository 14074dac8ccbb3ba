//go:build !linux

package plugin

import "github.com/skywing/fdrlog/internal/ferr"

// loadDynamic has no implementation outside linux (Go's plugin package
// isn't portable); callers get a clear KindPlugin error instead of a
// build failure, so only statically registered plugins work here.
func loadDynamic(name string) (Factory, error) {
	return nil, ferr.Plugin("plugin", "loadDynamic", errDynamicUnsupported{name})
}

type errDynamicUnsupported struct{ name string }

func (e errDynamicUnsupported) Error() string {
	return "dynamic plugin loading unsupported on this platform: " + e.name
}

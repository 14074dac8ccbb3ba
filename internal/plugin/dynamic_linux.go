//go:build linux

package plugin

import (
	goplugin "plugin"

	"github.com/skywing/fdrlog/internal/ferr"
)

// loadDynamic opens name+".so" from the plugin search path and looks up
// a NewPlugin symbol of type func() Plugin. Go's plugin package only
// supports linux and darwin, and darwin support is unreliable across
// toolchain versions, so the dynamic path is linux-only; everywhere
// else Load falls back directly to an error via dynamic_other.go.
func loadDynamic(name string) (Factory, error) {
	p, err := goplugin.Open(pluginPath(name))
	if err != nil {
		return nil, ferr.Plugin("plugin", "loadDynamic", err)
	}
	sym, err := p.Lookup("NewPlugin")
	if err != nil {
		return nil, ferr.Plugin("plugin", "loadDynamic", err)
	}
	ctor, ok := sym.(func() Plugin)
	if !ok {
		return nil, ferr.Format("plugin", "loadDynamic", "NewPlugin has the wrong signature")
	}
	return ctor, nil
}

func pluginPath(name string) string {
	return "/usr/lib/fdrlog/plugins/" + name + ".so"
}

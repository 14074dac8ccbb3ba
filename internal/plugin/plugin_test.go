package plugin

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/registry"
)

type fakeSource struct{}

func (fakeSource) Plugin() string         { return "fake" }
func (fakeSource) Name() string           { return "main" }
func (fakeSource) Version() uint32        { return 1 }
func (fakeSource) Kind() datasource.Kind  { return datasource.KindInternal }
func (fakeSource) Period() time.Duration  { return 0 }

type fakePlugin struct {
	settings       string
	initErr        error
	shutdownCalled bool
	shutdownErr    error
}

func (p *fakePlugin) Init(settings string) (registry.Source, error) {
	p.settings = settings
	if p.initErr != nil {
		return nil, p.initErr
	}
	return fakeSource{}, nil
}

func (p *fakePlugin) Shutdown() error {
	p.shutdownCalled = true
	return p.shutdownErr
}

func TestLoadInitializesRegisteredPlugin(t *testing.T) {
	Register("fake-ok", func() Plugin { return &fakePlugin{} })

	p, src, err := Load("fake-ok", "rate=10hz")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "rate=10hz", p.(*fakePlugin).settings)
}

func TestLoadReturnsPluginErrorOnInitFailure(t *testing.T) {
	Register("fake-bad-init", func() Plugin { return &fakePlugin{initErr: errors.New("bad settings")} })

	_, _, err := Load("fake-bad-init", "")
	assert.Error(t, err)
}

func TestLoadFallsBackToDynamicForUnregisteredName(t *testing.T) {
	_, _, err := Load("never-registered-anywhere", "")
	assert.Error(t, err)
}

func TestShutdownAllCollectsErrorsWithoutStopping(t *testing.T) {
	ok := &fakePlugin{}
	bad := &fakePlugin{shutdownErr: errors.New("release failed")}

	errs := ShutdownAll([]Plugin{ok, bad})
	assert.Len(t, errs, 1)
	assert.True(t, ok.shutdownCalled)
	assert.True(t, bad.shutdownCalled)
}

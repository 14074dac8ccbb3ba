package registry

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
)

// fakeSource is a minimal registry.Source/Poller fixture shared by
// registry_test.go and scheduler_test.go.
type fakeSource struct {
	plugin  string
	name    string
	version uint32
	kind    datasource.Kind
	period  time.Duration

	polls    []func(now time.Time) ([]byte, error)
	pollHits int
}

func (f *fakeSource) Plugin() string         { return f.plugin }
func (f *fakeSource) Name() string           { return f.name }
func (f *fakeSource) Version() uint32        { return f.version }
func (f *fakeSource) Kind() datasource.Kind  { return f.kind }
func (f *fakeSource) Period() time.Duration  { return f.period }

func (f *fakeSource) Poll(now time.Time) ([]byte, error) {
	i := f.pollHits
	f.pollHits++
	if i < len(f.polls) {
		return f.polls[i](now)
	}
	return nil, nil
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := New()
	a := r.Register(&fakeSource{plugin: "gps", name: "main", version: 1})
	b := r.Register(&fakeSource{plugin: "imu", name: "main", version: 1})

	assert.Equal(t, container.FirstSourceID+2, a.ID)
	assert.Equal(t, container.FirstSourceID+3, b.ID)
}

// TestRegisterDisambiguatesReDescription covers the §3 mid-session
// re-description case: the same (plugin, name) registered again with a
// different version gets a "#<version>" suffixed name rather than
// reusing the prior binding.
func TestRegisterDisambiguatesReDescription(t *testing.T) {
	r := New()
	first := r.Register(&fakeSource{plugin: "telemetry", name: "gps", version: 1})
	second := r.Register(&fakeSource{plugin: "telemetry", name: "gps", version: 2})

	assert.Equal(t, "gps", first.Desc.Name)
	assert.Equal(t, "gps#2", second.Desc.Name)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegisterSameVersionDoesNotDisambiguate(t *testing.T) {
	r := New()
	first := r.Register(&fakeSource{plugin: "telemetry", name: "gps", version: 1})
	second := r.Register(&fakeSource{plugin: "telemetry", name: "gps", version: 1})

	assert.Equal(t, "gps", first.Desc.Name)
	assert.Equal(t, "gps", second.Desc.Name)
}

func TestWriteDescriptorRoundTrips(t *testing.T) {
	r := New()
	b := r.Register(&fakeSource{plugin: "gps", name: "main", version: 3})

	var buf bytes.Buffer
	require.NoError(t, WriteDescriptor(&buf, b))

	entry, err := container.ReadEntry(&buf)
	require.NoError(t, err)
	assert.Equal(t, container.IDSourceDesc, entry.ID)

	desc, err := container.DecodeSourceDesc(entry.Payload)
	require.NoError(t, err)
	assert.Equal(t, b.Desc, desc)
}

type fakePusher struct {
	pushed [][]byte
}

func (p *fakePusher) PushBytes(data []byte) error {
	p.pushed = append(p.pushed, data)
	return nil
}

func TestWritePayloadRejectsEmptyPayload(t *testing.T) {
	r := New()
	b := r.Register(&fakeSource{plugin: "gps", name: "main", version: 1})
	p := &fakePusher{}
	err := WritePayload(p, b, nil)
	assert.Error(t, err)
	assert.Empty(t, p.pushed)
}

func TestWritePayloadFramesUnderSourceID(t *testing.T) {
	r := New()
	b := r.Register(&fakeSource{plugin: "gps", name: "main", version: 1})
	p := &fakePusher{}
	require.NoError(t, WritePayload(p, b, []byte("hello")))
	require.Len(t, p.pushed, 1)

	entry, err := container.ReadEntry(bytes.NewReader(p.pushed[0]))
	require.NoError(t, err)
	assert.Equal(t, b.ID, entry.ID)
	assert.Equal(t, []byte("hello"), entry.Payload)
}

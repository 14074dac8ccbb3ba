package registry

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/ferr"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSchedulerSkipsSourceWithZeroPeriod(t *testing.T) {
	r := New()
	src := &fakeSource{plugin: "direct", name: "writer", version: 1, period: 0}
	r.Register(src)

	p := &fakePusher{}
	s := NewScheduler(r, p, discardLogger())
	s.Tick(time.Unix(0, 0))

	assert.Equal(t, 0, src.pollHits)
	assert.Empty(t, p.pushed)
}

func TestSchedulerPollsOncePerPeriod(t *testing.T) {
	r := New()
	src := &fakeSource{
		plugin: "sysmon", name: "host", version: 1, period: 100 * time.Millisecond,
		polls: []func(now time.Time) ([]byte, error){
			func(time.Time) ([]byte, error) { return []byte("a"), nil },
			func(time.Time) ([]byte, error) { return []byte("b"), nil },
		},
	}
	r.Register(src)
	p := &fakePusher{}
	s := NewScheduler(r, p, discardLogger())

	base := time.Unix(0, 0)
	s.Tick(base)
	s.Tick(base.Add(10 * time.Millisecond)) // before deadline, no poll
	s.Tick(base.Add(100 * time.Millisecond))

	assert.Equal(t, 2, src.pollHits)
	assert.Len(t, p.pushed, 2)
}

// TestSchedulerSkipsOnSourceKindError covers §7's skip classification:
// a ferr.KindSource error from Poll is a silent per-tick skip, not a
// logged warning, and produces no payload.
func TestSchedulerSkipsOnSourceKindError(t *testing.T) {
	r := New()
	src := &fakeSource{
		plugin: "sysmon", name: "host", version: 1, period: time.Millisecond,
		polls: []func(now time.Time) ([]byte, error){
			func(time.Time) ([]byte, error) { return nil, ferr.Source("sysmon", "Poll", "no metrics collected") },
		},
	}
	r.Register(src)
	p := &fakePusher{}
	s := NewScheduler(r, p, discardLogger())
	s.Tick(time.Unix(0, 0))

	assert.Equal(t, 1, src.pollHits)
	assert.Empty(t, p.pushed)
}

func TestSchedulerTicksEachRegisteredSourceIndependently(t *testing.T) {
	r := New()
	a := &fakeSource{plugin: "gps", name: "main", version: 1, period: time.Millisecond,
		polls: []func(now time.Time) ([]byte, error){func(time.Time) ([]byte, error) { return []byte("a"), nil }}}
	b := &fakeSource{plugin: "imu", name: "main", version: 1, period: time.Millisecond,
		polls: []func(now time.Time) ([]byte, error){func(time.Time) ([]byte, error) { return []byte("b"), nil }}}
	r.Register(a)
	r.Register(b)

	p := &fakePusher{}
	s := NewScheduler(r, p, discardLogger())
	require.NotPanics(t, func() { s.Tick(time.Unix(0, 0)) })
	assert.Len(t, p.pushed, 2)
}

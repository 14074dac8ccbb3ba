package recorder

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/backend"
	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/frontend"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type directSource struct {
	name   string
	period time.Duration
}

func (s directSource) Plugin() string         { return "test" }
func (s directSource) Name() string           { return s.name }
func (s directSource) Version() uint32        { return 1 }
func (s directSource) Kind() datasource.Kind  { return datasource.KindInternal }
func (s directSource) Period() time.Duration  { return s.period }

// TestRotationBySize covers the literal "Rotation by size" scenario:
// with a small size cap, writing a payload that pushes the active file
// past it triggers a rotation to log-1.bin (reason FILE_TOO_BIG) and
// opens a fresh log.bin. The payload is random so LZ4 cannot shrink the
// block below the cap.
func TestRotationBySize(t *testing.T) {
	dir := t.TempDir()
	lm := New(Config{
		OutputDir:      dir,
		FlushThreshold: 1,
		SizeCapBytes:   1024,
	}, discardLogger())
	require.NoError(t, lm.Start())

	src, err := lm.RegisterSource(directSource{name: "writer"})
	require.NoError(t, err)

	payload := make([]byte, 2048)
	_, err = rand.Read(payload)
	require.NoError(t, err)
	require.NoError(t, lm.WriteDirect(src, payload))
	require.NoError(t, lm.Flush())

	require.NoError(t, lm.Tick(time.Now()))

	rotated := filepath.Join(dir, "log-1.bin")
	if _, err := os.Stat(rotated); err != nil {
		t.Fatalf("expected rotated sibling at %s: %v", rotated, err)
	}
	if _, err := os.Stat(filepath.Join(dir, backend.ActiveFileName)); err != nil {
		t.Fatalf("expected a fresh active log.bin after rotation: %v", err)
	}

	require.NoError(t, lm.Stop())
}

// TestMaxLogCountEvictsOldestNonFlightFirst covers quota eviction
// driven off a rotation: once the rotated siblings reach MaxLogCount,
// eviction removes them, oldest non-flight first, until fewer than
// MaxLogCount remain.
func TestMaxLogCountEvictsOldestNonFlightFirst(t *testing.T) {
	dir := t.TempDir()
	lm := New(Config{
		OutputDir:      dir,
		FlushThreshold: 1,
		MaxLogCount:    1,
	}, discardLogger())
	require.NoError(t, lm.Start())

	require.NoError(t, lm.Rotate(frontend.CloseReasonRotate))

	siblings, err := backend.ListSiblings(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(siblings), 1)

	require.NoError(t, lm.Stop())
}

func TestUpdateQuotaAppliesLiveWithoutReopeningSession(t *testing.T) {
	dir := t.TempDir()
	lm := New(Config{OutputDir: dir, FlushThreshold: 1}, discardLogger())
	require.NoError(t, lm.Start())

	lm.UpdateQuota(512, 3, 0)
	sizeCap, maxCount, minFree := lm.quotaSnapshot()
	assert.Equal(t, int64(512), sizeCap)
	assert.Equal(t, 3, maxCount)
	assert.Equal(t, int64(0), minFree)

	require.NoError(t, lm.Stop())
}

func TestWriteDirectRejectsEmptyPayload(t *testing.T) {
	dir := t.TempDir()
	lm := New(Config{OutputDir: dir, FlushThreshold: 1}, discardLogger())
	require.NoError(t, lm.Start())

	src, err := lm.RegisterSource(directSource{name: "writer"})
	require.NoError(t, err)
	assert.Error(t, lm.WriteDirect(src, nil))

	require.NoError(t, lm.Stop())
}

func TestStartWritesSourceDescriptorsOnReopen(t *testing.T) {
	dir := t.TempDir()
	lm := New(Config{OutputDir: dir, FlushThreshold: 1}, discardLogger())
	require.NoError(t, lm.Start())
	_, err := lm.RegisterSource(directSource{name: "writer"})
	require.NoError(t, err)

	require.NoError(t, lm.Rotate(frontend.CloseReasonRotate))

	f, err := os.Open(filepath.Join(dir, backend.ActiveFileName))
	require.NoError(t, err)
	defer f.Close()

	_, err = container.ReadFileHeader(f)
	require.NoError(t, err)

	entry, err := container.ReadEntry(f)
	require.NoError(t, err)
	assert.Equal(t, container.IDSourceDesc, entry.ID)

	require.NoError(t, lm.Stop())
}

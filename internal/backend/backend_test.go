package backend_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/backend"
	"github.com/skywing/fdrlog/internal/frontend"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// writeRotatedSibling opens, closes and renames a minimal session so
// ListSiblings/EvictForSpace have a real container file (with a real
// "takeoff" header field) to inspect, named as rotation would name it.
func writeRotatedSibling(t *testing.T, dir string, idx int, takeoff string) string {
	t.Helper()
	fe := frontend.New(dir, discardLogger())
	require.NoError(t, fe.Open(idx, map[string]string{"takeoff": takeoff}))
	require.NoError(t, fe.Close(frontend.CloseReasonExiting))

	dst := filepath.Join(dir, fmt.Sprintf("log-%d.bin", idx))
	require.NoError(t, os.Rename(filepath.Join(dir, backend.ActiveFileName), dst))
	return dst
}

// TestEvictForSpaceOrdersNonFlightFirst covers P6: files with
// takeoff="0" are deleted strictly before any file with takeoff="1",
// and within a group, smaller idx goes first.
func TestEvictForSpaceOrdersNonFlightFirst(t *testing.T) {
	dir := t.TempDir()

	writeRotatedSibling(t, dir, 1, "1")
	writeRotatedSibling(t, dir, 2, "0")
	writeRotatedSibling(t, dir, 3, "0")
	writeRotatedSibling(t, dir, 4, "1")

	// maxLogCount 2 evicts until fewer than 2 siblings remain: both
	// non-flight files, then the lower-idx flight file.
	b := backend.New(dir, discardLogger())
	deleted, err := b.EvictForSpace(0, 2)
	require.NoError(t, err)
	require.Len(t, deleted, 3)

	assert.Equal(t, "0", deleted[0].Takeoff)
	assert.Equal(t, "0", deleted[1].Takeoff)
	assert.Equal(t, "1", deleted[2].Takeoff)
	assert.Contains(t, deleted[0].Path, "log-2.bin")
	assert.Contains(t, deleted[1].Path, "log-3.bin")
	assert.Contains(t, deleted[2].Path, "log-1.bin")

	remaining, err := backend.ListSiblings(dir)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	for _, s := range remaining {
		assert.Equal(t, "1", s.Takeoff)
	}
}

func TestMaxObservedIdx(t *testing.T) {
	dir := t.TempDir()
	writeRotatedSibling(t, dir, 3, "0")
	writeRotatedSibling(t, dir, 7, "0")

	max, err := backend.MaxObservedIdx(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, max)
}

func TestEvictForSpaceSkipsSiblingChangedSinceListing(t *testing.T) {
	dir := t.TempDir()
	path := writeRotatedSibling(t, dir, 1, "0")

	b := backend.New(dir, discardLogger())
	siblings, err := backend.ListSiblings(dir)
	require.NoError(t, err)
	require.Len(t, siblings, 1)

	// Simulate the file being rewritten after listing but before
	// eviction runs.
	require.NoError(t, os.WriteFile(path, []byte("still being written..."), 0o644))

	deleted, err := b.EvictForSpace(1, 0)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sibling to survive eviction, stat failed: %v", err)
	}
}

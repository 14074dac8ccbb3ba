package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/frontend"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func buildSessionFile(t *testing.T, header map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	fe := frontend.New(dir, discardLogger())
	require.NoError(t, fe.Open(1, header))
	require.NoError(t, fe.Close(frontend.CloseReasonExiting))
	return filepath.Join(dir, "log.bin")
}

func TestRunReturnsErrorOnUnreadableFile(t *testing.T) {
	got := run(filepath.Join(t.TempDir(), "missing.bin"), "", false)
	assert.Equal(t, exitError, got)
}

// TestRunReturnsNoFlightOnTakeoffZero covers the literal "GUTMA
// conversion no-takeoff" scenario at the CLI layer: onlyFlight plus a
// header recording no takeoff short-circuits before even calling the
// converter.
func TestRunReturnsNoFlightOnTakeoffZero(t *testing.T) {
	path := buildSessionFile(t, map[string]string{"takeoff": "0"})
	got := run(path, "", true)
	assert.Equal(t, exitNoFlight, got)
}

func TestRunReturnsUnsupportedVersionBelowMinimum(t *testing.T) {
	path := buildSessionFile(t, map[string]string{"firmware_version": "1.5.9"})
	got := run(path, "", false)
	assert.Equal(t, exitUnsupportedVersion, got)
}

func TestRunBypassesVersionGateForDevBuilds(t *testing.T) {
	path := buildSessionFile(t, map[string]string{"firmware_version": "dev", "takeoff": "1"})
	got := run(path, "", false)
	assert.Equal(t, exitOK, got)
}

func TestRunWritesOutputFile(t *testing.T) {
	path := buildSessionFile(t, map[string]string{"takeoff": "1", "firmware_version": "1.6.5"})
	outPath := filepath.Join(t.TempDir(), "out.json")

	got := run(path, outPath, false)
	assert.Equal(t, exitOK, got)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"gutma\"")
}

func TestFirmwareSupportedAcceptsAtOrAboveMinimum(t *testing.T) {
	assert.True(t, firmwareSupported("1.6.0"))
	assert.True(t, firmwareSupported("1.6.1"))
	assert.True(t, firmwareSupported("2.0.0"))
	assert.False(t, firmwareSupported("1.5.9"))
}

func TestFirmwareSupportedTreatsMalformedVersionAsSupported(t *testing.T) {
	assert.True(t, firmwareSupported("not-a-version"))
	assert.True(t, firmwareSupported(""))
}

func TestParseSemverRejectsWrongPartCount(t *testing.T) {
	_, ok := parseSemver("1.6")
	assert.False(t, ok)
}

func TestParseSemverParsesThreePartVersion(t *testing.T) {
	got, ok := parseSemver("1.6.0")
	require.True(t, ok)
	assert.Equal(t, [3]int{1, 6, 0}, got)
}

package datasource

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/container"
)

func altitudeMeta() container.TelemetryMeta {
	return container.TelemetryMeta{
		SampleRateHz: 10,
		SampleSize:   8,
		Descs: []container.VarDescRecord{
			{Name: "altitude", Type: container.TypeF64, Size: 8, Count: 1},
		},
	}
}

func f64Bytes(v float64) []byte {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(v))
	return raw
}

// TestTelemetrySingleRoundtrip covers the spec's literal single
// telemetry roundtrip scenario: one FLOAT64 item, three samples.
func TestTelemetrySingleRoundtrip(t *testing.T) {
	tl := NewTelemetry(altitudeMeta())

	samples := []struct {
		ts int64
		v  float64
	}{
		{100, 1.0},
		{200, 2.0},
		{300, 3.0},
	}
	for _, s := range samples {
		payload := EncodeSample(s.ts, f64Bytes(s.v))
		require.NoError(t, tl.AppendSample(payload))
	}

	require.Equal(t, 3, tl.SampleCount())
	for i, s := range samples {
		assert.Equal(t, s.ts, tl.Timestamps[i])
		v, err := tl.Value(i, 0)
		require.NoError(t, err)
		assert.Equal(t, s.v, v)
	}
}

// TestTelemetryMonotonicity covers P5: appending an out-of-order sample
// is reported as an error but the sample is still recorded.
func TestTelemetryMonotonicity(t *testing.T) {
	tl := NewTelemetry(altitudeMeta())

	require.NoError(t, tl.AppendSample(EncodeSample(200, f64Bytes(2.0))))
	err := tl.AppendSample(EncodeSample(100, f64Bytes(1.0)))
	assert.Error(t, err)
	assert.Equal(t, 2, tl.SampleCount())
}

func TestTelemetryRejectsSampleSizeMismatch(t *testing.T) {
	tl := NewTelemetry(altitudeMeta())
	err := tl.AppendSample(EncodeSample(100, []byte{1, 2, 3}))
	assert.Error(t, err)
}

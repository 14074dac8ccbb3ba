package datasource

import (
	"math"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
)

// Telemetry accumulates one telemetry source's description and its
// samples in arrival order, keyed for random access by (sampleIdx,
// itemIdx) per §4.8.
type Telemetry struct {
	Meta       container.TelemetryMeta
	descOffset []int // byte offset of each Meta.Descs[i] within one sample

	Timestamps []int64
	samples    [][]byte
}

// NewTelemetry builds an accumulator from a decoded metadata block,
// precomputing each item's byte offset within a sample record.
func NewTelemetry(meta container.TelemetryMeta) *Telemetry {
	t := &Telemetry{Meta: meta}
	off := 0
	t.descOffset = make([]int, len(meta.Descs))
	for i, d := range meta.Descs {
		t.descOffset[i] = off
		off += int(d.Size) * int(maxU32(d.Count, 1))
	}
	return t
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// EncodeSample renders one sample as an entry payload: timestamp_us
// followed by exactly Meta.SampleSize raw bytes.
func EncodeSample(ts int64, raw []byte) []byte {
	buf := make([]byte, 8+len(raw))
	putI64(buf, ts)
	copy(buf[8:], raw)
	return buf
}

// AppendSample decodes one sample entry payload and appends it. Per
// invariant P5, timestamps must be non-decreasing across appends;
// violations are reported but the sample is still kept so a reader can
// see the raw data that triggered the anomaly.
func (t *Telemetry) AppendSample(payload []byte) error {
	if len(payload) < 8 {
		return ferr.Format("datasource", "AppendSample", "truncated sample timestamp")
	}
	ts := getI64(payload[0:8])
	raw := payload[8:]
	if uint32(len(raw)) != t.Meta.SampleSize {
		return ferr.Format("datasource", "AppendSample", "sample size mismatch")
	}

	var err error
	if n := len(t.Timestamps); n > 0 && ts < t.Timestamps[n-1] {
		err = ferr.Format("datasource", "AppendSample", "non-monotonic sample timestamp")
	}

	t.Timestamps = append(t.Timestamps, ts)
	cp := make([]byte, len(raw))
	copy(cp, raw)
	t.samples = append(t.samples, cp)
	return err
}

// SampleCount returns the number of samples accumulated.
func (t *Telemetry) SampleCount() int { return len(t.samples) }

// Value decodes item itemIdx of sample sampleIdx as a float64,
// regardless of its wire type, for uniform numeric consumption by the
// merge and GUTMA stages. String and binary items return an error —
// callers needing their raw form should use RawValue.
func (t *Telemetry) Value(sampleIdx, itemIdx int) (float64, error) {
	raw, desc, err := t.item(sampleIdx, itemIdx)
	if err != nil {
		return 0, err
	}
	switch desc.Type {
	case container.TypeBool:
		if raw[0] != 0 {
			return 1, nil
		}
		return 0, nil
	case container.TypeU8:
		return float64(raw[0]), nil
	case container.TypeI8:
		return float64(int8(raw[0])), nil
	case container.TypeU16:
		return float64(leU16(raw)), nil
	case container.TypeI16:
		return float64(int16(leU16(raw))), nil
	case container.TypeU32:
		return float64(leU32(raw)), nil
	case container.TypeI32:
		return float64(int32(leU32(raw))), nil
	case container.TypeU64:
		return float64(leU64(raw)), nil
	case container.TypeI64:
		return float64(int64(leU64(raw))), nil
	case container.TypeF32:
		return float64(math.Float32frombits(leU32(raw))), nil
	case container.TypeF64:
		return math.Float64frombits(leU64(raw)), nil
	default:
		return 0, ferr.Format("datasource", "Value", "item is not numeric")
	}
}

// RawValue returns the undecoded bytes backing item itemIdx of sample
// sampleIdx, for string/binary items or callers that want the raw wire
// representation.
func (t *Telemetry) RawValue(sampleIdx, itemIdx int) ([]byte, error) {
	raw, _, err := t.item(sampleIdx, itemIdx)
	return raw, err
}

func (t *Telemetry) item(sampleIdx, itemIdx int) ([]byte, container.VarDescRecord, error) {
	if sampleIdx < 0 || sampleIdx >= len(t.samples) {
		return nil, container.VarDescRecord{}, ferr.Format("datasource", "item", "sample index out of range")
	}
	if itemIdx < 0 || itemIdx >= len(t.Meta.Descs) {
		return nil, container.VarDescRecord{}, ferr.Format("datasource", "item", "item index out of range")
	}
	desc := t.Meta.Descs[itemIdx]
	off := t.descOffset[itemIdx]
	sample := t.samples[sampleIdx]
	size := int(desc.Size) * int(maxU32(desc.Count, 1))
	if off+size > len(sample) {
		return nil, container.VarDescRecord{}, ferr.Format("datasource", "item", "item extends past sample")
	}
	return sample[off : off+size], desc, nil
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

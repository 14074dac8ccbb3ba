package frontend

import (
	"sort"
	"strings"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
)

// rewritableField names one of the container's 8 rewritable header
// fields (§3), the fixed byte width its value is reserved at, and the
// literal value it carries before anything ever rewrites it. The width
// never changes once a file is opened — a shorter value is right-padded
// with spaces, a longer one is rejected — so the u16 length prefix of
// its wire string stays constant and a rewrite never perturbs any
// later entry's offset.
var rewritableFields = []struct {
	Name     string
	Reserved int
	Default  string
}{
	{"date", 26, ""},
	{"md5", 32, strings.Repeat("f", 32)},
	{"reftime.monotonic", 46, "EVT:TIME;date='1970-01-01';time='T000000+0200'"},
	{"reftime.absolute", 20, strings.Repeat("0", 20)},
	{"takeoff", 1, "0"},
	{"gcs.name", 128, ""},
	{"gcs.type", 128, ""},
	{"control.flight.uuid", 33, ""},
}

func reservedWidth(name string) (int, bool) {
	for _, f := range rewritableFields {
		if f.Name == name {
			return f.Reserved, true
		}
	}
	return 0, false
}

func padField(value string, width int) (string, error) {
	if len(value) > width {
		return "", ferr.Format("frontend", "padField", "value exceeds reserved width for field")
	}
	padded := make([]byte, width)
	copy(padded, value)
	for i := len(value); i < width; i++ {
		padded[i] = ' '
	}
	return string(padded), nil
}

// encodeHeader renders the initial header record: a count:u32 followed
// by each rewritable field as a (key, value) string pair in
// rewritableFields order, values pre-padded to their reserved width,
// then every other key of initial, sorted by name, as a read-only pair
// whose value is written unpadded.
// A field absent from initial falls back to its spec-mandated default
// literal rather than an all-space value. It returns the payload and,
// for each rewritable field, the byte offset within that payload where
// its value bytes begin (right after the value string's u16 length prefix).
func encodeHeader(initial map[string]string) ([]byte, map[string]int, error) {
	var extras []string
	for k := range initial {
		if _, ok := reservedWidth(k); !ok {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)

	buf := make([]byte, 4)
	putU32(buf, uint32(len(rewritableFields)+len(extras)))

	offsets := make(map[string]int, len(rewritableFields))
	for _, f := range rewritableFields {
		value, ok := initial[f.Name]
		if !ok {
			value = f.Default
		}
		padded, err := padField(value, f.Reserved)
		if err != nil {
			return nil, nil, err
		}
		buf = container.AppendString(buf, f.Name)
		valueOffset := len(buf) + 2 // skip the value string's own u16 length prefix
		buf = container.AppendString(buf, padded)
		offsets[f.Name] = valueOffset
	}
	for _, k := range extras {
		buf = container.AppendString(buf, k)
		buf = container.AppendString(buf, initial[k])
	}
	return buf, offsets, nil
}

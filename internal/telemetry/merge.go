// Package telemetry merges multiple time-series telemetry sources onto
// one aligned timeline for GUTMA conversion and general inspection
// (§4.8, invariant P9): the highest-frequency source's own timestamps
// are the row set, and every other source contributes its nearest
// sample at each of those instants, ties broken toward the earlier one.
package telemetry

import (
	"sort"

	"github.com/skywing/fdrlog/internal/datasource"
)

// Column identifies one merged value: the owning source's full name and
// the item's declared name within that source.
type Column struct {
	Source string
	Item   string
}

// Row is one aligned instant: a master timestamp and, for every column
// that has a sample reachable from it, that sample's value. A column
// absent from Values had no source sample at all (not merely far away).
type Row struct {
	TimestampUS int64
	Values      map[Column]float64
}

// Merge aligns every telemetry source in sources (keyed by full source
// name) onto the highest-frequency (HF) source's own sample
// timestamps: one row per HF sample, never a union of every source's
// timestamps, so a low-frequency source with timestamps the HF source
// never hit contributes only its nearest-neighbor value, not an extra
// row of its own.
func Merge(sources map[string]*datasource.Telemetry) []Row {
	_, hf := highestFrequency(sources)
	if hf == nil {
		return nil
	}
	master := hf.Timestamps
	rows := make([]Row, len(master))

	for i, t := range master {
		rows[i] = Row{TimestampUS: t, Values: map[Column]float64{}}
	}

	for name, tl := range sources {
		if tl == nil || tl.SampleCount() == 0 {
			continue
		}
		for i, t := range master {
			idx := nearestIndex(tl.Timestamps, t)
			if idx < 0 {
				continue
			}
			for itemIdx, desc := range tl.Meta.Descs {
				v, err := tl.Value(idx, itemIdx)
				if err != nil {
					continue // string/binary items aren't part of the numeric merge
				}
				rows[i].Values[Column{Source: name, Item: desc.Name}] = v
			}
		}
	}

	return rows
}

// highestFrequency picks the source with the most samples, breaking a
// tie in favor of the lexicographically first name so the choice is
// deterministic.
func highestFrequency(sources map[string]*datasource.Telemetry) (string, *datasource.Telemetry) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var bestName string
	var best *datasource.Telemetry
	for _, name := range names {
		tl := sources[name]
		if tl == nil {
			continue
		}
		if best == nil || tl.SampleCount() > best.SampleCount() {
			best, bestName = tl, name
		}
	}
	return bestName, best
}

// nearestIndex finds the sample in the sorted ts whose timestamp is
// closest to target, breaking an exact tie toward the earlier sample.
// Returns -1 for an empty slice.
func nearestIndex(ts []int64, target int64) int {
	n := len(ts)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return ts[i] >= target })
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	before, after := ts[i-1], ts[i]
	if target-before <= after-target {
		return i - 1
	}
	return i
}

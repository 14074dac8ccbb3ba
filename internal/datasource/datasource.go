// Package datasource models the typed data a recorded source produces,
// independent of how its bytes were framed on disk: internal key/value
// records, timestamped events, telemetry samples, and opaque ULog
// passthrough blobs (§3's data model).
package datasource

// Kind distinguishes the five data shapes a registered source may emit.
type Kind int

const (
	KindInternal Kind = iota
	KindEvent
	KindTelemetry
	KindUlog
	// KindOpaque marks a source whose plugin tag the reader doesn't
	// recognize (§4.7: "unknown plugins yield a generic no-op source").
	// Its entries are skipped rather than decoded or rejected.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindEvent:
		return "event"
	case KindTelemetry:
		return "telemetry"
	case KindUlog:
		return "ulog"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Source is a fully decoded, named data source as seen by the reader
// side: it carries whichever one of the four payload shapes its Kind
// selects.
type Source struct {
	Kind Kind
	Name string // SourceDesc.FullName() — disambiguated on re-description

	Internal  []InternalRecord
	Events    []Event
	Telemetry *Telemetry
	Ulog      []UlogRecord
}

package gutma

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/reader"
)

func telemetrySource(name string, samples []sampleFixture) *datasource.Source {
	meta := container.TelemetryMeta{
		SampleSize: 8,
		Descs:      []container.VarDescRecord{{Name: "v", Type: container.TypeF64, Size: 8, Count: 1}},
	}
	tl := datasource.NewTelemetry(meta)
	for _, s := range samples {
		raw := make([]byte, 8)
		binary.LittleEndian.PutUint64(raw, math.Float64bits(s.v))
		payload := datasource.EncodeSample(s.ts, raw)
		_ = tl.AppendSample(payload)
	}
	return &datasource.Source{Kind: datasource.KindTelemetry, Name: name, Telemetry: tl}
}

type sampleFixture struct {
	ts int64
	v  float64
}

func eventSource(name string, events []datasource.Event) *datasource.Source {
	return &datasource.Source{Kind: datasource.KindEvent, Name: name, Events: events}
}

func flyingState(ts int64, state string) datasource.Event {
	return datasource.Event{TimestampUS: ts, Name: "FLYING_STATE", Params: []datasource.Param{{Name: "state", Value: state}}}
}

// TestConvertNoTakeoffOnlyFlightProducesNoItems covers the literal
// "GUTMA conversion no-takeoff" scenario: with onlyFlight requested but
// no takeoff/landing pair present, the document carries no items — the
// caller (cmd/fdr-convert) turns that into its NOFLIGHT exit code.
func TestConvertNoTakeoffOnlyFlightProducesNoItems(t *testing.T) {
	sess := &reader.Session{
		Header: map[string]string{"takeoff": "0"},
		Sources: []*datasource.Source{
			telemetrySource("telemetry-gps", []sampleFixture{{100, 1.0}, {200, 2.0}}),
		},
	}

	doc := Convert(sess, true)
	assert.Empty(t, doc.Items)
	assert.True(t, doc.Header.OnlyFlight)
}

func TestConvertFullSessionIncludesEverything(t *testing.T) {
	sess := &reader.Session{
		Header: map[string]string{"firmware_version": "1.6.2", "date": "20260101T000000+0000"},
		Sources: []*datasource.Source{
			telemetrySource("telemetry-gps", []sampleFixture{{100, 1.0}, {300, 3.0}}),
			eventSource("events", []datasource.Event{
				flyingState(100, "TAKINGOFF"),
				flyingState(300, "LANDING"),
			}),
		},
	}

	// Both rows and both events are 0 or 200µs after start, which rounds
	// to 0 s; the stable sort keeps the two telemetry rows ahead of the
	// events, so the takeoff event is the third item.
	doc := Convert(sess, false)
	require.Len(t, doc.Items, 4)
	assert.Equal(t, float64(0), doc.Items[2].Timestamp)
	assert.Equal(t, "flight", doc.Items[2].EventType)
	assert.Equal(t, "takeoff", doc.Items[2].EventInfo)
}

// TestConvertOnlyFlightDropsOutsideWindow covers the takeoff/landing
// window trim: samples and events before takeoff or after landing are
// excluded when onlyFlight is requested. Timestamps are whole seconds
// (in microseconds) so the rounded relative-seconds output reconstructs
// exactly back to the original absolute instant.
func TestConvertOnlyFlightDropsOutsideWindow(t *testing.T) {
	const (
		tsStart   = 50_000_000
		tsInside  = 150_000_000
		tsOutside = 500_000_000
		tsTakeoff = 100_000_000
		tsLanding = 400_000_000
	)
	sess := &reader.Session{
		Header: map[string]string{"takeoff": "1"},
		Sources: []*datasource.Source{
			telemetrySource("telemetry-gps", []sampleFixture{{tsStart, 0.0}, {tsInside, 1.0}, {tsOutside, 9.0}}),
			eventSource("events", []datasource.Event{
				flyingState(tsTakeoff, "TAKINGOFF"),
				flyingState(tsLanding, "LANDING"),
			}),
		},
	}

	doc := Convert(sess, true)
	for _, item := range doc.Items {
		abs := int64(item.Timestamp*1e6) + tsStart // start-of-log is the earliest timestamp
		assert.GreaterOrEqual(t, abs, int64(tsTakeoff))
		assert.LessOrEqual(t, abs, int64(tsLanding))
	}
	// The tsStart sample and tsOutside sample must both be excluded.
	assert.Len(t, doc.Items, 3) // tsInside sample, takeoff event, landing event
}

func TestTranslateEventMapsKnownTaxonomy(t *testing.T) {
	eventType, eventInfo := translateEvent(flyingState(0, "LANDED"))
	assert.Equal(t, "flight", eventType)
	assert.Equal(t, "landed", eventInfo)

	eventType, eventInfo = translateEvent(datasource.Event{Name: "RECORD", Params: []datasource.Param{{Name: "state", Value: "started"}}})
	assert.Equal(t, "media", eventType)
	assert.Equal(t, "record_started", eventInfo)

	eventType, eventInfo = translateEvent(datasource.Event{Name: "GIMBAL", Params: []datasource.Param{{Name: "alert", Value: "overheat"}}})
	assert.Equal(t, "alert", eventType)
	assert.Equal(t, "overheat", eventInfo)

	eventType, eventInfo = translateEvent(datasource.Event{Name: "CONTROLLER", Params: []datasource.Param{{Name: "name", Value: "Foo"}}})
	assert.Equal(t, "connection", eventType)
	assert.Equal(t, "connected_Foo", eventInfo)

	eventType, eventInfo = translateEvent(datasource.Event{Name: "GPS", Params: []datasource.Param{{Name: "fix", Value: "3D"}}})
	assert.Equal(t, "gps", eventType)
	assert.Equal(t, "fixed", eventInfo)
}

func TestTranslateEventPassesThroughUnknownTaxonomy(t *testing.T) {
	eventType, eventInfo := translateEvent(datasource.Event{Name: "CUSTOM_MARKER"})
	assert.Equal(t, "other", eventType)
	assert.Equal(t, "custom_marker", eventInfo)
}

// TestTranslateSourceEventsCoalescesConsecutiveDuplicates covers §4.9's
// "consecutively duplicate event symbols are coalesced": two GPS
// "fixed" events in a row collapse to one entry.
func TestTranslateSourceEventsCoalescesConsecutiveDuplicates(t *testing.T) {
	events := []datasource.Event{
		{TimestampUS: 100, Name: "GPS", Params: []datasource.Param{{Name: "fix", Value: "3D"}}},
		{TimestampUS: 200, Name: "GPS", Params: []datasource.Param{{Name: "fix", Value: "2D"}}},
		{TimestampUS: 300, Name: "GPS", Params: []datasource.Param{{Name: "fix", Value: "0"}}},
	}
	translated := translateSourceEvents(events)
	require.Len(t, translated, 2)
	assert.Equal(t, "fixed", translated[0].eventInfo)
	assert.Equal(t, int64(100), translated[0].timestampUS)
	assert.Equal(t, "unfixed", translated[1].eventInfo)
}

func TestBuildHeaderMapsDroneAndBatteryProperties(t *testing.T) {
	sess := &reader.Session{
		Header: map[string]string{
			"control.flight.uuid": "abc-123",
			"drone.model":         "anafi",
			"battery.serial":      "xyz",
		},
	}
	h := buildHeader(sess, 0, false)
	assert.Equal(t, "abc-123", h.UUID)
	assert.Equal(t, "anafi", h.Drone["model"])
	assert.Equal(t, "xyz", h.Battery["serial"])
}

// Package gutma converts one recorded session into a GUTMA-style JSON
// flight exchange document: a single time-ordered stream mixing sparse
// merged telemetry rows and taxonomy-translated events, relative to a
// start-of-log timestamp (§4.9).
package gutma

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/reader"
	"github.com/skywing/fdrlog/internal/telemetry"
)

// Document is the top-level GUTMA exchange document.
type Document struct {
	Header Header `json:"header"`
	Items  []Item `json:"gutma"`
}

// Header carries the session's provenance, taken from the container's
// rewritable header fields plus any drone/battery properties an
// internal source recorded alongside them.
type Header struct {
	Version         string            `json:"version"`
	FirmwareVersion string            `json:"firmware_version"`
	UUID            string            `json:"uuid"`
	Date            string            `json:"date"`
	OnlyFlight      bool              `json:"only_flight"`
	AbsoluteStart   string            `json:"absolute_start,omitempty"`
	Drone           map[string]string `json:"drone,omitempty"`
	Battery         map[string]string `json:"battery,omitempty"`
}

// Item is one entry on the merged timeline: either a sparse telemetry
// row (Telemetry populated, EventType empty) or a translated event
// (EventType/EventInfo populated, Telemetry empty). Timestamp is
// relative to the document's start-of-log instant, in seconds rounded
// to three decimals.
type Item struct {
	Timestamp float64            `json:"timestamp"`
	EventType string             `json:"event_type,omitempty"`
	EventInfo string             `json:"event_info,omitempty"`
	Telemetry map[string]float64 `json:"telemetry,omitempty"`
}

// alertComponents are upper-cased event names whose events are surfaced as
// generic alerts rather than a more specific category (§4.9).
var alertComponents = map[string]bool{
	"AUTOPILOT":    true,
	"COLIBRY":      true,
	"ESC":          true,
	"GIMBAL":       true,
	"SMARTBATTERY": true,
	"STORAGE":      true,
	"VISION":       true,
}

// translateEvent maps one recorded event to its GUTMA (event_type,
// event_info) symbol pair, per §4.9's parameter-derived taxonomy.
// Events outside the named taxonomy still produce a symbol — nothing
// is silently dropped — under the catch-all "other" category.
func translateEvent(e datasource.Event) (eventType, eventInfo string) {
	name := strings.ToUpper(e.Name)

	switch {
	case name == "FLYING_STATE":
		return "flight", flyingStateInfo(e)

	case name == "RECORD" || name == "PHOTO":
		info := strings.ToLower(name)
		if state, ok := e.ParamValue("state"); ok && state != "" {
			info += "_" + strings.ToLower(state)
		}
		return "media", info

	case alertComponents[name]:
		info := strings.ToLower(name)
		if sev, ok := e.ParamValue("alert"); ok && sev != "" {
			info = strings.ToLower(sev)
		}
		return "alert", info

	case name == "CONTROLLER":
		if n, ok := e.ParamValue("name"); ok && n != "" {
			return "connection", "connected_" + n
		}
		if state, ok := e.ParamValue("state"); ok && state != "" {
			return "connection", strings.ToLower(state)
		}
		return "connection", "controller"

	case name == "GPS":
		if fix, ok := e.ParamValue("fix"); ok {
			if fix == "" || fix == "0" || strings.EqualFold(fix, "none") {
				return "gps", "unfixed"
			}
			return "gps", "fixed"
		}
		return "gps", "unfixed"

	default:
		return "other", strings.ToLower(e.Name)
	}
}

// flyingStateInfo resolves flying_state's "state" parameter to one of
// takeoff/landing/landed/enroute/emergency.
func flyingStateInfo(e datasource.Event) string {
	state, _ := e.ParamValue("state")
	switch strings.ToUpper(state) {
	case "LANDED":
		return "landed"
	case "TAKINGOFF", "TAKEOFF", "USERTAKEOFF":
		return "takeoff"
	case "LANDING":
		return "landing"
	case "EMERGENCY", "EMERGENCY_LANDING":
		return "emergency"
	default:
		return "enroute"
	}
}

// translatedEvent is one event after taxonomy translation, still at
// its absolute (not start-of-log-relative) timestamp.
type translatedEvent struct {
	timestampUS int64
	eventType   string
	eventInfo   string
}

// translateSourceEvents translates one source's events in their
// recorded (chronological) order, coalescing consecutive duplicate
// symbols into a single entry (§4.9).
func translateSourceEvents(events []datasource.Event) []translatedEvent {
	out := make([]translatedEvent, 0, len(events))
	for _, e := range events {
		eventType, eventInfo := translateEvent(e)
		if n := len(out); n > 0 && out[n-1].eventType == eventType && out[n-1].eventInfo == eventInfo {
			continue
		}
		out = append(out, translatedEvent{timestampUS: e.TimestampUS, eventType: eventType, eventInfo: eventInfo})
	}
	return out
}

// Convert builds a Document from a fully decoded session. When
// onlyFlight is true, telemetry rows and events outside the
// takeoff/landing window are dropped; if no such window can be found,
// the returned Document has no items (the caller, cmd/fdr-convert,
// turns that into its NOFLIGHT exit code).
func Convert(sess *reader.Session, onlyFlight bool) *Document {
	telemetrySources := map[string]*datasource.Telemetry{}
	var eventSources []*datasource.Source
	for _, s := range sess.Sources {
		switch s.Kind {
		case datasource.KindTelemetry:
			if s.Telemetry != nil {
				telemetrySources[s.Name] = s.Telemetry
			}
		case datasource.KindEvent:
			eventSources = append(eventSources, s)
		}
	}

	translated := make([][]translatedEvent, len(eventSources))
	for i, src := range eventSources {
		translated[i] = translateSourceEvents(src.Events)
	}

	start := startOfLog(telemetrySources, translated)
	flightStart, flightEnd, haveFlight := flightWindow(translated)

	var items []Item
	for _, row := range telemetry.Merge(telemetrySources) {
		if onlyFlight {
			if !haveFlight {
				continue
			}
			if row.TimestampUS < flightStart || row.TimestampUS > flightEnd {
				continue
			}
		}
		values := make(map[string]float64, len(row.Values))
		for col, v := range row.Values {
			values[col.Source+"."+col.Item] = v
		}
		items = append(items, Item{Timestamp: relativeSeconds(row.TimestampUS, start), Telemetry: values})
	}

	for _, evs := range translated {
		for _, e := range evs {
			if onlyFlight {
				if !haveFlight || e.timestampUS < flightStart || e.timestampUS > flightEnd {
					continue
				}
			}
			items = append(items, Item{
				Timestamp: relativeSeconds(e.timestampUS, start),
				EventType: e.eventType,
				EventInfo: e.eventInfo,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp < items[j].Timestamp })

	return &Document{
		Header: buildHeader(sess, start, onlyFlight),
		Items:  items,
	}
}

// relativeSeconds converts an absolute microsecond timestamp to
// seconds relative to start, rounded to three decimals (§4.9).
func relativeSeconds(tsUS, startUS int64) float64 {
	seconds := float64(tsUS-startUS) / 1e6
	return math.Round(seconds*1000) / 1000
}

// startOfLog resolves the instant every item's timestamp is made
// relative to: the earlier of the first telemetry sample and the first
// translated event, per §4.9's literal formula
// min(firstTelemetryTs, firstEventTs).
func startOfLog(telemetrySources map[string]*datasource.Telemetry, translated [][]translatedEvent) int64 {
	var (
		min   int64
		found bool
	)
	consider := func(t int64) {
		if !found || t < min {
			min, found = t, true
		}
	}
	for _, tl := range telemetrySources {
		if tl != nil && len(tl.Timestamps) > 0 {
			consider(tl.Timestamps[0])
		}
	}
	for _, evs := range translated {
		for _, e := range evs {
			consider(e.timestampUS)
		}
	}
	return min
}

// flightWindow finds the [takeoff, landing] interval from the
// translated event streams; Convert keeps items at both ends. The first "flight"/"takeoff" symbol pairs
// with the next "flight"/"landing" symbol after it; absent either,
// haveFlight is false.
func flightWindow(translated [][]translatedEvent) (start, end int64, haveFlight bool) {
	var takeoffAt, landAt int64
	var haveTakeoff, haveLand bool

	for _, evs := range translated {
		for _, e := range evs {
			if e.eventType != "flight" {
				continue
			}
			switch {
			case e.eventInfo == "takeoff" && !haveTakeoff:
				takeoffAt, haveTakeoff = e.timestampUS, true
			case e.eventInfo == "landing" && haveTakeoff && !haveLand:
				landAt, haveLand = e.timestampUS, true
			}
		}
	}

	if haveTakeoff && haveLand {
		return takeoffAt, landAt, true
	}
	return 0, 0, false
}

// buildHeader assembles the document header from the session's
// rewritable fields and any "drone."/"battery."-prefixed internal
// records (§4.9's "maps known drone/battery properties into a small
// JSON object").
func buildHeader(sess *reader.Session, start int64, onlyFlight bool) Header {
	h := Header{
		Version:         "1.0",
		FirmwareVersion: sess.Header["firmware_version"],
		UUID:            sess.Header["control.flight.uuid"],
		Date:            sess.Header["date"],
		OnlyFlight:      onlyFlight,
	}

	for key, value := range sess.Header {
		switch {
		case strings.HasPrefix(key, "drone."):
			if h.Drone == nil {
				h.Drone = map[string]string{}
			}
			h.Drone[strings.TrimPrefix(key, "drone.")] = value
		case strings.HasPrefix(key, "battery."):
			if h.Battery == nil {
				h.Battery = map[string]string{}
			}
			h.Battery[strings.TrimPrefix(key, "battery.")] = value
		}
	}

	if at, ok := absoluteTime(sess.Header["reftime.monotonic"], sess.Header["reftime.absolute"], start); ok {
		h.AbsoluteStart = at.UTC().Format(time.RFC3339)
	}
	return h
}

// absoluteTime reconstructs the wall-clock instant corresponding to
// the monotonic timestamp tsUS, per §4.9: epoch + (ts - absTs)/1e6.
// reftime.monotonic carries the epoch anchor as an "EVT:TIME"-grammar
// string (date/time parameters); reftime.absolute carries absTs as a
// zero-padded microsecond integer. Either field left at its untouched
// default still parses — epoch 1970-01-01T00:00:00+02:00, absTs 0 — so
// this is best-effort rather than an error when updateRefTime was
// never called.
func absoluteTime(monotonic, absolute string, tsUS int64) (time.Time, bool) {
	epoch, ok := parseRefTimeEpoch(monotonic)
	if !ok {
		return time.Time{}, false
	}
	absTs, err := strconv.ParseInt(strings.TrimSpace(absolute), 10, 64)
	if err != nil {
		absTs = 0
	}
	return epoch.Add(time.Duration(tsUS-absTs) * time.Microsecond), true
}

// parseRefTimeEpoch parses reftime.monotonic's "TIME;date='...';time='...'"
// body (with or without its "EVT:" prefix) into an absolute time.Time.
func parseRefTimeEpoch(monotonic string) (time.Time, bool) {
	body := monotonic
	body = strings.TrimPrefix(body, "EVT:")
	body = strings.TrimPrefix(body, "EVTS:")
	body = strings.TrimPrefix(body, "TIME;")
	body = strings.TrimPrefix(body, "TIME")

	var date, clock string
	for _, seg := range strings.Split(strings.TrimPrefix(body, ";"), ";") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "'")
		switch key {
		case "date":
			date = value
		case "time":
			clock = value
		}
	}
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02T150405Z0700", date+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

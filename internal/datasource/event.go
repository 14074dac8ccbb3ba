package datasource

import (
	"strings"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
)

// Param is one key/value pair attached to an event, in the order it
// appeared on the wire.
type Param struct {
	Name  string
	Value string
}

// Event is one timestamped, named occurrence carrying an ordered list
// of parameters — rotations, mode changes, failsafe triggers, and
// whatever else a plugin wants to narrate outside the telemetry
// stream.
type Event struct {
	TimestampUS int64
	Name        string
	Params      []Param
}

// ParamValue returns the value of the first parameter named key
// (case-insensitive), and whether it was present.
func (e Event) ParamValue(key string) (string, bool) {
	for _, p := range e.Params {
		if strings.EqualFold(p.Name, key) {
			return p.Value, true
		}
	}
	return "", false
}

// EncodeEvent renders a single event as an entry payload: timestamp_us
// followed by an "EVT:NAME;key=value;key=value;..." string. A value
// that would otherwise be ambiguous (contains ';', '=', or is empty)
// is wrapped in single quotes.
func EncodeEvent(e Event) []byte {
	buf := make([]byte, 8)
	putI64(buf, e.TimestampUS)

	var b strings.Builder
	b.WriteString("EVT:")
	b.WriteString(e.Name)
	for _, p := range e.Params {
		b.WriteByte(';')
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(quoteParamValue(p.Value))
	}
	return container.AppendString(buf, b.String())
}

func quoteParamValue(v string) string {
	if v == "" || strings.ContainsAny(v, ";='") {
		return "'" + strings.ReplaceAll(v, "'", "") + "'"
	}
	return v
}

// DecodeEvents parses an "event" source entry payload: timestamp_us
// followed by a "NAME;key=value;key=value;..." string under either the
// "EVT:" or "EVTS:" prefix — both share identical grammar.
func DecodeEvents(payload []byte) ([]Event, error) {
	if len(payload) < 8 {
		return nil, ferr.Format("datasource", "DecodeEvents", "truncated event timestamp")
	}
	ts := getI64(payload[0:8])
	text, _, err := container.DecodeString(payload[8:])
	if err != nil {
		return nil, err
	}

	body, ok := trimEventPrefix(text)
	if !ok {
		return nil, ferr.Format("datasource", "DecodeEvents", "unrecognized event text: "+text)
	}

	name, params := parseEventBody(body)
	return []Event{{TimestampUS: ts, Name: name, Params: params}}, nil
}

func trimEventPrefix(text string) (string, bool) {
	if rest, ok := strings.CutPrefix(text, "EVTS:"); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(text, "EVT:"); ok {
		return rest, true
	}
	return "", false
}

// parseEventBody splits "NAME;key=value;key=value;..." into the event
// name and its ordered parameters, stripping single quotes from a
// quoted value.
func parseEventBody(body string) (string, []Param) {
	segs := strings.Split(body, ";")
	name := segs[0]
	if len(segs) == 1 {
		return name, nil
	}
	params := make([]Param, 0, len(segs)-1)
	for _, seg := range segs[1:] {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "'")
		params = append(params, Param{Name: key, Value: value})
	}
	return name, params
}

package datasource

import "github.com/skywing/fdrlog/internal/ferr"

// UlogRecord is one opaque chunk from a ULog-format source: the core
// neither parses nor reinterprets its bytes, only frames and timestamps
// them, since ULog already defines its own internal record structure.
type UlogRecord struct {
	TimestampUS int64
	Raw         []byte
}

// EncodeUlogRecord renders one chunk as an entry payload: timestamp_us
// followed by the raw ULog bytes, verbatim.
func EncodeUlogRecord(r UlogRecord) []byte {
	buf := make([]byte, 8+len(r.Raw))
	putI64(buf, r.TimestampUS)
	copy(buf[8:], r.Raw)
	return buf
}

// DecodeUlogRecord reverses EncodeUlogRecord.
func DecodeUlogRecord(payload []byte) (UlogRecord, error) {
	if len(payload) < 8 {
		return UlogRecord{}, ferr.Format("datasource", "DecodeUlogRecord", "truncated timestamp")
	}
	raw := make([]byte, len(payload)-8)
	copy(raw, payload[8:])
	return UlogRecord{TimestampUS: getI64(payload[0:8]), Raw: raw}, nil
}

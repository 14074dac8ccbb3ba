package datasource

import (
	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
)

// InternalRecord is one key/value fact emitted by an "internal" source —
// firmware version strings, build identifiers, board metadata — that
// isn't a rewritable header field but still belongs in the session's
// provenance trail. Wire form: count:u32, then count (key,value) string
// pairs.
type InternalRecord struct {
	Key   string
	Value string
}

// EncodeInternalRecords renders a batch of key/value facts to one
// entry payload.
func EncodeInternalRecords(recs []InternalRecord) []byte {
	buf := make([]byte, 0, 4+len(recs)*16)
	var countBuf [4]byte
	putU32(countBuf[:], uint32(len(recs)))
	buf = append(buf, countBuf[:]...)
	for _, r := range recs {
		buf = container.AppendString(buf, r.Key)
		buf = container.AppendString(buf, r.Value)
	}
	return buf
}

// DecodeInternalRecords parses an "internal" source entry payload.
func DecodeInternalRecords(payload []byte) ([]InternalRecord, error) {
	if len(payload) < 4 {
		return nil, ferr.Format("datasource", "DecodeInternalRecords", "truncated record count")
	}
	count := getU32(payload[0:4])
	off := 4
	recs := make([]InternalRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		key, n, err := container.DecodeString(payload[off:])
		if err != nil {
			return nil, err
		}
		off += n
		val, n, err := container.DecodeString(payload[off:])
		if err != nil {
			return nil, err
		}
		off += n
		recs = append(recs, InternalRecord{Key: key, Value: val})
	}
	return recs, nil
}

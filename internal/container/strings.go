package container

import (
	"encoding/binary"
	"fmt"

	"github.com/skywing/fdrlog/internal/ferr"
)

// String fields are encoded as u16-prefixed, NUL-terminated byte runs.
// The u16 length includes the terminating NUL; empty strings (length 0,
// or a buffer whose only byte isn't NUL) are rejected.

// AppendString appends a length-prefixed NUL-terminated string to buf.
func AppendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)+1))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	buf = append(buf, 0)
	return buf
}

// DecodeString reads one length-prefixed NUL-terminated string from buf,
// returning the decoded string and the number of bytes consumed.
func DecodeString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, ferr.Format("container", "DecodeString", "truncated string length")
	}
	l := int(binary.LittleEndian.Uint16(buf[0:2]))
	if l == 0 {
		return "", 0, ferr.Format("container", "DecodeString", "empty string rejected")
	}
	if len(buf) < 2+l {
		return "", 0, ferr.Format("container", "DecodeString", "truncated string body")
	}
	body := buf[2 : 2+l]
	if body[l-1] != 0 {
		return "", 0, ferr.Format("container", "DecodeString", "string not NUL-terminated")
	}
	return string(body[:l-1]), 2 + l, nil
}

// AppendU32Field appends a u32 length-prefixed byte field (used by
// AES_DESC).
func AppendU32Field(buf []byte, field []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(field)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, field...)
	return buf
}

// DecodeU32Field reads one u32 length-prefixed byte field.
func DecodeU32Field(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, ferr.Format("container", "DecodeU32Field", "truncated field length")
	}
	l := binary.LittleEndian.Uint32(buf[0:4])
	if l > MaxEntryLen {
		return nil, 0, ferr.Format("container", "DecodeU32Field", fmt.Sprintf("field length %d exceeds max", l))
	}
	if uint32(len(buf)-4) < l {
		return nil, 0, ferr.Format("container", "DecodeU32Field", "truncated field body")
	}
	return buf[4 : 4+l], 4 + int(l), nil
}

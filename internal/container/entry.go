package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/skywing/fdrlog/internal/ferr"
)

// Entry is one framed element of the byte stream: id:u32, len:u32,
// bytes[len]. No padding between entries.
type Entry struct {
	ID      uint32
	Payload []byte
}

// WriteFileHeader writes the 8-byte file header.
func WriteFileHeader(w io.Writer, h FileHeader) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	_, err := w.Write(buf[:])
	return err
}

// ReadFileHeader reads and validates the 8-byte file header.
func ReadFileHeader(r io.Reader) (FileHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FileHeader{}, ferr.Format("container", "ReadFileHeader", "truncated file header").Wrap(err)
	}
	h := FileHeader{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: binary.LittleEndian.Uint32(buf[4:8]),
	}
	if !h.Valid() {
		return h, ferr.Format("container", "ReadFileHeader",
			fmt.Sprintf("bad magic/version: magic=%#x version=%d", h.Magic, h.Version))
	}
	return h, nil
}

// AppendEntry appends id:u32, len:u32, payload to buf and returns the
// extended slice. Used by the buffer pipeline to build writev-style
// vectors without per-entry syscalls.
func AppendEntry(buf []byte, id uint32, payload []byte) []byte {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], id)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, payload...)
	return buf
}

// WriteEntry writes one framed entry to w.
func WriteEntry(w io.Writer, id uint32, payload []byte) error {
	if len(payload) > MaxEntryLen {
		return ferr.Format("container", "WriteEntry", fmt.Sprintf("payload too large: %d bytes", len(payload)))
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], id)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return ferr.IO("container", "WriteEntry", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return ferr.IO("container", "WriteEntry", err)
	}
	return nil
}

// ReadEntry reads one framed entry from r. io.EOF is returned unwrapped
// when no entry header is available (clean end of stream); any other
// truncation is a format error.
func ReadEntry(r io.Reader) (Entry, error) {
	var hdr [8]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return Entry{}, io.EOF
		}
		return Entry{}, ferr.Format("container", "ReadEntry", "truncated entry header").Wrap(err)
	}
	id := binary.LittleEndian.Uint32(hdr[0:4])
	length := binary.LittleEndian.Uint32(hdr[4:8])
	if length > MaxEntryLen {
		return Entry{}, ferr.Format("container", "ReadEntry", fmt.Sprintf("entry %d length %d exceeds max", id, length))
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Entry{}, ferr.Format("container", "ReadEntry", "truncated entry payload").Wrap(err)
		}
	}
	return Entry{ID: id, Payload: payload}, nil
}

package container

import (
	"math"
)

// ValueType enumerates telemetry item wire types (§3).
type ValueType uint32

const (
	TypeBool ValueType = iota
	TypeU8
	TypeI8
	TypeU16
	TypeI16
	TypeU32
	TypeI32
	TypeU64
	TypeI64
	TypeF32
	TypeF64
	TypeString
	TypeBinary
)

// VarDescRecord is one telemetry item description: six u32 fields
// (reclen, namelen, type, size, count, flags) followed by the
// NUL-terminated name padded to reclen (§6.1).
type VarDescRecord struct {
	Type  ValueType
	Size  uint32 // bytes per element
	Count uint32 // >1 means array
	Flags uint32
	Name  string
}

const varDescFixedLen = 6 * 4 // six u32 fields preceding the padded name

// reclen is the total record length: the six fixed u32 fields plus the
// name (including its terminating NUL) padded to a 4-byte boundary.
func (d VarDescRecord) reclen() uint32 {
	nameLen := uint32(len(d.Name) + 1)
	padded := (nameLen + 3) &^ 3
	return uint32(varDescFixedLen) + padded
}

// TelemetryMeta is the full metadata block for one telemetry section:
// the sample-count hint, bytes per sample, declared sample rate, and the
// description array. The 0x214D4C54 ("TLM!") magic marks the block.
type TelemetryMeta struct {
	SampleCountHint uint32
	SampleSize      uint32
	SampleRateHz    float32
	Descs           []VarDescRecord
}

// Encode renders a TelemetryMeta to its wire form.
func (m TelemetryMeta) Encode() []byte {
	buf := make([]byte, 0, 20+len(m.Descs)*32)
	buf = appendU32(buf, TelemetryMagic)
	buf = appendU32(buf, m.SampleCountHint)
	buf = appendU32(buf, m.SampleSize)
	buf = appendU32(buf, math.Float32bits(m.SampleRateHz))
	buf = appendU32(buf, uint32(len(m.Descs)))
	for _, d := range m.Descs {
		reclen := d.reclen()
		namelen := uint32(len(d.Name))
		buf = appendU32(buf, reclen)
		buf = appendU32(buf, namelen)
		buf = appendU32(buf, uint32(d.Type))
		buf = appendU32(buf, d.Size)
		buf = appendU32(buf, d.Count)
		buf = appendU32(buf, d.Flags)
		nameField := make([]byte, reclen-varDescFixedLen)
		copy(nameField, d.Name)
		buf = append(buf, nameField...)
	}
	return buf
}

// DecodeTelemetryMeta parses a TelemetryMeta payload. sampleSize and the
// metadataSize (len(payload)) are both bounded by MaxEntryLen per §4.1's
// failure modes.
func DecodeTelemetryMeta(payload []byte) (TelemetryMeta, error) {
	var m TelemetryMeta
	if len(payload) > MaxEntryLen {
		return m, formatErr("DecodeTelemetryMeta", "metadataSize exceeds max")
	}
	if len(payload) < 20 {
		return m, formatErr("DecodeTelemetryMeta", "truncated telemetry meta header")
	}
	magic := readU32(payload[0:4])
	if magic != TelemetryMagic {
		return m, formatErr("DecodeTelemetryMeta", "bad telemetry magic")
	}
	m.SampleCountHint = readU32(payload[4:8])
	m.SampleSize = readU32(payload[8:12])
	if m.SampleSize > MaxEntryLen {
		return m, formatErr("DecodeTelemetryMeta", "sampleSize exceeds max")
	}
	m.SampleRateHz = math.Float32frombits(readU32(payload[12:16]))
	count := readU32(payload[16:20])

	off := 20
	for i := uint32(0); i < count; i++ {
		if len(payload)-off < varDescFixedLen {
			return m, formatErr("DecodeTelemetryMeta", "truncated var desc")
		}
		reclen := readU32(payload[off : off+4])
		namelen := readU32(payload[off+4 : off+8])
		typ := ValueType(readU32(payload[off+8 : off+12]))
		size := readU32(payload[off+12 : off+16])
		cnt := readU32(payload[off+16 : off+20])
		flags := readU32(payload[off+20 : off+24])

		nameFieldLen := int(reclen) - varDescFixedLen
		if nameFieldLen < 0 || len(payload)-(off+varDescFixedLen) < nameFieldLen {
			return m, formatErr("DecodeTelemetryMeta", "truncated var desc name")
		}
		nameField := payload[off+varDescFixedLen : off+varDescFixedLen+nameFieldLen]
		if int(namelen) > len(nameField) {
			return m, formatErr("DecodeTelemetryMeta", "namelen exceeds reclen")
		}
		name := string(nameField[:namelen])

		m.Descs = append(m.Descs, VarDescRecord{Type: typ, Size: size, Count: cnt, Flags: flags, Name: name})
		off += int(reclen)
	}

	return m, nil
}

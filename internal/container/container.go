// Package container implements the bit-exact binary framing shared by the
// recorder (write side) and the extractor (read side): the file header,
// entry framing, source-description records, and the AES_DESC record.
// LZ4 frame encode/decode both live in internal/buffer (internal/reader
// calls its decoder), since the frame itself carries no
// container-specific header beyond the entry id.
package container

// Reserved entry ids. Every other id must be preceded by a SOURCE_DESC
// entry declaring it.
const (
	IDSourceDesc uint32 = 0
	IDLZ4        uint32 = 1
	IDAESDesc    uint32 = 2
	IDAES        uint32 = 3

	// FirstSourceID is the first id handed out to a registered source.
	// 0-255 are reserved for framing kinds.
	FirstSourceID uint32 = 256
)

// FileMagic is the 4-byte magic ("LOG!" little-endian) at byte 0 of every
// container file.
const FileMagic uint32 = 0x21474F4C

// MaxVersion is the highest file-format version this core accepts.
const MaxVersion uint32 = 3

// TelemetryMagic marks a valid telemetry metadata block ("TLM!").
const TelemetryMagic uint32 = 0x214D4C54

// MaxEntryLen bounds any single entry payload, and independently any
// telemetry sampleSize/metadataSize. Anything larger is a format error.
const MaxEntryLen = 32 * 1024 * 1024

// FileHeader is the first 8 bytes of a container file.
type FileHeader struct {
	Magic   uint32
	Version uint32
}

// Valid reports whether h is an acceptable file header for this core.
func (h FileHeader) Valid() bool {
	return h.Magic == FileMagic && h.Version <= MaxVersion
}

// AES-256-CBC key material sizes referenced by the AES_DESC record (§3).
const (
	AESIVLen      = 16
	AESKeyHashLen = 32 // SHA-256 of the signer's DER public key
	AESKeyLen     = 32 // 256-bit content key, before RSA sealing
)

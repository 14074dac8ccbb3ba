// Package buffer implements the write-side pipeline: accumulate pushed
// bytes, LZ4-compress at a threshold, optionally AES-CBC-seal, hand the
// framed block to a sink. See spec §4.2.
package buffer

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
	"github.com/skywing/fdrlog/internal/metrics"
)

// Config parameterizes a Buffer per §4.2's init(flushThreshold,
// minGuaranteedSpace).
type Config struct {
	// FlushThreshold: committing bytes that bring used >= this triggers
	// a flush.
	FlushThreshold int
	// MinGuaranteedSpace: GetWriteHead always returns at least this many
	// contiguous bytes.
	MinGuaranteedSpace int
}

// Buffer is the write-side accumulate/compress/encrypt pipeline. Not
// safe for concurrent use — it is driven exclusively from the
// recorder's single event-loop thread (§5).
type Buffer struct {
	cfg    Config
	sink   io.Writer
	logger *logrus.Logger

	mu   sync.Mutex // guards buf/used against a concurrent forced Flush from outside the loop (e.g. flush(reason) control op)
	buf  []byte
	used int

	seal *sealContext
}

// New constructs a Buffer that writes framed blocks to sink.
func New(sink io.Writer, cfg Config, logger *logrus.Logger) *Buffer {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 64 * 1024
	}
	if cfg.MinGuaranteedSpace <= 0 {
		cfg.MinGuaranteedSpace = 4096
	}
	return &Buffer{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		buf:    make([]byte, cfg.FlushThreshold+cfg.MinGuaranteedSpace),
	}
}

// GetWriteSpace reports how many contiguous bytes are available at the
// write head right now (always >= MinGuaranteedSpace).
func (b *Buffer) GetWriteSpace() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureSpaceLocked()
	return len(b.buf) - b.used
}

// GetWriteHead returns a contiguous region of at least
// MinGuaranteedSpace bytes that a source may write into directly, before
// calling Push with however many bytes it actually used.
func (b *Buffer) GetWriteHead() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureSpaceLocked()
	return b.buf[b.used:]
}

func (b *Buffer) ensureSpaceLocked() {
	if len(b.buf)-b.used >= b.cfg.MinGuaranteedSpace {
		return
	}
	grown := make([]byte, b.used+b.cfg.MinGuaranteedSpace+b.cfg.FlushThreshold)
	copy(grown, b.buf[:b.used])
	b.buf = grown
}

// Push commits n bytes written at the head returned by GetWriteHead. If
// the commit brings used >= FlushThreshold, the buffer flushes.
func (b *Buffer) Push(n int) error {
	if n == 0 {
		return nil
	}
	b.mu.Lock()
	b.used += n
	shouldFlush := b.used >= b.cfg.FlushThreshold
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush()
	}
	return nil
}

// PushBytes is a convenience wrapper for sources that don't need
// zero-copy access to the write head.
func (b *Buffer) PushBytes(data []byte) error {
	for len(data) > 0 {
		head := b.GetWriteHead()
		n := copy(head, data)
		data = data[n:]
		if err := b.Push(n); err != nil {
			return err
		}
	}
	return nil
}

// Flush compresses [0..used) as one LZ4 frame, optionally seals it, and
// writes the framed block to the sink. A no-op when nothing is pending.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	if b.used == 0 {
		b.mu.Unlock()
		return nil
	}
	pending := make([]byte, b.used)
	copy(pending, b.buf[:b.used])
	b.used = 0
	seal := b.seal
	b.mu.Unlock()

	lz4Frame, err := compressLZ4(pending)
	if err != nil {
		return err
	}

	var out []byte
	if seal != nil {
		ciphertext := seal.seal(lz4Frame)
		out = container.AppendEntry(nil, container.IDAES, ciphertext)
	} else {
		out = container.AppendEntry(nil, container.IDLZ4, lz4Frame)
	}

	if _, err := b.sink.Write(out); err != nil {
		return ferr.IO("buffer", "Flush", err)
	}

	metrics.FlushesTotal.Inc()
	metrics.FlushBytes.Observe(float64(len(out)))
	b.logger.WithFields(logrus.Fields{
		"component":   "buffer",
		"plaintext":   len(pending),
		"framed":      len(out),
		"encrypted":   seal != nil,
	}).Debug("flushed block")

	return nil
}

// Reset discards uncommitted bytes and destroys the cipher context. No
// in-flight bytes survive a session boundary (invariant 5); the caller
// must call EnableEncryption again for the next file.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used = 0
	b.seal = nil
}

// EnableEncryption reads an RSA public key, computes its DER+SHA-256
// identifier, generates a fresh AES-256 content key and IV, RSA-seals
// the key, writes one AES_DESC record directly to the sink (bypassing
// compression), and installs the CBC cipher for subsequent flushes.
func (b *Buffer) EnableEncryption(pubKeyPath string) error {
	seal, desc, err := newSealContext(pubKeyPath)
	if err != nil {
		return err
	}

	entry := container.AppendEntry(nil, container.IDAESDesc, desc.Encode())
	if _, err := b.sink.Write(entry); err != nil {
		return ferr.IO("buffer", "EnableEncryption", err)
	}

	b.mu.Lock()
	b.seal = seal
	b.mu.Unlock()

	b.logger.WithField("component", "buffer").Info("encryption enabled for session")
	return nil
}

// Encrypting reports whether a seal context is currently installed.
func (b *Buffer) Encrypting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seal != nil
}

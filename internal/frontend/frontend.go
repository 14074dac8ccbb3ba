// Package frontend owns the container file's lifecycle: opening a new
// file, writing its header with fields that can later be rewritten in
// place, routing payload bytes through an MD5 digest, checking space
// quota, and closing with a recorded reason (§4.4).
package frontend

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/backend"
	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/ferr"
	"github.com/skywing/fdrlog/internal/reader"
)

// CloseReason records why a file was closed. It is written verbatim
// into the footer record (§3/§4.4) and carried into the recorder's
// subsequent lifecycle event.
type CloseReason string

const (
	CloseReasonUnknown      CloseReason = "UNKNOWN"
	CloseReasonNotClosed    CloseReason = "NOT_CLOSED"
	CloseReasonExiting      CloseReason = "EXITING"
	CloseReasonDisabled     CloseReason = "DISABLED"
	CloseReasonNoSpaceLeft  CloseReason = "NO_SPACE_LEFT"
	CloseReasonFileTooBig   CloseReason = "FILE_TOO_BIG"
	CloseReasonQuotaReached CloseReason = "QUOTA_REACHED"
	CloseReasonRotate       CloseReason = "ROTATE"
)

// Frontend drives one Backend through its open/write/close lifecycle.
// Not safe for concurrent use outside the recorder's single event loop.
type Frontend struct {
	backend *backend.Backend
	logger  *logrus.Logger

	mu    sync.Mutex
	state State

	fields       map[string]string
	fieldOffsets map[string]int64 // absolute file offsets of each reserved field's value bytes

	digest      hash.Hash
	lifetimeIdx int
}

// New constructs a Frontend over dir.
func New(dir string, logger *logrus.Logger) *Frontend {
	return &Frontend{
		backend: backend.New(dir, logger),
		logger:  logger,
		state:   StateClosed,
		fields:  map[string]string{},
	}
}

// Backend exposes the underlying Backend for callers (the recorder's
// rotation logic) that need direct file operations.
func (fe *Frontend) Backend() *backend.Backend { return fe.backend }

// State reports the current lifecycle state.
func (fe *Frontend) State() State {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.state
}

// Open transitions CLOSED -> OPENING -> OPEN: truncates the active
// file, writes the file header, registers and writes the reserved
// header source with initial field values, then starts the MD5 digest
// over everything written afterward.
func (fe *Frontend) Open(lifetimeIdx int, initial map[string]string) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.state != StateClosed {
		return ferr.Format("frontend", "Open", "frontend is not closed")
	}
	fe.state = StateOpening

	if err := fe.backend.Open(); err != nil {
		fe.state = StateClosed
		return err
	}

	if err := container.WriteFileHeader(fe.backend, container.FileHeader{
		Magic: container.FileMagic, Version: container.MaxVersion,
	}); err != nil {
		fe.state = StateClosed
		return err
	}

	desc := container.SourceDesc{
		SourceID: reader.HeaderSourceID,
		Version:  1,
		Plugin:   reader.HeaderSourcePlugin,
		Name:     reader.HeaderSourceName,
	}
	if err := container.WriteEntry(fe.backend, container.IDSourceDesc, desc.Encode()); err != nil {
		fe.state = StateClosed
		return err
	}

	payload, offsets, err := encodeHeader(initial)
	if err != nil {
		fe.state = StateClosed
		return err
	}

	payloadStart := fe.backend.Size() + 8 // entry id:u32 + len:u32 precede the payload
	if err := container.WriteEntry(fe.backend, reader.HeaderSourceID, payload); err != nil {
		fe.state = StateClosed
		return err
	}

	fe.fieldOffsets = make(map[string]int64, len(offsets))
	for name, rel := range offsets {
		fe.fieldOffsets[name] = payloadStart + int64(rel)
	}
	fe.fields = map[string]string{}
	for _, f := range rewritableFields {
		if v, ok := initial[f.Name]; ok {
			fe.fields[f.Name] = v
		} else {
			fe.fields[f.Name] = f.Default
		}
	}
	fe.digest = md5.New()
	fe.lifetimeIdx = lifetimeIdx

	fe.state = StateOpen
	fe.logger.WithFields(logrus.Fields{"component": "frontend", "path": fe.backend.ActivePath()}).Info("opened session")
	return nil
}

// Writer returns an io.Writer that appends to the backend while also
// feeding the running MD5 digest — this is the sink the write-side
// buffer pipeline flushes into, so the digest covers exactly the framed
// bytes that end up on disk.
func (fe *Frontend) Writer() io.Writer { return (*digestWriter)(fe) }

type digestWriter Frontend

func (w *digestWriter) Write(p []byte) (int, error) {
	fe := (*Frontend)(w)
	fe.mu.Lock()
	digest := fe.digest
	fe.mu.Unlock()
	if digest != nil {
		digest.Write(p)
	}
	return fe.backend.Write(p)
}

// UpdateField rewrites one reserved header field in place. value must
// fit within the field's reserved width (see rewritableFields).
func (fe *Frontend) UpdateField(name, value string) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.state != StateOpen {
		return ferr.Format("frontend", "UpdateField", "frontend is not open")
	}
	return fe.writeFieldLocked(name, value)
}

// writeFieldLocked performs the actual padded in-place rewrite. Unlike
// UpdateField it has no StateOpen guard, so Close can use it to finalize
// the "md5" field while the frontend is already StateClosing.
// fe.mu must already be held.
func (fe *Frontend) writeFieldLocked(name, value string) error {
	width, ok := reservedWidth(name)
	if !ok {
		return ferr.Format("frontend", "UpdateField", fmt.Sprintf("unknown rewritable field %q", name))
	}
	padded, err := padField(value, width)
	if err != nil {
		return err
	}
	off, ok := fe.fieldOffsets[name]
	if !ok {
		return ferr.Format("frontend", "UpdateField", "field offset not recorded")
	}
	if err := fe.backend.PWrite([]byte(padded), off); err != nil {
		return err
	}
	fe.fields[name] = value
	return nil
}

// Field returns the last value UpdateField (or Open's initial values)
// set for the rewritable field name. Read-only header keys passed to
// Open are not tracked here and yield "".
func (fe *Frontend) Field(name string) string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.fields[name]
}

// QuotaCheck reports whether the file has reached sizeCapBytes and
// should be rotated for that reason (§4.4's size-cap trigger).
func (fe *Frontend) QuotaCheck(sizeCapBytes int64) bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return sizeCapBytes > 0 && fe.backend.Size() >= sizeCapBytes
}

// Close writes the footer record (a reserved source carrying the
// single ("reason", reason) pair), finalizes the MD5 digest into the
// reserved "md5" field, then transitions OPEN -> CLOSING -> CLOSED:
// syncs and closes the backend file. This is the exact order §4.4
// specifies: the footer lands on disk before the digest is finalized,
// though the footer's own bytes stay outside the digest, the same
// treatment the header source gets.
func (fe *Frontend) Close(reason CloseReason) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.state != StateOpen {
		return nil
	}
	fe.state = StateClosing

	if err := fe.writeFooterLocked(reason); err != nil {
		fe.logger.WithError(err).Warn("failed to write footer record")
	}

	if fe.digest != nil {
		sum := hex.EncodeToString(fe.digest.Sum(nil))
		if err := fe.writeFieldLocked("md5", sum); err != nil {
			fe.logger.WithError(err).Warn("failed to write final md5 digest")
		}
	}

	if err := fe.backend.Close(); err != nil {
		fe.state = StateClosed
		return err
	}
	fe.state = StateClosed
	fe.logger.WithFields(logrus.Fields{"component": "frontend", "reason": reason}).Info("closed session")
	return nil
}

// writeFooterLocked writes the footer's SOURCE_DESC and its single
// ("reason", reason) entry directly to the backend, outside the MD5
// digest — the same treatment the header source gets (the digest only
// starts running once Open has finished writing it, see Open's own
// comment). The footer still lands on disk before the digest is
// finalized below, matching §4.4's literal write order.
// fe.mu must already be held.
func (fe *Frontend) writeFooterLocked(reason CloseReason) error {
	desc := container.SourceDesc{
		SourceID: reader.FooterSourceID,
		Version:  1,
		Plugin:   reader.FooterSourcePlugin,
		Name:     reader.FooterSourceName,
	}
	if err := container.WriteEntry(fe.backend, container.IDSourceDesc, desc.Encode()); err != nil {
		return err
	}
	payload := datasource.EncodeInternalRecords([]datasource.InternalRecord{
		{Key: "reason", Value: string(reason)},
	})
	return container.WriteEntry(fe.backend, reader.FooterSourceID, payload)
}

// LifetimeIdx returns the lifetime index this session was opened with,
// used by the backend's rotation-out naming.
func (fe *Frontend) LifetimeIdx() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lifetimeIdx
}

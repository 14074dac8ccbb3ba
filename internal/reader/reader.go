// Package reader implements the extractor's read side: a streaming,
// synchronous walk of one container file that rebuilds the typed data
// sources the recorder wrote, plus a header-only short-read mode used
// by rotation bookkeeping (§4.7).
package reader

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/skywing/fdrlog/internal/buffer"
	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/ferr"
)

// HeaderSourceID is the reserved source id the frontend uses for the
// rewritable header fields (§4.4). It is written uncompressed,
// immediately after the file header and its own SOURCE_DESC, so
// ReadHeaderOnly never needs to inflate an LZ4 frame.
//
// FooterSourceID is the reserved source id for the footer record
// (§3/§4.4): the single ("reason", CloseReason) pair written just
// before the file is closed. Both reserved ids live below
// container.FirstSourceID+2, the first id the registry ever hands out
// to an application-registered source, so neither can collide with one.
const (
	HeaderSourceID = container.FirstSourceID
	FooterSourceID = container.FirstSourceID + 1
)

// HeaderSourcePlugin/HeaderSourceName and FooterSourcePlugin/
// FooterSourceName are the plugin/name pairs the frontend registers
// its reserved header and footer sources under. Both use the
// "internal" plugin tag (§4.7's key/value record shape) so an
// unmodified reader decodes them the same way it decodes any other
// internal source.
const (
	HeaderSourcePlugin = "internal"
	HeaderSourceName   = "header"
	FooterSourcePlugin = "internal"
	FooterSourceName   = "footer"
)

// sourceAccum is the in-progress decode state for one registered
// source id, keyed by the disambiguated FullName on re-description.
type sourceAccum struct {
	desc      container.SourceDesc
	kind      datasource.Kind
	internal  []datasource.InternalRecord
	events    []datasource.Event
	telemetry *datasource.Telemetry
	ulog      []datasource.UlogRecord
}

// Session is the fully decoded contents of one container file.
type Session struct {
	FileHeader container.FileHeader
	AESDescs   []container.AESDesc
	Header     map[string]string // rewritable header fields, from the reserved header source
	Footer     map[string]string // footer record (§3): carries "reason", if the file was closed cleanly
	Sources    []*datasource.Source
}

// ReadSession parses the entire container file at path.
func ReadSession(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.IO("reader", "ReadSession", err)
	}
	defer f.Close()

	sess := &Session{Header: map[string]string{}, Footer: map[string]string{}}
	accums := map[uint32]*sourceAccum{}
	order := []uint32{}

	hdr, err := container.ReadFileHeader(f)
	if err != nil {
		return nil, err
	}
	sess.FileHeader = hdr

	err = walkEntries(f, func(e container.Entry) error {
		return dispatchEntry(sess, accums, &order, e)
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	for _, id := range order {
		if id == HeaderSourceID || id == FooterSourceID {
			// Already surfaced as sess.Header/sess.Footer, not a
			// general-purpose data source.
			continue
		}
		a := accums[id]
		src := &datasource.Source{Kind: a.kind, Name: a.desc.FullName()}
		switch a.kind {
		case datasource.KindInternal:
			src.Internal = a.internal
		case datasource.KindEvent:
			src.Events = a.events
		case datasource.KindTelemetry:
			src.Telemetry = a.telemetry
		case datasource.KindUlog:
			src.Ulog = a.ulog
		}
		sess.Sources = append(sess.Sources, src)
	}

	return sess, nil
}

// ReadHeaderOnly reads just enough of the container file at path to
// recover the rewritable header fields, without inflating any LZ4
// frame. It stops as soon as the header source's entry has been seen.
func ReadHeaderOnly(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.IO("reader", "ReadHeaderOnly", err)
	}
	defer f.Close()

	if _, err := container.ReadFileHeader(f); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	var headerDesc container.SourceDesc
	haveDesc := false
	found := false

	err = walkEntries(f, func(e container.Entry) error {
		switch e.ID {
		case container.IDSourceDesc:
			d, err := container.DecodeSourceDesc(e.Payload)
			if err != nil {
				return err
			}
			if d.SourceID == HeaderSourceID {
				headerDesc = d
				haveDesc = true
			}
			return nil
		case container.IDLZ4, container.IDAES, container.IDAESDesc:
			// The header is written before any compressed or encrypted
			// block; reaching one here means there is no header source,
			// not that we should inflate it to keep looking.
			return errStopHeaderScan
		default:
			if haveDesc && e.ID == headerDesc.SourceID {
				recs, err := datasource.DecodeInternalRecords(e.Payload)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fields[r.Key] = strings.TrimRight(r.Value, " ")
				}
				found = true
				return errStopHeaderScan
			}
			return nil
		}
	})
	if err != nil && err != io.EOF && err != errStopHeaderScan {
		return nil, err
	}
	if !found {
		return fields, ferr.Format("reader", "ReadHeaderOnly", "no header source found")
	}
	return fields, nil
}

var errStopHeaderScan = ferr.Format("reader", "ReadHeaderOnly", "stop: header found")

// walkEntries reads framed entries from r until EOF or the first error
// returned by dispatch (including the sentinel used to end a short
// read early).
func walkEntries(r io.Reader, dispatch func(container.Entry) error) error {
	for {
		e, err := container.ReadEntry(r)
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return err
		}
		if err := dispatch(e); err != nil {
			return err
		}
	}
}

// dispatchEntry routes one top-level entry: framing entries are
// interpreted in place, LZ4 blocks are inflated and their contents
// walked recursively, and everything else is handed to its source's
// accumulator.
func dispatchEntry(sess *Session, accums map[uint32]*sourceAccum, order *[]uint32, e container.Entry) error {
	switch e.ID {
	case container.IDSourceDesc:
		d, err := container.DecodeSourceDesc(e.Payload)
		if err != nil {
			return err
		}
		registerSource(accums, order, d)
		return nil

	case container.IDAESDesc:
		d, err := container.DecodeAESDesc(e.Payload)
		if err != nil {
			return err
		}
		sess.AESDescs = append(sess.AESDescs, d)
		return nil

	case container.IDAES:
		// Ciphertext is kept opaque; decrypting requires a private key
		// the core does not hold (§9 open question).
		return nil

	case container.IDLZ4:
		plain, err := buffer.DecompressLZ4(e.Payload)
		if err != nil {
			return err
		}
		err = walkEntries(bytes.NewReader(plain), func(inner container.Entry) error {
			return dispatchEntry(sess, accums, order, inner)
		})
		if err != nil && err != io.EOF {
			return err
		}
		return nil

	default:
		return appendToSource(sess, accums, e)
	}
}

func registerSource(accums map[uint32]*sourceAccum, order *[]uint32, d container.SourceDesc) {
	if _, exists := accums[d.SourceID]; !exists {
		*order = append(*order, d.SourceID)
	}
	accums[d.SourceID] = &sourceAccum{desc: d, kind: classifyPlugin(d.Plugin)}
}

// classifyPlugin maps a SOURCE_DESC's plugin tag to the typed data
// shape it will emit. Unknown plugins yield a generic no-op source
// (§4.7) rather than being guessed at as internal key/value records —
// a plugin this reader has never heard of may frame its payloads any
// way it likes.
func classifyPlugin(plugin string) datasource.Kind {
	switch plugin {
	case "internal":
		return datasource.KindInternal
	case "event":
		return datasource.KindEvent
	case "telemetry":
		return datasource.KindTelemetry
	case "ulog":
		return datasource.KindUlog
	default:
		return datasource.KindOpaque
	}
}

func appendToSource(sess *Session, accums map[uint32]*sourceAccum, e container.Entry) error {
	a, ok := accums[e.ID]
	if !ok {
		return ferr.Format("reader", "appendToSource", "entry for undeclared source id")
	}

	switch a.kind {
	case datasource.KindInternal:
		recs, err := datasource.DecodeInternalRecords(e.Payload)
		if err != nil {
			return err
		}
		a.internal = append(a.internal, recs...)
		switch e.ID {
		case HeaderSourceID:
			for _, r := range recs {
				sess.Header[r.Key] = strings.TrimRight(r.Value, " ")
			}
		case FooterSourceID:
			for _, r := range recs {
				sess.Footer[r.Key] = strings.TrimRight(r.Value, " ")
			}
		}
		return nil

	case datasource.KindEvent:
		evs, err := datasource.DecodeEvents(e.Payload)
		if err != nil {
			return err
		}
		a.events = append(a.events, evs...)
		return nil

	case datasource.KindTelemetry:
		if len(e.Payload) >= 4 && readMagic(e.Payload) == container.TelemetryMagic {
			meta, err := container.DecodeTelemetryMeta(e.Payload)
			if err != nil {
				return err
			}
			a.telemetry = datasource.NewTelemetry(meta)
			return nil
		}
		if a.telemetry == nil {
			return ferr.Format("reader", "appendToSource", "telemetry sample before metadata")
		}
		return a.telemetry.AppendSample(e.Payload)

	case datasource.KindUlog:
		rec, err := datasource.DecodeUlogRecord(e.Payload)
		if err != nil {
			return err
		}
		a.ulog = append(a.ulog, rec)
		return nil

	default:
		return nil
	}
}

func readMagic(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

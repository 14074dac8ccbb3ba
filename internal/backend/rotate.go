package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skywing/fdrlog/internal/ferr"
)

// Deleted describes one sibling removed to satisfy quota, for the
// caller to report as an EVT:LOGS event.
type Deleted struct {
	Path    string
	Takeoff string // "0", "1", or "" if unknown
}

// EvictForSpace deletes rotated siblings, ordered takeoff="0" (or
// unknown) before takeoff="1", then ascending idx, until either
// removeSize bytes have been freed or fewer than maxLogCount siblings
// remain. maxLogCount == 0 means unbounded (only removeSize applies).
func (b *Backend) EvictForSpace(removeSize int64, maxLogCount int) ([]Deleted, error) {
	siblings, err := ListSiblings(b.dir)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(siblings, func(i, j int) bool {
		ti, tj := siblings[i].Takeoff == "1", siblings[j].Takeoff == "1"
		if ti != tj {
			return !ti // non-flight (false) sorts first
		}
		return siblings[i].Idx < siblings[j].Idx
	})

	var deleted []Deleted
	var freed int64
	remaining := len(siblings)

	for _, s := range siblings {
		needSpace := removeSize > 0 && freed < removeSize
		needCount := maxLogCount > 0 && remaining >= maxLogCount
		if !needSpace && !needCount {
			break
		}

		if digest, err := tailDigest(s.Path); err != nil || digest != s.Digest {
			// The file changed (or vanished) since it was listed — most
			// likely still being written to. Leave it for a later pass
			// rather than deleting a sibling mid-rotation; it still
			// counts against maxLogCount since it's still on disk.
			continue
		}

		if fi, err := os.Stat(s.Path); err == nil {
			freed += fi.Size()
		}
		if err := os.Remove(s.Path); err != nil {
			b.logger.WithError(err).WithField("path", s.Path).Warn("failed to remove rotated log during eviction")
			continue
		}
		deleted = append(deleted, Deleted{Path: s.Path, Takeoff: s.Takeoff})
		remaining--
	}

	return deleted, nil
}

// RotateOut renames the active file out of the way to
// log-<idx>.bin or log-<idx>-<uuid5>-<date20>.bin (the dated pattern is
// used when header carries both "ro.boot.uuid" and "date"), where idx is
// one greater than the highest idx observed among siblings and any
// lifetime index already known to the caller. The active file must
// already be closed.
func (b *Backend) RotateOut(header map[string]string, lifetimeIdx int) (string, int, error) {
	maxIdx, err := MaxObservedIdx(b.dir)
	if err != nil {
		return "", 0, err
	}
	nextIdx := maxIdx + 1
	if lifetimeIdx+1 > nextIdx {
		nextIdx = lifetimeIdx + 1
	}

	var name string
	uuidVal, hasUUID := header["ro.boot.uuid"]
	dateVal, hasDate := header["date"]
	if hasUUID && hasDate && len(uuidVal) >= 5 {
		prefix := uuidVal[:5]
		name = fmt.Sprintf("log-%d-%s-%s.bin", nextIdx, prefix, normalizeDate20(dateVal))
	} else {
		name = fmt.Sprintf("log-%d.bin", nextIdx)
	}

	dst := filepath.Join(b.dir, name)
	if err := os.Rename(b.ActivePath(), dst); err != nil {
		return "", 0, ferr.IO("backend", "RotateOut", err)
	}
	return dst, nextIdx, nil
}

// normalizeDate20 returns date unchanged when it is exactly 20 bytes
// long, so the dated filename pattern's fixed-width date field matches
// it; a date of any other length is replaced by a fresh UTC stamp in the
// same 20-byte YYYYMMDDTHHMMSS+0000 form.
func normalizeDate20(date string) string {
	if len(date) == 20 {
		return date
	}
	return time.Now().UTC().Format("20060102T150405") + "+0000"
}

// NewUUIDPrefix5 returns a fresh 5-character disambiguator for the dated
// rotation filename pattern, independent of any header field.
func NewUUIDPrefix5() string {
	return uuid.NewString()[:5]
}

// Package backend implements the on-disk file operations beneath the
// frontend: write/sync/size/pwrite/close of the active file, and
// enumerate/sort/rename/unlink of rotated siblings. See spec §4.3.
package backend

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/ferr"
)

// ActiveFileName is the name of the currently-open log file in the
// output directory; rotation renames it out of the way.
const ActiveFileName = "log.bin"

// Backend owns one active file within outputDir.
type Backend struct {
	dir    string
	logger *logrus.Logger

	file *os.File
	size int64
}

// New constructs a Backend rooted at dir. The directory must already
// exist.
func New(dir string, logger *logrus.Logger) *Backend {
	return &Backend{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (b *Backend) Dir() string { return b.dir }

// ActivePath is the full path of the active file.
func (b *Backend) ActivePath() string { return filepath.Join(b.dir, ActiveFileName) }

// Open truncates (or creates) the active file and fsyncs the directory
// once the file exists, so a crash immediately after open still sees the
// directory entry.
func (b *Backend) Open() error {
	f, err := os.OpenFile(b.ActivePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ferr.IO("backend", "Open", err)
	}
	b.file = f
	b.size = 0

	if dirf, err := os.Open(b.dir); err == nil {
		_ = dirf.Sync()
		_ = dirf.Close()
	}

	b.logger.WithFields(logrus.Fields{"component": "backend", "path": b.ActivePath()}).Info("opened active file")
	return nil
}

// Write appends p to the active file and tracks size.
func (b *Backend) Write(p []byte) (int, error) {
	n, err := b.file.Write(p)
	b.size += int64(n)
	if err != nil {
		return n, ferr.IO("backend", "Write", err)
	}
	return n, nil
}

// PWrite writes p at the given absolute offset without disturbing the
// current append position, used for in-place header field rewrites.
func (b *Backend) PWrite(p []byte, off int64) error {
	if _, err := b.file.WriteAt(p, off); err != nil {
		return ferr.IO("backend", "PWrite", err)
	}
	return nil
}

// Size returns the number of bytes written to the active file so far.
func (b *Backend) Size() int64 { return b.size }

// Sync fsyncs the active file.
func (b *Backend) Sync() error {
	if b.file == nil {
		return nil
	}
	if err := b.file.Sync(); err != nil {
		return ferr.IO("backend", "Sync", err)
	}
	return nil
}

// Close fsyncs and closes the active file.
func (b *Backend) Close() error {
	if b.file == nil {
		return nil
	}
	syncErr := b.Sync()
	err := b.file.Close()
	b.file = nil
	if err != nil {
		return ferr.IO("backend", "Close", err)
	}
	return syncErr
}

// AvailableBytes reports free space on the filesystem backing dir.
func (b *Backend) AvailableBytes() (uint64, error) {
	return statfsAvailable(b.dir)
}

// UsedBytes sums the size of every sibling log file (active file
// excluded — the caller adds its current size separately, per §4.4's
// usedSpace + currentSize formula).
func (b *Backend) UsedBytes() (int64, error) {
	siblings, err := ListSiblings(b.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range siblings {
		if fi, err := os.Stat(s.Path); err == nil {
			total += fi.Size()
		}
	}
	return total, nil
}

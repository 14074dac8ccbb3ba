package backend

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// tailDigestWindow is how much of a sibling's trailing bytes we hash to
// get a cheap fingerprint — enough to catch a file still being written
// to without re-reading (and re-decompressing) the whole thing.
const tailDigestWindow = 4096

// tailDigest returns an xxhash64 of the last tailDigestWindow bytes of
// the file at path (or the whole file, if smaller), used to detect that
// a sibling changed between being listed and being evicted.
func tailDigest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	size := fi.Size()
	start := int64(0)
	if size > tailDigestWindow {
		start = size - tailDigestWindow
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

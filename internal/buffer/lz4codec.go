package buffer

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/skywing/fdrlog/internal/ferr"
)

// compressLZ4 renders data as a single self-contained LZ4 frame: content
// checksum enabled, autoflush (single Write then Close, no intermediate
// block boundary games), compression level 1 — per §4.1.
func compressLZ4(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if err := w.Apply(
		lz4.ChecksumOption(true),
		lz4.CompressionLevelOption(lz4.Level1),
	); err != nil {
		return nil, ferr.IO("buffer", "compressLZ4", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, ferr.IO("buffer", "compressLZ4", err)
	}
	if err := w.Close(); err != nil {
		return nil, ferr.IO("buffer", "compressLZ4", err)
	}
	return out.Bytes(), nil
}

// DecompressLZ4 inflates a single LZ4 frame produced by compressLZ4. Per
// §4.1, a reader may need a fresh decompression context on frame error;
// we retry once with a brand new lz4.Reader before giving up, which
// covers the case where the underlying reader's internal state was
// poisoned by a partial read.
func DecompressLZ4(frame []byte) ([]byte, error) {
	out, err := decompressOnce(frame)
	if err == nil {
		return out, nil
	}
	out, err2 := decompressOnce(frame)
	if err2 == nil {
		return out, nil
	}
	return nil, ferr.Format("buffer", "DecompressLZ4", "corrupt LZ4 frame").Wrap(err)
}

func decompressOnce(frame []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(frame))
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return data, nil
}

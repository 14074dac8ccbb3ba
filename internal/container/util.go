package container

import (
	"encoding/binary"

	"github.com/skywing/fdrlog/internal/ferr"
)

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readU32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func formatErr(op, msg string) error {
	return ferr.Format("container", op, msg)
}

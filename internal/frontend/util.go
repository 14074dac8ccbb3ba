package frontend

import "encoding/binary"

func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

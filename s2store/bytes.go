package s2store

import "encoding/binary"

func readU32BE(b []byte) uint32       { return binary.BigEndian.Uint32(b) }
func writeU32BE(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }

// readUintBE reads a big-endian unsigned integer of 1..8 bytes.
func readUintBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// writeUintBE writes v big-endian into all of dst (1..8 bytes).
func writeUintBE(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

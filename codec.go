package modbus

import "encoding/binary"

// byteCount returns ceil(bitCount/8), the number of bytes needed to pack
// bitCount coil/discrete-input values.
func byteCount(bitCount uint16) int {
	return int((bitCount + 7) / 8)
}

// packBits packs values LSB-first into ceil(len(values)/8) bytes: bit k of
// values lands in byte k/8 at bit position k%8. Unused high bits of the
// final byte are left zero.
func packBits(values []bool) []byte {
	buf := make([]byte, byteCount(uint16(len(values))))
	for i, v := range values {
		if v {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return buf
}

// unpackBits is the inverse of packBits: it extracts the first quantity
// bits from data, LSB-first, ignoring any trailing padding bits.
func unpackBits(data []byte, quantity uint16) []bool {
	out := make([]bool, quantity)
	for i := range out {
		byteIdx, bitIdx := i/8, uint(i%8)
		if byteIdx >= len(data) {
			break
		}
		out[i] = data[byteIdx]&(1<<bitIdx) != 0
	}
	return out
}

// putWords encodes values as big-endian 16-bit words.
func putWords(values []uint16) []byte {
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(buf[2*i:], v)
	}
	return buf
}

// parseWords decodes a big-endian byte slice into 16-bit words. len(data)
// must be even; the caller is responsible for that invariant (the
// dispatcher validates byte counts before calling).
func parseWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}

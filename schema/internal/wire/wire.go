package wire

import (
	"encoding/binary"
	"fmt"
)

// Uint decodes len(b) bytes as an unsigned integer in the given byte order.
// Widths 1, 2, 4 and 8 are supported.
func Uint(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	panic(fmt.Sprintf("wire: invalid integer width %d", len(b)))
}

// PutUint encodes v into len(b) bytes in the given byte order, truncating
// to the slice width.
func PutUint(b []byte, order binary.ByteOrder, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("wire: invalid integer width %d", len(b)))
	}
}

// Int decodes len(b) bytes as a signed integer, sign-extending to 64 bits.
func Int(b []byte, order binary.ByteOrder) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(order.Uint16(b)))
	case 4:
		return int64(int32(order.Uint32(b)))
	case 8:
		return int64(order.Uint64(b))
	}
	panic(fmt.Sprintf("wire: invalid integer width %d", len(b)))
}

// PutInt encodes v into len(b) bytes in the given byte order.
func PutInt(b []byte, order binary.ByteOrder, v int64) {
	PutUint(b, order, uint64(v))
}

// TrimZeros returns b without trailing NUL bytes. Fixed-width byte fields
// strip their zero padding on decode.
func TrimZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

// Pad rounds size up to the next multiple of granularity. A granularity of
// 1 (or less) leaves size unchanged.
func Pad(size, granularity int) int {
	if granularity <= 1 {
		return size
	}
	return (size + granularity - 1) / granularity * granularity
}

// ZeroPad grows b with zero bytes until it is n long. b is returned
// unchanged when already long enough.
func ZeroPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	return append(b, make([]byte, n-len(b))...)
}

package wire

// Bits extracts width bits from v, counting start bits in from the most
// significant end of a totalBits-wide value. A full-width extraction
// (start 0, width == totalBits) returns v itself.
func Bits(v uint64, totalBits, start, width int) uint64 {
	mask := uint64(1)<<uint(width) - 1
	return (v >> uint(totalBits-start-width)) & mask
}

// SetBits returns v with the width bits at start replaced by field. Bits of
// field beyond width are discarded.
func SetBits(v uint64, totalBits, start, width int, field uint64) uint64 {
	mask := uint64(1)<<uint(width) - 1
	shift := uint(totalBits - start - width)
	return v&^(mask<<shift) | (field&mask)<<shift
}

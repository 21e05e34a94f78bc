package sensornetwork

// shiftLeft performs a logical left shift of buf by n bits, in place,
// treating buf as a little-endian arbitrary-precision integer. Bytes
// vacated at index 0 are zero-filled; bits that fall off the high end are
// discarded. Mirrors bitShiftBytearrayLeft in the reference implementation.
func shiftLeft(buf []byte, n int) {
	nBytes := n / 8
	n %= 8

	if nBytes > 0 {
		copy(buf[nBytes:], buf[:len(buf)-nBytes])
		for i := 0; i < nBytes && i < len(buf); i++ {
			buf[i] = 0
		}
	}

	var carry byte
	for i := nBytes; i < len(buf); i++ {
		next := buf[i] >> (8 - uint(n))
		buf[i] = carry | (buf[i] << uint(n))
		carry = next
	}
}

// shiftRight performs a logical right shift of buf by n bits, in place, the
// mirror image of shiftLeft. Mirrors bitShiftBytearrayRight.
func shiftRight(buf []byte, n int) {
	nBytes := n / 8
	n %= 8

	if nBytes > 0 {
		copy(buf[:len(buf)-nBytes], buf[nBytes:])
		for i := len(buf) - nBytes; i < len(buf); i++ {
			buf[i] = 0
		}
	}

	var carry byte
	for i := len(buf) - nBytes - 1; i >= 0; i-- {
		next := buf[i] & (0xFF >> (8 - uint(n)))
		buf[i] = (buf[i] >> uint(n)) | (carry << (8 - uint(n)))
		carry = next
	}
}

// bitmask allocates a buffer of ceil((length+start)/8) bytes whose bits
// [start, start+length) are 1 and the rest 0. Used as the write mask in
// ExtendedStruct slice assignment. Mirrors bitmaskByteArray.
func bitmask(length, start int) []byte {
	total := length + start
	buf := make([]byte, (total+7)/8)

	remaining := length
	i := 0
	for remaining >= 8 {
		buf[i] = 0xFF
		i++
		remaining -= 8
	}
	if remaining > 0 {
		buf[i] = 0xFF >> uint(8-remaining)
	}

	shiftLeft(buf, start)
	return buf
}

package sensornetwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShiftLeftWholeBytes(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03}
	shiftLeft(buf, 8)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, buf)
}

func TestShiftLeftSubByte(t *testing.T) {
	buf := []byte{0xFF, 0x00}
	shiftLeft(buf, 4)
	assert.Equal(t, []byte{0xF0, 0x0F}, buf)
}

func TestShiftLeftDiscardsOverflow(t *testing.T) {
	buf := []byte{0xFF}
	shiftLeft(buf, 4)
	assert.Equal(t, []byte{0xF0}, buf)
}

func TestShiftRightWholeBytes(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03}
	shiftRight(buf, 8)
	assert.Equal(t, []byte{0x02, 0x03, 0x00}, buf)
}

func TestShiftRightSubByte(t *testing.T) {
	buf := []byte{0x0F, 0xF0}
	shiftRight(buf, 4)
	assert.Equal(t, []byte{0x00, 0x0F}, buf)
}

func TestBitmaskAlignedWholeByte(t *testing.T) {
	assert.Equal(t, []byte{0xFF}, bitmask(8, 0))
}

func TestBitmaskOffsetWithinByte(t *testing.T) {
	// bits [2,5) -> 0b00011100
	assert.Equal(t, []byte{0b00011100}, bitmask(3, 2))
}

func TestBitmaskSpansByteBoundary(t *testing.T) {
	// bits [4, 12) span byte 0 high nibble and byte 1 low nibble.
	mask := bitmask(8, 4)
	assert.Equal(t, []byte{0xF0, 0x0F}, mask)
}

func TestBitmaskZeroLength(t *testing.T) {
	assert.Equal(t, []byte{}, bitmask(0, 0))
}

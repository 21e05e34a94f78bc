package serialtunnel_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sustaingineering/sensornetwork/transport/serialtunnel"
)

func TestEncodeDecodeRoundTripStandardFrame(t *testing.T) {
	var buf bytes.Buffer
	enc := serialtunnel.NewEncoder(&buf)
	want := serialtunnel.Frame{
		TimestampMs: 123456,
		ID:          0x700,
		Extended:    false,
		Payload:     []byte{0x01, 0x02, 0x03},
	}
	require.NoError(t, enc.Encode(want))

	dec := serialtunnel.NewDecoder(&buf)
	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeWireFormatBitExact(t *testing.T) {
	// spec.md §6: 0xAA, 4-byte LE timestamp, 1-byte length, 4-byte LE id
	// with bit 29 set for a standard (non-extended) frame, payload, 0xBB.
	var buf bytes.Buffer
	enc := serialtunnel.NewEncoder(&buf)
	require.NoError(t, enc.Encode(serialtunnel.Frame{
		TimestampMs: 1,
		ID:          0x700,
		Extended:    false,
		Payload:     []byte{0xAB},
	}))

	want := []byte{
		0xAA,
		0x01, 0x00, 0x00, 0x00, // timestamp
		0x01,                   // length
		0x00, 0x07, 0x00, 0x20, // id 0x700 + 0x20000000
		0xAB,
		0xBB,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestDecodeSkipsGarbageBeforeStartByte(t *testing.T) {
	var buf bytes.Buffer
	// Garbage bytes containing no start marker, then a valid frame.
	buf.Write([]byte{0x01, 0x02, 0x03})
	enc := serialtunnel.NewEncoder(&buf)
	require.NoError(t, enc.Encode(serialtunnel.Frame{ID: 1, Payload: []byte{0x09}}))

	dec := serialtunnel.NewDecoder(&buf)
	got, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.ID)
	assert.Equal(t, []byte{0x09}, got.Payload)
}

func TestDecodeEOFOnEmptyStream(t *testing.T) {
	dec := serialtunnel.NewDecoder(bytes.NewReader(nil))
	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTransceiverTransmitReceiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	clockTick := uint32(0)
	clock := func() uint32 { clockTick++; return clockTick }
	tx := serialtunnel.NewTransceiver(&buf, &buf, clock)

	require.NoError(t, tx.Transmit(0x123, []byte{0x0A, 0x0B}))

	id, data, ok, err := tx.Receive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(0x123), id)
	assert.Equal(t, []byte{0x0A, 0x0B}, data)
}

func TestTransceiverReceiveOnEmptyStreamIsNotAnError(t *testing.T) {
	tx := serialtunnel.NewTransceiver(&bytes.Buffer{}, bytes.NewReader(nil), nil)
	_, _, ok, err := tx.Receive()
	assert.NoError(t, err)
	assert.False(t, ok)
}

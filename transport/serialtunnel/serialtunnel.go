// Package serialtunnel implements the bit-exact wire framing used to bridge
// a CAN bus over a UART to a host: the format a serial gateway emits and a
// host-side bridge consumes, documented in the core schema's external
// interfaces so both ends can be built independently.
package serialtunnel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/Sustaingineering/sensornetwork"
)

const (
	startByte = 0xAA
	endByte   = 0xBB

	// extendedFlag is added to a frame's id when the original CAN frame
	// was a standard (non-extended) 11-bit identifier -- an odd inversion
	// inherited from the reference bridge's wire format, not a mistake.
	extendedFlag = 0x20000000

	maxPayload = 8
)

// ErrFraming is returned by Decode when a frame's end byte is missing or its
// length byte exceeds maxPayload, and by Encode when a payload exceeds
// maxPayload.
var ErrFraming = errors.New("serialtunnel: malformed frame")

// Frame is one decoded tunnel frame.
type Frame struct {
	TimestampMs uint32
	ID          uint32
	Extended    bool
	Payload     []byte
}

// Encoder writes tunnel frames to an underlying byte stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Encode writes one frame: start byte, little-endian timestamp, length
// byte, little-endian id (with the extended-origin flag folded in),
// payload, end byte.
func (e *Encoder) Encode(f Frame) error {
	if len(f.Payload) > maxPayload {
		return ErrFraming
	}

	buf := make([]byte, 0, 1+4+1+4+len(f.Payload)+1)
	buf = append(buf, startByte)

	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], f.TimestampMs)
	buf = append(buf, ts[:]...)

	buf = append(buf, byte(len(f.Payload)))

	wireID := f.ID
	if !f.Extended {
		wireID += extendedFlag
	}
	var id [4]byte
	binary.LittleEndian.PutUint32(id[:], wireID)
	buf = append(buf, id[:]...)

	buf = append(buf, f.Payload...)
	buf = append(buf, endByte)

	_, err := e.w.Write(buf)
	return err
}

// Decoder reads tunnel frames from an underlying byte stream, resynchronising
// on the next start byte after any framing error.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads and returns the next frame, skipping bytes until a start
// byte if the stream is out of sync.
func (d *Decoder) Decode() (Frame, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if b == startByte {
			break
		}
	}

	header := make([]byte, 4+1+4)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return Frame{}, err
	}
	timestamp := binary.LittleEndian.Uint32(header[0:4])
	length := int(header[4])
	if length > maxPayload {
		return Frame{}, ErrFraming
	}
	wireID := binary.LittleEndian.Uint32(header[5:9])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return Frame{}, err
		}
	}

	end, err := d.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if end != endByte {
		return Frame{}, ErrFraming
	}

	extended := wireID&extendedFlag == 0
	id := wireID
	if !extended {
		id = wireID - extendedFlag
	}

	return Frame{TimestampMs: timestamp, ID: id, Extended: extended, Payload: payload}, nil
}

// Transceiver adapts an Encoder/Decoder pair to the core bus's
// Transmitter/Receiver contract for standard (non-extended) 11-bit frames,
// letting a host-side bridge plug a serial tunnel straight into a
// PropertyRegistry. Clock supplies the outgoing timestamp; Receive blocks for
// as long as the underlying reader does, and reports io.EOF as "no frame"
// rather than as an error.
type Transceiver struct {
	enc   *Encoder
	dec   *Decoder
	Clock func() uint32
}

// NewTransceiver returns a Transceiver encoding onto w and decoding from r.
func NewTransceiver(w io.Writer, r io.Reader, clock func() uint32) *Transceiver {
	return &Transceiver{enc: NewEncoder(w), dec: NewDecoder(r), Clock: clock}
}

// Transmit encodes and writes one standard-frame tunnel message.
func (t *Transceiver) Transmit(id uint16, data []byte) error {
	ts := uint32(0)
	if t.Clock != nil {
		ts = t.Clock()
	}
	return t.enc.Encode(Frame{
		TimestampMs: ts,
		ID:          uint32(id),
		Extended:    false,
		Payload:     data,
	})
}

// Receive decodes the next frame. Extended frames (not produced by this
// schema) are passed through with their full 29-bit id truncated to
// whatever fits a uint16, since the core only ever schedules standard ids.
func (t *Transceiver) Receive() (uint16, []byte, bool, error) {
	f, err := t.dec.Decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	return uint16(f.ID), f.Payload, true, nil
}

var _ sensornetwork.Transceiver = (*Transceiver)(nil)

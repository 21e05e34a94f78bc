package cantcp

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidFrame is returned when a frame read from the wire declares a
// payload longer than the bus's 8-byte limit.
var ErrInvalidFrame = errors.New("cantcp: invalid frame")

const maxPayload = 8

// writeFrame encodes one frame as a 2-byte big-endian id, a 1-byte length,
// and the payload -- the simplest possible framing over a reliable stream,
// since TCP already gives us message boundaries via length-prefixing.
func writeFrame(w io.Writer, id uint16, data []byte) error {
	if len(data) > maxPayload {
		return ErrInvalidFrame
	}
	buf := make([]byte, 3+len(data))
	binary.BigEndian.PutUint16(buf[0:2], id)
	buf[2] = byte(len(data))
	copy(buf[3:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame decodes one frame written by writeFrame.
func readFrame(r io.Reader) (uint16, []byte, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	id := binary.BigEndian.Uint16(header[0:2])
	length := int(header[2])
	if length > maxPayload {
		return 0, nil, ErrInvalidFrame
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return id, payload, nil
}

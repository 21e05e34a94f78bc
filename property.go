package sensornetwork

import (
	"encoding/binary"
	"math"
)

// UpdateCallback is invoked by a Property when a mutation made through a
// handle returned from GetValue should be flagged as a local update on the
// enclosing PropertyRegistry.
type UpdateCallback func()

// Property is the polymorphic unit the registry manipulates: the common
// contract satisfied by BaseProperty, StructProperty and
// ExtendedStructProperty.
type Property interface {
	// Serialize returns the property's current value as wire bytes.
	Serialize() []byte
	// Deserialize decodes wire bytes into the property's value in place.
	// On a non-nil error the registry's Receive marks the entry Error,
	// counts the frame as corrupt and returns ErrDecode.
	Deserialize(data []byte) error
	// SetValue assigns a new value. ok reports whether the assignment
	// succeeded; a failed assignment leaves the property's state
	// unchanged and the registry entry untouched.
	SetValue(val interface{}) (ok bool)
	// GetValue returns the property's current value. cb is recorded (if
	// the property kind supports mutable handles) so that a later
	// in-place mutation through the returned value can flag a local
	// update via cb.
	GetValue(cb UpdateCallback) interface{}
}

// BaseProperty is an opaque placeholder: it is never a valid payload.
// Serialize returns no bytes, Deserialize always succeeds but stores
// nothing, SetValue always fails. It exists so a test-only entry can live
// in the registry without a codec.
type BaseProperty struct{}

// NewBaseProperty returns a BaseProperty.
func NewBaseProperty() *BaseProperty { return &BaseProperty{} }

func (*BaseProperty) Serialize() []byte                  { return []byte{} }
func (*BaseProperty) Deserialize([]byte) error            { return nil }
func (*BaseProperty) SetValue(interface{}) bool           { return false }
func (*BaseProperty) GetValue(UpdateCallback) interface{} { return nil }

// StructProperty wraps a fixed binary format description, analogous to
// Python's struct.pack/unpack: a sequence of big-endian scalar fields
// described by a format string of the kinds below. Deserialize fails if the
// payload length does not match the format.
//
// Supported format verbs (byte-order prefixes '>', '<', '!', '=' are skipped;
// every value is packed big-endian):
//
//	b int8   B uint8   h int16  H uint16  i int32  I uint32
//	q int64  Q uint64  f float32 (IEEE754) d float64 (IEEE754)
type StructProperty struct {
	Format string
	value  []interface{}
}

// NewStructProperty returns a StructProperty encoding/decoding the given
// format string.
func NewStructProperty(format string) *StructProperty {
	return &StructProperty{Format: format}
}

func (p *StructProperty) SetValue(val interface{}) bool {
	tuple, ok := val.([]interface{})
	if !ok {
		return false
	}
	p.value = tuple
	return true
}

func (p *StructProperty) GetValue(UpdateCallback) interface{} {
	return p.value
}

func (p *StructProperty) Serialize() []byte {
	buf, err := packStruct(p.Format, p.value)
	if err != nil {
		return nil
	}
	return buf
}

func (p *StructProperty) Deserialize(data []byte) error {
	values, err := unpackStruct(p.Format, data)
	if err != nil {
		return ErrDecode
	}
	p.value = values
	return nil
}

// packStruct and unpackStruct implement the subset of Python's struct module
// used by the reference schema: a sequence of fixed-width big-endian
// scalars, one format verb per value in p.value.
func packStruct(format string, values []interface{}) ([]byte, error) {
	verbs := parseStructFormat(format)
	if len(verbs) != len(values) {
		return nil, ErrDecode
	}
	buf := make([]byte, 0, structSize(verbs))
	for i, verb := range verbs {
		b, err := packScalar(verb, values[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func unpackStruct(format string, data []byte) ([]interface{}, error) {
	verbs := parseStructFormat(format)
	if len(data) != structSize(verbs) {
		return nil, ErrDecode
	}
	values := make([]interface{}, len(verbs))
	off := 0
	for i, verb := range verbs {
		v, n := unpackScalar(verb, data[off:])
		values[i] = v
		off += n
	}
	return values, nil
}

func parseStructFormat(format string) []byte {
	verbs := make([]byte, 0, len(format))
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '>', '<', '!', '=':
			continue
		default:
			verbs = append(verbs, format[i])
		}
	}
	return verbs
}

func structSize(verbs []byte) int {
	n := 0
	for _, v := range verbs {
		n += scalarSize(v)
	}
	return n
}

func scalarSize(verb byte) int {
	switch verb {
	case 'b', 'B':
		return 1
	case 'h', 'H':
		return 2
	case 'i', 'I', 'f':
		return 4
	case 'q', 'Q', 'd':
		return 8
	}
	return 0
}

func packScalar(verb byte, val interface{}) ([]byte, error) {
	buf := make([]byte, scalarSize(verb))
	switch verb {
	case 'b':
		buf[0] = byte(int8(asInt64(val)))
	case 'B':
		buf[0] = byte(asInt64(val))
	case 'h':
		binary.BigEndian.PutUint16(buf, uint16(int16(asInt64(val))))
	case 'H':
		binary.BigEndian.PutUint16(buf, uint16(asInt64(val)))
	case 'i':
		binary.BigEndian.PutUint32(buf, uint32(int32(asInt64(val))))
	case 'I':
		binary.BigEndian.PutUint32(buf, uint32(asInt64(val)))
	case 'q':
		binary.BigEndian.PutUint64(buf, uint64(asInt64(val)))
	case 'Q':
		binary.BigEndian.PutUint64(buf, uint64(asInt64(val)))
	case 'f':
		f, _ := toFloat64(val)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
	case 'd':
		f, _ := toFloat64(val)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	default:
		return nil, ErrInvalidValue
	}
	return buf, nil
}

func unpackScalar(verb byte, data []byte) (interface{}, int) {
	n := scalarSize(verb)
	switch verb {
	case 'b':
		return int64(int8(data[0])), n
	case 'B':
		return int64(data[0]), n
	case 'h':
		return int64(int16(binary.BigEndian.Uint16(data))), n
	case 'H':
		return int64(binary.BigEndian.Uint16(data)), n
	case 'i':
		return int64(int32(binary.BigEndian.Uint32(data))), n
	case 'I':
		return int64(binary.BigEndian.Uint32(data)), n
	case 'q':
		return int64(binary.BigEndian.Uint64(data)), n
	case 'Q':
		return int64(binary.BigEndian.Uint64(data)), n
	case 'f':
		return float64(math.Float32frombits(binary.BigEndian.Uint32(data))), n
	case 'd':
		return math.Float64frombits(binary.BigEndian.Uint64(data)), n
	}
	return nil, n
}

func asInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// ExtendedStructProperty wraps a bit-packed ExtendedStruct. SetValue accepts
// a map and writes only the provided keys; GetValue exposes a mutable
// handle that captures cb. SetField and SetValue called through the handle
// flag a local update in the enclosing registry via cb; the embedded
// ExtendedStruct's own setters (Set, SetBit, SetSliceInt, SetSliceBytes)
// write the buffer without invoking cb.
type ExtendedStructProperty struct {
	*ExtendedStruct
	updateCallback UpdateCallback
}

// NewExtendedStructProperty lays out fields the same way NewExtendedStruct
// does, and panics if the schema is malformed (duplicate names) since this
// is always a setup-time error in practice -- callers that need the error
// returned should use NewExtendedStruct directly and wrap it.
func NewExtendedStructProperty(fields ...Field) *ExtendedStructProperty {
	s, err := NewExtendedStruct(fields...)
	if err != nil {
		panic(err)
	}
	return &ExtendedStructProperty{ExtendedStruct: s}
}

func (p *ExtendedStructProperty) SetValue(val interface{}) bool {
	m, ok := val.(map[string]interface{})
	if !ok {
		return false
	}
	saved := append([]byte(nil), p.buf...)
	for k, v := range m {
		if _, known := p.byName[k]; !known {
			continue
		}
		if err := p.Set(k, v); err != nil {
			copy(p.buf, saved)
			return false
		}
	}
	if p.updateCallback != nil {
		p.updateCallback()
	}
	return true
}

func (p *ExtendedStructProperty) GetValue(cb UpdateCallback) interface{} {
	p.updateCallback = cb
	return p
}

func (p *ExtendedStructProperty) Deserialize(data []byte) error {
	return p.SetBytes(data)
}

func (p *ExtendedStructProperty) Serialize() []byte {
	return p.Bytes()
}

// SetField writes a single named field through the handle, flagging a local
// update via the recorded callback, mirroring the Python
// ExtendedStructProperty.__setitem__ hook.
func (p *ExtendedStructProperty) SetField(name string, val interface{}) error {
	if err := p.Set(name, val); err != nil {
		return err
	}
	if p.updateCallback != nil {
		p.updateCallback()
	}
	return nil
}

package sensornetwork

import "math"

// Field is a single named bitfield inside an ExtendedStruct's schema. A
// field only knows how to translate between a Go value and the raw bits of
// its own slice; it never sees the rest of the struct's buffer.
type Field interface {
	// Name returns the field's identifier, unique within its struct.
	Name() string
	// BitWidth returns the number of bits this field occupies.
	BitWidth() int
	// Serialize encodes val into a little-endian byte slice exactly
	// ceil(BitWidth()/8) bytes long.
	Serialize(val interface{}) ([]byte, error)
	// Deserialize decodes a little-endian byte slice exactly
	// ceil(BitWidth()/8) bytes long into a value. Never surfaced for
	// ReservedField.
	Deserialize(data []byte) (interface{}, error)
}

func byteLen(bitWidth int) int {
	return (bitWidth + 7) / 8
}

// BoolField is a 1-bit field: true iff the low bit of its slice is set.
type BoolField struct {
	FieldName string
}

// NewBoolField returns a 1-bit boolean field named name.
func NewBoolField(name string) *BoolField {
	return &BoolField{FieldName: name}
}

func (f *BoolField) Name() string  { return f.FieldName }
func (f *BoolField) BitWidth() int { return 1 }

func (f *BoolField) Serialize(val interface{}) ([]byte, error) {
	if truthy(val) {
		return []byte{0x1}, nil
	}
	return []byte{0x0}, nil
}

func (f *BoolField) Deserialize(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, ErrDecode
	}
	return data[0]&0x1 != 0, nil
}

func truthy(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

// ReservedField consumes width bits on the wire but is never exposed through
// ExtendedStruct's name-keyed access: Serialize always yields zero bits,
// Deserialize is never called by ExtendedStruct for a reserved field name
// (reserved fields have no name and so cannot be looked up by one).
type ReservedField struct {
	Width int
}

// NewReservedField returns a field that reserves width bits, always zero.
func NewReservedField(width int) *ReservedField {
	return &ReservedField{Width: width}
}

func (f *ReservedField) Name() string { return "" }
func (f *ReservedField) BitWidth() int { return f.Width }

func (f *ReservedField) Serialize(interface{}) ([]byte, error) {
	return make([]byte, byteLen(f.Width)), nil
}

func (f *ReservedField) Deserialize([]byte) (interface{}, error) {
	return nil, nil
}

// IntField encodes a real number v as an integer-backed affine transform:
// stored = (v-Base)/Scale truncated toward zero, packed little-endian into
// Width bits,
// optionally two's-complement if Signed. See spec §4.2 for the exact
// quantisation/overflow/sign-extension algorithm.
type IntField struct {
	FieldName string
	Width     int
	Base      float64
	Scale     float64
	Signed    bool
}

// NewIntField returns an affine integer field. Scale defaults to 1.0 and
// Signed to false if not set via the returned struct's fields.
func NewIntField(name string, width int, base, scale float64, signed bool) *IntField {
	return &IntField{FieldName: name, Width: width, Base: base, Scale: scale, Signed: signed}
}

func (f *IntField) Name() string { return f.FieldName }
func (f *IntField) BitWidth() int { return f.Width }

func (f *IntField) scale() float64 {
	if f.Scale == 0 {
		return 1.0
	}
	return f.Scale
}

// quantise implements the reference's round((v-base)/scale) step, truncating
// toward zero: both serialisation and deserialisation must agree on the
// rounding mode, and truncation toward zero is the documented reference
// behaviour (spec §9 Open Questions).
func (f *IntField) quantise(v float64) int64 {
	return int64((v - f.Base) / f.scale())
}

func (f *IntField) unsignedWidth() uint {
	w := f.Width
	if f.Signed {
		w--
	}
	return uint(w)
}

func (f *IntField) Serialize(val interface{}) ([]byte, error) {
	v, ok := toFloat64(val)
	if !ok {
		return nil, ErrInvalidValue
	}

	q := f.quantise(v)
	uw := f.unsignedWidth()

	var unsigned uint64
	if q < 0 {
		if !f.Signed {
			return nil, ErrOverflow
		}
		mag := uint64(-q)
		// The negative side has one more legal magnitude than the positive
		// side: -2^(w-1) is representable (mag == 1<<uw), only mag >
		// 1<<uw overflows.
		if uw < 64 && mag > uint64(1)<<uw {
			return nil, ErrOverflow
		}
		// two's complement in Width bits
		unsigned = (^mag + 1) & fullMask(f.Width)
	} else {
		mag := uint64(q)
		if uw < 64 && mag>>uw != 0 {
			return nil, ErrOverflow
		}
		unsigned = mag
	}

	buf := make([]byte, byteLen(f.Width))
	for i := 0; i < len(buf); i++ {
		buf[i] = byte(unsigned >> uint(8*i))
	}
	return buf, nil
}

func (f *IntField) Deserialize(data []byte) (interface{}, error) {
	if len(data) != byteLen(f.Width) {
		return nil, ErrDecode
	}

	var unsigned uint64
	for i := len(data) - 1; i >= 0; i-- {
		unsigned = (unsigned << 8) | uint64(data[i])
	}
	unsigned &= fullMask(f.Width)

	uw := f.unsignedWidth()
	var signed int64
	if f.Signed && (unsigned>>uw)&0x1 != 0 {
		signed = -int64((^unsigned + 1) & fullMask(f.Width))
	} else {
		signed = int64(unsigned)
	}

	return f.Base + float64(signed)*f.scale(), nil
}

func fullMask(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << uint(width)) - 1
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// EnumField behaves as an IntField at the wire but returns a symbolic label
// on read, falling back to the raw integer when the decoded value does not
// match any known label.
type EnumField struct {
	*IntField
	Labels map[int64]string
	Values map[string]int64
}

// NewEnumField returns an enum field backed by an unsigned IntField of the
// given width, with pairs mapping label -> integer value.
func NewEnumField(name string, width int, pairs ...EnumValue) *EnumField {
	labels := make(map[int64]string, len(pairs))
	values := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		labels[p.Value] = p.Label
		values[p.Label] = p.Value
	}
	return &EnumField{
		IntField: NewIntField(name, width, 0, 1, false),
		Labels:   labels,
		Values:   values,
	}
}

// EnumValue is a single (label, value) pair for an EnumField's schema.
type EnumValue struct {
	Label string
	Value int64
}

func (f *EnumField) Serialize(val interface{}) ([]byte, error) {
	if s, ok := val.(string); ok {
		v, known := f.Values[s]
		if !known {
			return nil, ErrInvalidValue
		}
		return f.IntField.Serialize(float64(v))
	}
	return f.IntField.Serialize(val)
}

func (f *EnumField) Deserialize(data []byte) (interface{}, error) {
	raw, err := f.IntField.Deserialize(data)
	if err != nil {
		return nil, err
	}
	v := int64(raw.(float64))
	if label, ok := f.Labels[v]; ok {
		return label, nil
	}
	return v, nil
}

package sensornetwork

import "errors"

var (
	// ErrInvalidID signals that a CAN identifier passed to AddProperty does
	// not fit in 11 bits.
	ErrInvalidID = errors.New("sensornetwork: invalid 11-bit can id")
	// ErrInvalidName signals that a property name passed to AddProperty is
	// empty.
	ErrInvalidName = errors.New("sensornetwork: invalid property name")
	// ErrDuplicateKey signals that the id or name passed to AddProperty is
	// already registered.
	ErrDuplicateKey = errors.New("sensornetwork: id or name already registered")
	// ErrInvalidProperty signals that AddProperty was given a nil property.
	ErrInvalidProperty = errors.New("sensornetwork: invalid property")
	// ErrNotFound signals that a key passed to the registry is not
	// registered under any id or name.
	ErrNotFound = errors.New("sensornetwork: property not found")
	// ErrUnknownID signals that an inbound frame's CAN id is not
	// registered in the schema.
	ErrUnknownID = errors.New("sensornetwork: unknown can id")

	// ErrOverflow is returned by IntField.Serialize when the quantised
	// value does not fit the field's bit width.
	ErrOverflow = errors.New("sensornetwork: bitfield overflow")
	// ErrInvalidValue is returned when a value handed to a field encoder
	// is not of a type the field understands.
	ErrInvalidValue = errors.New("sensornetwork: invalid value for field")

	// ErrDecode is returned by a Property's Deserialize when the supplied
	// bytes cannot be decoded (wrong length, bad bits). The registry's
	// Receive marks the entry Error, counts the frame as corrupt and
	// returns ErrDecode; EventLoop reports it as a Warning and keeps
	// ticking.
	ErrDecode = errors.New("sensornetwork: decode error")

	// ErrBitRange is returned when a bit index or bit-slice falls outside
	// an ExtendedStruct's declared bit length.
	ErrBitRange = errors.New("sensornetwork: bit index out of range")
	// ErrUnknownField is returned when a field name is not present in an
	// ExtendedStruct's schema.
	ErrUnknownField = errors.New("sensornetwork: unknown field name")
	// ErrDuplicateField is returned by NewExtendedStruct when two fields
	// share a name.
	ErrDuplicateField = errors.New("sensornetwork: duplicate field name")
)

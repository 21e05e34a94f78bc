package sensornetwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransmitter records every frame handed to it and can be made to fail.
type fakeTransmitter struct {
	sent []frame
	fail bool
}

func (f *fakeTransmitter) Transmit(id uint16, data []byte) error {
	if f.fail {
		return ErrNotFound // any error value; content is irrelevant here
	}
	f.sent = append(f.sent, frame{id: id, data: append([]byte(nil), data...)})
	return nil
}

func TestLocalAssignmentThenTick(t *testing.T) {
	// Scenario 1 from spec.md §8.
	tx := &fakeTransmitter{}
	reg := NewPropertyRegistry(10000, tx, nil)
	require.NoError(t, reg.AddProperty(0, "a", NewStructProperty(">B")))

	require.NoError(t, reg.Set("a", []interface{}{123}))
	status, _ := reg.Status("a")
	assert.Equal(t, StatusLocal, status.Kind)

	warnings := reg.EventLoop(0)
	assert.Empty(t, warnings)
	require.Len(t, tx.sent, 1)
	assert.Equal(t, uint16(0), tx.sent[0].id)
	assert.Equal(t, []byte{0x7B}, tx.sent[0].data)

	assert.Empty(t, reg.outgoingSeq)
	status, _ = reg.Status("a")
	assert.Equal(t, StatusLocal, status.Kind)
}

func TestCrossRegistryRoundTrip(t *testing.T) {
	// Scenario 2 from spec.md §8.
	a := NewDummyTransceiver()
	b := NewDummyTransceiver()
	a.Peer = b
	b.Peer = a

	regA := NewPropertyRegistry(10000, a, a)
	regB := NewPropertyRegistry(10000, b, b)

	fields := func() []Field {
		return []Field{
			NewIntField("temperature", 16, -200, 0.01, false),
			NewIntField("humidity", 8, 0, 100.0/255.0, false),
			NewIntField("pressure", 16, 800, 0.01, false),
		}
	}
	require.NoError(t, regA.AddProperty(0x700, "ambient", NewExtendedStructProperty(fields()...)))
	require.NoError(t, regB.AddProperty(0x700, "ambient", NewExtendedStructProperty(fields()...)))

	require.NoError(t, regA.Set("ambient", map[string]interface{}{
		"temperature": 21.57,
		"humidity":    50.0,
		"pressure":    1013.25,
	}))

	regA.EventLoop(0)
	regB.EventLoop(0)

	status, ok := regB.Status("ambient")
	require.True(t, ok)
	assert.Equal(t, StatusRemote, status.Kind)

	val, ok := regB.Get("ambient", 0)
	require.True(t, ok)
	es := val.(*ExtendedStructProperty)

	temp, _ := es.Get("temperature")
	humidity, _ := es.Get("humidity")
	pressure, _ := es.Get("pressure")
	assert.InDelta(t, 21.57, temp.(float64), 0.01)
	assert.InDelta(t, 50.0, humidity.(float64), 0.5)
	assert.InDelta(t, 1013.25, pressure.(float64), 0.01)
}

func TestExpiry(t *testing.T) {
	// Scenario 3 from spec.md §8.
	reg := NewPropertyRegistry(100, nil, nil)
	require.NoError(t, reg.AddProperty(0, "a", NewStructProperty(">B")))

	require.NoError(t, reg.Receive(0, []byte{0x01}, 0))
	val, ok := reg.Get("a", 0)
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(1)}, val)
	status, _ := reg.Status("a")
	assert.Equal(t, StatusRemote, status.Kind)

	reg.EventLoop(150)
	_, ok = reg.Get("a", 150)
	assert.False(t, ok)
	status, _ = reg.Status("a")
	assert.Equal(t, StatusExpired, status.Kind)
}

func TestCorruptFrame(t *testing.T) {
	// Scenario 4 from spec.md §8.
	reg := NewPropertyRegistry(10000, nil, nil)
	prop := NewExtendedStructProperty(NewIntField("x", 40, 0, 1, false)) // 5 bytes
	require.NoError(t, reg.AddProperty(1, "p", prop))

	err := reg.Receive(1, []byte{0x01, 0x02, 0x03}, 0)
	assert.ErrorIs(t, err, ErrDecode)

	_, ok := reg.Get("p", 0)
	assert.False(t, ok)
	status, _ := reg.Status("p")
	assert.Equal(t, StatusError, status.Kind)
	unknownID, corrupt, _ := reg.FlushWarnings()
	assert.Equal(t, 0, unknownID)
	assert.Equal(t, 1, corrupt)
}

func TestUnknownID(t *testing.T) {
	// Scenario 5 from spec.md §8.
	reg := NewPropertyRegistry(10000, nil, nil)
	require.NoError(t, reg.AddProperty(0x700, "p", NewBaseProperty()))

	err := reg.Receive(0x701, []byte{}, 0)
	assert.ErrorIs(t, err, ErrUnknownID)

	unknownID, corrupt, _ := reg.FlushWarnings()
	assert.Equal(t, 1, unknownID)
	assert.Equal(t, 0, corrupt)
}

func TestDuplicateWriter(t *testing.T) {
	// Scenario 6 from spec.md §8.
	reg := NewPropertyRegistry(10000, nil, nil)
	require.NoError(t, reg.AddProperty(0, "a", NewStructProperty(">B")))

	require.NoError(t, reg.Set("a", []interface{}{1}))
	status, _ := reg.Status("a")
	require.Equal(t, StatusLocal, status.Kind)

	require.NoError(t, reg.Receive(0, []byte{0x02}, 0))
	status, _ = reg.Status("a")
	assert.Equal(t, StatusRemote, status.Kind)

	_, _, dup := reg.FlushWarnings()
	require.NotNil(t, dup)
	assert.Equal(t, "a", dup.Name)
}

func TestAddPropertyValidation(t *testing.T) {
	reg := NewPropertyRegistry(1000, nil, nil)

	assert.NoError(t, reg.AddProperty(0x7FF, "max-id", NewBaseProperty()))
	assert.ErrorIs(t, reg.AddProperty(0x800, "too-big", NewBaseProperty()), ErrInvalidID)
	assert.ErrorIs(t, reg.AddProperty(1, "", NewBaseProperty()), ErrInvalidName)
	assert.ErrorIs(t, reg.AddProperty(1, "dup", nil), ErrInvalidProperty)

	require.NoError(t, reg.AddProperty(2, "dup", NewBaseProperty()))
	assert.ErrorIs(t, reg.AddProperty(2, "other-name", NewBaseProperty()), ErrDuplicateKey)
	assert.ErrorIs(t, reg.AddProperty(3, "dup", NewBaseProperty()), ErrDuplicateKey)
}

func TestEventLoopOrderingSendBeforeExpireBeforeReceive(t *testing.T) {
	tx := &fakeTransmitter{}
	reg := NewPropertyRegistry(10, tx, nil)
	require.NoError(t, reg.AddProperty(0, "a", NewStructProperty(">B")))

	// Prime a remote value that is about to expire.
	require.NoError(t, reg.Receive(0, []byte{0x09}, 0))
	status, _ := reg.Status("a")
	require.Equal(t, StatusRemote, status.Kind)

	// A local write right before the tick that would otherwise expire it
	// must win: send-then-expire-then-receive means the local write from
	// before this tick is transmitted, and since the entry is now Local
	// (not Remote), the expiry phase must not clobber it back to Expired.
	require.NoError(t, reg.Set("a", []interface{}{42}))
	reg.EventLoop(20)

	status, _ = reg.Status("a")
	assert.Equal(t, StatusLocal, status.Kind)
	require.Len(t, tx.sent, 1)
	assert.Equal(t, []byte{42}, tx.sent[0].data)
}

func TestTransmitFailureDoesNotRequeue(t *testing.T) {
	tx := &fakeTransmitter{fail: true}
	reg := NewPropertyRegistry(1000, tx, nil)
	require.NoError(t, reg.AddProperty(0, "a", NewStructProperty(">B")))
	require.NoError(t, reg.Set("a", []interface{}{1}))

	warnings := reg.EventLoop(0)
	assert.Len(t, warnings, 1)
	assert.Empty(t, tx.sent)
	assert.Empty(t, reg.outgoingSeq)
}

func TestNamesInsertionOrder(t *testing.T) {
	reg := NewPropertyRegistry(1000, nil, nil)
	require.NoError(t, reg.AddProperty(1, "first", NewBaseProperty()))
	require.NoError(t, reg.AddProperty(2, "second", NewBaseProperty()))
	require.NoError(t, reg.AddProperty(3, "third", NewBaseProperty()))
	assert.Equal(t, []string{"first", "second", "third"}, reg.Names())
}

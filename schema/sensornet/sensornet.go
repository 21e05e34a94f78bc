// Package sensornet is the concrete property schema shared by every node on
// this deployment's bus: device ID allocation, CAN ID formula, the common
// status property, and the weather-station domain properties.
package sensornet

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/Sustaingineering/sensornetwork"
)

// TransmitInterval is how often a node should re-check its sensors and run
// an event loop tick, in milliseconds.
const TransmitInterval = 2000

// DataTimeout is how long a Remote value remains valid with no refresh, in
// milliseconds.
const DataTimeout = 10000

// ProtocolVersion is incremented whenever a breaking schema change is made.
// Receivers compare it modulo 256; addition of properties does not require
// a bump, removal or reinterpretation does.
const ProtocolVersion = 0

// Device ID allocation: a 4-bit namespace, with DeviceStatus reserved for
// status messages, which therefore get the highest CAN IDs (see CANID).
const (
	DeviceWeatherStation byte = 0x0
	DeviceStatus         byte = 0xF
)

// ResetReason enumerates why a device's CPU last reset, reported in the
// status property to help detect abnormal restarts.
var ResetReason = []sensornetwork.EnumValue{
	{Label: "POWER_ON", Value: 0},
	{Label: "BROWNOUT", Value: 1},
	{Label: "SOFTWARE", Value: 2},
	{Label: "DEEP_SLEEP_ALARM", Value: 3},
	{Label: "RESET_PIN", Value: 4},
	{Label: "WATCHDOG", Value: 5},
	{Label: "RESCUE_DEBUG", Value: 6},
	{Label: "UNKNOWN", Value: 7},
}

// CANID computes a property's 11-bit bus identifier from its device and
// field IDs. The top three bits are always set, giving status and domain
// traffic on this schema a recognisable, low-priority subrange relative to
// any future reserved IDs.
func CANID(deviceID, fieldID byte) uint16 {
	return 0x700 | (uint16(deviceID)&0xF)<<4 | (uint16(fieldID) & 0xF)
}

// NewStatusProperty builds the common per-device status payload: a release
// flag, a first-message-since-boot flag, a 3-bit reset reason, 3 reserved
// bits to pad byte 1, and an 8-bit protocol version in byte 2.
func NewStatusProperty() *sensornetwork.ExtendedStructProperty {
	return sensornetwork.NewExtendedStructProperty(
		sensornetwork.NewBoolField("release_build"),
		sensornetwork.NewBoolField("is_first_message"),
		sensornetwork.NewEnumField("reset_reason", 3, ResetReason...),
		sensornetwork.NewReservedField(3),
		sensornetwork.NewIntField("proto_version", 8, 0, 1, false),
	)
}

// NewWeatherAmbientProperty packs a weather station's temperature, humidity
// and pressure into 5 bytes.
func NewWeatherAmbientProperty() *sensornetwork.ExtendedStructProperty {
	return sensornetwork.NewExtendedStructProperty(
		sensornetwork.NewIntField("temperature", 16, -200, 0.01, false),     // -200..455.35 C
		sensornetwork.NewIntField("humidity", 8, 0, 100.0/255.0, false),      // 0..100 %
		sensornetwork.NewIntField("pressure", 16, 800, 0.01, false),          // 800..1455.35 hPa
	)
}

// NewWeatherWindspeedProperty packs 10-minute, gust and instantaneous wind
// speed readings into 4.5 bytes (12 bits each).
func NewWeatherWindspeedProperty() *sensornetwork.ExtendedStructProperty {
	return sensornetwork.NewExtendedStructProperty(
		sensornetwork.NewIntField("10min", 12, 0, 0.1, false),   // 0..409.5 km/h
		sensornetwork.NewIntField("gust", 12, 0, 0.1, false),    // 0..409.5 km/h
		sensornetwork.NewIntField("instant", 12, 0, 0.1, false), // 0..409.5 km/h
	)
}

// NewWeatherWindDirProperty packs 10-minute, gust and instantaneous wind
// direction readings into 4.5 bytes (12 bits each).
func NewWeatherWindDirProperty() *sensornetwork.ExtendedStructProperty {
	scale := 360.0 / 4096
	return sensornetwork.NewExtendedStructProperty(
		sensornetwork.NewIntField("10min", 12, 0, scale, false),
		sensornetwork.NewIntField("gust", 12, 0, scale, false),
		sensornetwork.NewIntField("instant", 12, 0, scale, false),
	)
}

// NewWeatherRainProperty packs 10-minute, hourly and since-boot rainfall
// totals into 3.5 bytes.
func NewWeatherRainProperty() *sensornetwork.ExtendedStructProperty {
	return sensornetwork.NewExtendedStructProperty(
		sensornetwork.NewIntField("10min", 12, 0, 0.1, false),  // 0..409.5 mm
		sensornetwork.NewIntField("hourly", 12, 0, 0.1, false), // 0..409.5 mm
		sensornetwork.NewIntField("boot", 4, 0, 0.1, false),    // 0..1.5 mm
	)
}

// Registry is a PropertyRegistry pre-populated with this deployment's
// schema: one status property per represented device plus the weather
// station domain properties.
type Registry struct {
	*sensornetwork.PropertyRegistry
	firstMessage bool

	// Logger, if set, receives structured diagnostics for status
	// transitions and the warnings an event loop tick surfaces. Nil is a
	// valid, silent default: the core registry stays logging-free, and
	// callers that don't care about diagnostics never pay for them.
	Logger *zap.SugaredLogger
}

// NewRegistry builds a Registry and registers every schema property.
// transmitter and/or receiver may be nil.
func NewRegistry(transmitter sensornetwork.Transmitter, receiver sensornetwork.Receiver) (*Registry, error) {
	r := &Registry{
		PropertyRegistry: sensornetwork.NewPropertyRegistry(DataTimeout, transmitter, receiver),
		firstMessage:     true,
	}

	if err := r.AddProperty(CANID(DeviceStatus, DeviceWeatherStation), "weatherstation_status", NewStatusProperty()); err != nil {
		return nil, err
	}
	if err := r.AddProperty(CANID(DeviceWeatherStation, 0), "weatherstation_ambient", NewWeatherAmbientProperty()); err != nil {
		return nil, err
	}
	if err := r.AddProperty(CANID(DeviceWeatherStation, 1), "weatherstation_windspeed", NewWeatherWindspeedProperty()); err != nil {
		return nil, err
	}
	if err := r.AddProperty(CANID(DeviceWeatherStation, 2), "weatherstation_winddir", NewWeatherWindDirProperty()); err != nil {
		return nil, err
	}
	if err := r.AddProperty(CANID(DeviceWeatherStation, 3), "weatherstation_rain", NewWeatherRainProperty()); err != nil {
		return nil, err
	}
	return r, nil
}

// ResetReasonFunc reports why the current process last started. Production
// builds wire this to the platform's reset-cause register; it defaults to
// always reporting POWER_ON.
type ResetReasonFunc func() string

// AssignStatus writes the device's status property: release_build is
// always false (debug builds only use this schema today), is_first_message
// is true exactly once per process lifetime, reset_reason comes from
// reason, and proto_version is ProtocolVersion modulo 256.
func (r *Registry) AssignStatus(reason ResetReasonFunc) error {
	if reason == nil {
		reason = func() string { return "POWER_ON" }
	}
	reasonStr := reason()
	err := r.Set("weatherstation_status", map[string]interface{}{
		"release_build":    false,
		"is_first_message": r.firstMessage,
		"reset_reason":     reasonStr,
		"proto_version":    ProtocolVersion % 256,
	})
	if err != nil {
		return err
	}
	if r.Logger != nil {
		r.Logger.Debugw("assigned status",
			"is_first_message", r.firstMessage,
			"reset_reason", reasonStr,
		)
	}
	r.firstMessage = false
	return nil
}

// LogWarnings reports an event loop tick's warnings and the registry's
// unknown-id/corrupt-frame/duplicate-writer counters through Logger. A nil
// Logger makes this a no-op, so callers that don't want diagnostics can
// call it unconditionally.
func (r *Registry) LogWarnings(warnings []sensornetwork.Warning) {
	if r.Logger == nil {
		return
	}
	for _, w := range warnings {
		r.Logger.Warnw("event loop warning", "error", w.Err)
	}
	if unknownID, corrupt, dup := r.FlushWarnings(); unknownID > 0 || corrupt > 0 || dup != nil {
		fields := []interface{}{"unknown_id_count", unknownID, "corrupt_count", corrupt}
		if dup != nil {
			fields = append(fields, "duplicate_writer", dup.Name)
		}
		r.Logger.Infow("registry warnings", fields...)
	}
}

// FormatVersion renders a protocol version modulo 256 as a decimal string.
func FormatVersion(v int) string {
	return strconv.Itoa(v % 256)
}

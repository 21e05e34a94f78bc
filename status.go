package sensornetwork

// StatusKind enumerates the five points of the property status lattice
// described in spec.md: a property starts with NoData, becomes Local once
// assigned locally, becomes Remote once a value arrives over the bus,
// Expired once a Remote value's timeout elapses, and Error once a decode
// failure is recorded against it. Error and Expired are both terminal until
// a fresh valid update arrives.
type StatusKind int

const (
	// StatusNoData is the initial state: no value has ever been assigned
	// or received.
	StatusNoData StatusKind = iota
	// StatusLocal means the value was last set by this process.
	StatusLocal
	// StatusRemote means the value was last set by an inbound frame and
	// has not yet expired.
	StatusRemote
	// StatusExpired means a Remote value's data timeout has elapsed with
	// no refresh.
	StatusExpired
	// StatusError means the last inbound frame for this property failed
	// to decode.
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusNoData:
		return "NoData"
	case StatusLocal:
		return "Local"
	case StatusRemote:
		return "Remote"
	case StatusExpired:
		return "Expired"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// PropertyStatus is a point in the status lattice. Expiry is only
// meaningful when Kind is StatusRemote.
type PropertyStatus struct {
	Kind   StatusKind
	Expiry Instant
}

// NoDataStatus returns the initial status of a freshly added property.
func NoDataStatus() PropertyStatus {
	return PropertyStatus{Kind: StatusNoData}
}

// LocalStatus returns the status recorded after a local assignment.
func LocalStatus() PropertyStatus {
	return PropertyStatus{Kind: StatusLocal}
}

// RemoteStatus returns the status recorded after a successful inbound
// decode, due to expire at expiry.
func RemoteStatus(expiry Instant) PropertyStatus {
	return PropertyStatus{Kind: StatusRemote, Expiry: expiry}
}

// ExpiredStatus returns the status recorded once a Remote value's timeout
// has elapsed.
func ExpiredStatus() PropertyStatus {
	return PropertyStatus{Kind: StatusExpired}
}

// ErrorStatus returns the status recorded after a failed inbound decode.
func ErrorStatus() PropertyStatus {
	return PropertyStatus{Kind: StatusError}
}

// Valid reports whether the property currently holds a value fit for use:
// true for Local and for Remote that has not yet expired relative to now.
// Expired, Error and NoData are all invalid.
func (s PropertyStatus) Valid(now Instant) bool {
	switch s.Kind {
	case StatusLocal:
		return true
	case StatusRemote:
		return now.Before(s.Expiry)
	default:
		return false
	}
}

// IsLocal reports whether this status was set by a local assignment.
func (s PropertyStatus) IsLocal() bool { return s.Kind == StatusLocal }

// IsExpired reports whether a Remote status is due to expire at or before
// now. Only meaningful for Kind == StatusRemote; other kinds never expire
// on their own.
func (s PropertyStatus) IsExpired(now Instant) bool {
	return s.Kind == StatusRemote && now.AtOrAfter(s.Expiry)
}

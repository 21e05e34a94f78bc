package sensornetwork

// Instant is an opaque wrapper over a monotonic millisecond counter.
//
// Arithmetic on Instants is wrap-safe: subtraction is computed as a signed
// delta of the underlying uint32 counters, matching the reference
// implementation's use of adafruit_ticks (ticks_diff/ticks_add), which
// interprets (a-b) mod 2^32 as a signed value. Comparisons go through that
// delta rather than an absolute less-than, so a single wrap of the counter
// does not corrupt ordering.
type Instant uint32

// Clock returns the current Instant, e.g. from a monotonic millisecond
// counter derived from time.Now(). PropertyRegistry does not hold a Clock:
// its Receive, Get and EventLoop take the current Instant as an argument.
type Clock func() Instant

// Add returns the Instant that is delta milliseconds after i.
func (i Instant) Add(delta uint32) Instant {
	return i + Instant(delta)
}

// Sub returns the signed millisecond delta i-other, correct across one wrap
// of the underlying counter.
func (i Instant) Sub(other Instant) int32 {
	return int32(i - other)
}

// Before reports whether i is strictly before other.
func (i Instant) Before(other Instant) bool {
	return i.Sub(other) < 0
}

// After reports whether i is strictly after other.
func (i Instant) After(other Instant) bool {
	return i.Sub(other) > 0
}

// AtOrAfter reports whether i is equal to or after other. Expiry comparisons
// use this (delta <= 0 means "due"), never an absolute "<", per spec.
func (i Instant) AtOrAfter(other Instant) bool {
	return i.Sub(other) >= 0
}

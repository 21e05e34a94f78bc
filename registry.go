package sensornetwork

// PropertyEntry is the stable (can_id, name, property, status) tuple the
// registry indexes under both of its keys. Mutation replaces status as a
// whole value; the triple (id, name, property) never changes after
// AddProperty.
type PropertyEntry struct {
	CANID    uint16
	Name     string
	Property Property
	Status   PropertyStatus
}

// PropertyRegistry owns a fixed schema of properties and drives their
// status lattice through an event loop tick. It is not safe for concurrent
// use: the reference design is strictly single-threaded cooperative.
type PropertyRegistry struct {
	byID   map[uint16]*PropertyEntry
	byName map[string]*PropertyEntry
	order  []string // insertion order of names, for deterministic iteration

	outgoing    map[*PropertyEntry]struct{}
	outgoingSeq []*PropertyEntry // preserves drain order alongside the dedup set

	expiryQueue []*PropertyEntry

	dataTimeout uint32

	transmitter Transmitter
	receiver    Receiver

	countUnknownID    int
	countCorrupt      int
	idLocalTransition *PropertyEntry
}

// NewPropertyRegistry returns an empty registry with the given remote data
// timeout in milliseconds. transmitter and/or receiver may be nil: a
// transmit-only node supplies only a transmitter, a receive-only node only
// a receiver.
func NewPropertyRegistry(dataTimeout uint32, transmitter Transmitter, receiver Receiver) *PropertyRegistry {
	return &PropertyRegistry{
		byID:        make(map[uint16]*PropertyEntry),
		byName:      make(map[string]*PropertyEntry),
		outgoing:    make(map[*PropertyEntry]struct{}),
		dataTimeout: dataTimeout,
		transmitter: transmitter,
		receiver:    receiver,
	}
}

// AddProperty registers a new property under both its CAN ID and name.
// canID must fit in 11 bits. Both keys must be previously unused.
func (r *PropertyRegistry) AddProperty(canID uint16, name string, prop Property) error {
	if canID&^0x7FF != 0 {
		return ErrInvalidID
	}
	if name == "" {
		return ErrInvalidName
	}
	if prop == nil {
		return ErrInvalidProperty
	}
	if _, dup := r.byID[canID]; dup {
		return ErrDuplicateKey
	}
	if _, dup := r.byName[name]; dup {
		return ErrDuplicateKey
	}

	entry := &PropertyEntry{
		CANID:    canID,
		Name:     name,
		Property: prop,
		Status:   NoDataStatus(),
	}
	r.byID[canID] = entry
	r.byName[name] = entry
	r.order = append(r.order, name)
	return nil
}

func (r *PropertyRegistry) lookup(key interface{}) (*PropertyEntry, bool) {
	switch k := key.(type) {
	case string:
		e, ok := r.byName[k]
		return e, ok
	case uint16:
		e, ok := r.byID[k]
		return e, ok
	case int:
		e, ok := r.byID[uint16(k)]
		return e, ok
	default:
		return nil, false
	}
}

// Get reads a property by name or CAN ID (uint16/int). It returns
// (value, true) only if the entry's status is currently valid (Local, or
// Remote not yet expired); an absent or stale entry returns (nil, false).
func (r *PropertyRegistry) Get(key interface{}, now Instant) (interface{}, bool) {
	entry, ok := r.lookup(key)
	if !ok {
		return nil, false
	}
	if !entry.Status.Valid(now) {
		return nil, false
	}
	return entry.Property.GetValue(func() { r.flagLocalUpdate(entry) }), true
}

// Set writes a value into a property by name or CAN ID. On success the
// entry is enqueued for the next outgoing drain and its status becomes
// Local. On failure (set_value rejects the value, or the key is unknown)
// no state changes.
func (r *PropertyRegistry) Set(key interface{}, val interface{}) error {
	entry, ok := r.lookup(key)
	if !ok {
		return ErrNotFound
	}
	if !entry.Property.SetValue(val) {
		return ErrInvalidValue
	}
	r.flagLocalUpdate(entry)
	return nil
}

func (r *PropertyRegistry) flagLocalUpdate(entry *PropertyEntry) {
	entry.Status = LocalStatus()
	if _, queued := r.outgoing[entry]; !queued {
		r.outgoing[entry] = struct{}{}
		r.outgoingSeq = append(r.outgoingSeq, entry)
	}
}

// Receive ingests one inbound frame. An unknown CAN ID is counted and
// dropped. A frame that fails to decode sets the entry's status to Error
// and is counted as corrupt. A successful decode transitions the entry to
// Remote with deadline now+dataTimeout, records a duplicate-writer warning
// if the prior status was Local, and appends the entry to the expiry
// queue.
func (r *PropertyRegistry) Receive(canID uint16, data []byte, now Instant) error {
	entry, ok := r.byID[canID]
	if !ok {
		r.countUnknownID++
		return ErrUnknownID
	}

	if err := entry.Property.Deserialize(data); err != nil {
		r.countCorrupt++
		entry.Status = ErrorStatus()
		return ErrDecode
	}

	if entry.Status.IsLocal() {
		r.idLocalTransition = entry
	}

	entry.Status = RemoteStatus(now.Add(r.dataTimeout))
	r.expiryQueue = append(r.expiryQueue, entry)
	return nil
}

// Warning is a single deferred report surfaced from EventLoop; the caller
// decides how to log it (send failures and receive errors are otherwise
// swallowed so the loop keeps ticking).
type Warning struct {
	Err   error
	Entry *PropertyEntry
}

// EventLoop runs one tick: drain outgoing updates, expire stale remotes,
// then drain inbound frames -- in that strict order, per the concurrency
// model. It never blocks and never panics; every failure from a
// collaborator becomes a returned warning instead of aborting the tick.
func (r *PropertyRegistry) EventLoop(now Instant) []Warning {
	var warnings []Warning

	// 1. drain outgoing
	if r.transmitter != nil {
		for _, entry := range r.outgoingSeq {
			if _, still := r.outgoing[entry]; !still {
				continue
			}
			if err := r.transmitter.Transmit(entry.CANID, entry.Property.Serialize()); err != nil {
				warnings = append(warnings, Warning{Err: err, Entry: entry})
			}
		}
	}
	r.outgoing = make(map[*PropertyEntry]struct{})
	r.outgoingSeq = nil

	// 2. expire stale remotes. The front of the queue may no longer be
	// Remote (re-assigned locally, or already expired) by the time we get
	// to it; that is fine, we just drop it without acting. A still-Remote
	// front only transitions to Expired once its deadline has actually
	// passed -- re-fetched from byID rather than trusting the queued
	// pointer's snapshot, since it may have been mutated since enqueue.
	for len(r.expiryQueue) > 0 {
		front := r.expiryQueue[0]
		due := front.Status.Kind == StatusRemote && now.AtOrAfter(front.Status.Expiry)
		stale := front.Status.Kind != StatusRemote
		if !due && !stale {
			break
		}
		r.expiryQueue = r.expiryQueue[1:]

		current, ok := r.byID[front.CANID]
		if !ok || current != front {
			continue
		}
		if current.Status.Kind == StatusRemote && now.AtOrAfter(current.Status.Expiry) {
			current.Status = ExpiredStatus()
		}
	}

	// 3. drain inbound
	if r.receiver != nil {
		for {
			id, data, ok, err := r.receiver.Receive()
			if err != nil {
				warnings = append(warnings, Warning{Err: err})
				continue
			}
			if !ok {
				break
			}
			if rerr := r.Receive(id, data, now); rerr != nil {
				warnings = append(warnings, Warning{Err: rerr})
			}
		}
	}

	return warnings
}

// FlushWarnings returns and resets the unknown-id / corrupt-frame counters
// and the last recorded duplicate-writer entry.
func (r *PropertyRegistry) FlushWarnings() (unknownID, corrupt int, duplicateWriter *PropertyEntry) {
	unknownID, corrupt, duplicateWriter = r.countUnknownID, r.countCorrupt, r.idLocalTransition
	r.countUnknownID = 0
	r.countCorrupt = 0
	r.idLocalTransition = nil
	return
}

// Names returns registered property names in insertion order.
func (r *PropertyRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Status returns the current status of a property by name or CAN ID.
func (r *PropertyRegistry) Status(key interface{}) (PropertyStatus, bool) {
	entry, ok := r.lookup(key)
	if !ok {
		return PropertyStatus{}, false
	}
	return entry.Status, true
}

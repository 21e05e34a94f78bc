// Package cantcp simulates a shared CAN bus over plain TCP: a Bus accepts
// any number of Node connections and rebroadcasts every frame it receives
// from one Node to all the others, the way a real bus's electrical
// broadcast does. It exists so development and tests can exercise the
// multi-node duplicate-writer and expiry paths without real CAN hardware.
package cantcp

import (
	"container/list"
	"log"
	"net"

	"github.com/GoAethereal/cancel"
)

// Bus is a TCP listener fanning inbound frames out to every other
// connected Node.
type Bus struct {
	conns connSet
}

type serverConn struct {
	conn net.Conn
}

// connSet is the bus's goroutine-safe registry of active connections: a
// cancellable channel-backed gate around a container/list.List, the same
// channel-as-semaphore idiom this project's teacher lineage uses for
// connection state, sized here to a fan-out list instead of a single
// sequence counter. container/list lets broadcast iterate every live
// connection while add/remove stay O(1) as connections come and go.
type connSet struct {
	gate chan struct{}
	list list.List
}

func newConnSet() connSet {
	cs := connSet{gate: make(chan struct{}, 1)}
	cs.gate <- struct{}{}
	return cs
}

// with runs fn against the connection list under the gate, unless ctx is
// canceled first.
func (cs *connSet) with(ctx cancel.Context, fn func(*list.List)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cs.gate:
	}
	defer func() { cs.gate <- struct{}{} }()
	fn(&cs.list)
	return nil
}

// NewBus returns an unstarted Bus.
func NewBus() *Bus {
	return &Bus{conns: newConnSet()}
}

// Serve listens on addr and accepts Node connections until ctx is canceled.
// Accepted connections are read in their own goroutine; a read error or
// closed connection removes that connection from the fan-out set.
func (b *Bus) Serve(ctx cancel.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return b.ServeListener(ctx, l)
}

// ServeListener accepts Node connections on an already-bound listener until
// ctx is canceled, closing l on exit. Split out from Serve so tests can bind
// to an OS-assigned port (":0") and read back the real address before
// dialing it.
func (b *Bus) ServeListener(ctx cancel.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go b.handle(ctx, conn)
	}
}

func (b *Bus) handle(ctx cancel.Context, conn net.Conn) {
	defer conn.Close()

	sc := &serverConn{conn: conn}
	var elem *list.Element
	if err := b.conns.with(ctx, func(l *list.List) { elem = l.PushBack(sc) }); err != nil {
		return
	}
	defer b.conns.with(ctx, func(l *list.List) { l.Remove(elem) })

	for {
		id, data, err := readFrame(conn)
		if err != nil {
			return
		}
		b.broadcast(ctx, sc, id, data)
	}
}

func (b *Bus) broadcast(ctx cancel.Context, from *serverConn, id uint16, data []byte) {
	b.conns.with(ctx, func(l *list.List) {
		for e := l.Front(); e != nil; e = e.Next() {
			sc := e.Value.(*serverConn)
			if sc == from {
				continue
			}
			if err := writeFrame(sc.conn, id, data); err != nil {
				log.Printf("cantcp: dropping connection after write error: %v", err)
				sc.conn.Close()
			}
		}
	})
}

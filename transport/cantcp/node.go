package cantcp

import (
	"net"

	"github.com/GoAethereal/cancel"
	"github.com/Sustaingineering/sensornetwork"
)

// Node is one endpoint on a simulated bus: it implements the core
// Transmitter and Receiver contracts over a single TCP connection to a
// Bus. Inbound frames are read continuously in the background and queued;
// Receive never blocks.
type Node struct {
	conn      net.Conn
	writeGate chan struct{} // 1-buffered: serializes concurrent Transmit calls
	inbox     chan frame
	errs      chan error
}

type frame struct {
	id   uint16
	data []byte
}

// Dial connects to a Bus at addr. ctx governs the dial timeout only; the
// returned Node's background reader runs until the connection is closed or
// fails, independent of ctx.
func Dial(ctx cancel.Context, addr string) (*Node, error) {
	dialCtx, cancelDial := cancel.Promote(ctx)
	defer cancelDial()

	conn, err := new(net.Dialer).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	n := &Node{
		conn:      conn,
		writeGate: make(chan struct{}, 1),
		inbox:     make(chan frame, 32),
		errs:      make(chan error, 1),
	}
	n.writeGate <- struct{}{}
	go n.readLoop()
	return n, nil
}

func (n *Node) readLoop() {
	for {
		id, data, err := readFrame(n.conn)
		if err != nil {
			select {
			case n.errs <- err:
			default:
			}
			return
		}
		n.inbox <- frame{id: id, data: data}
	}
}

// Transmit writes one frame to the bus. Concurrent callers serialize on
// writeGate so two frames never interleave on the wire.
func (n *Node) Transmit(id uint16, data []byte) error {
	<-n.writeGate
	defer func() { n.writeGate <- struct{}{} }()
	return writeFrame(n.conn, id, data)
}

// Receive returns the oldest queued inbound frame without blocking. A
// connection failure recorded by the background reader is surfaced exactly
// once as an error.
func (n *Node) Receive() (uint16, []byte, bool, error) {
	select {
	case f := <-n.inbox:
		return f.id, f.data, true, nil
	case err := <-n.errs:
		return 0, nil, false, err
	default:
		return 0, nil, false, nil
	}
}

// Close shuts down the underlying connection, terminating the background
// reader.
func (n *Node) Close() error {
	return n.conn.Close()
}

var _ sensornetwork.Transceiver = (*Node)(nil)

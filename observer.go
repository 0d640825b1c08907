package framesocket

import "net"

// ConnStats is a snapshot of the counters owned by one connection.
type ConnStats struct {
	ID         string
	RemoteAddr string
	FramesIn   uint64
	FramesOut  uint64
	BytesIn    uint64
	BytesOut   uint64
}

// Observer receives connection lifecycle and traffic events.
// Calls for one connection are made from that connection's goroutines only;
// implementations shared across connections must be safe for concurrent use.
type Observer interface {
	ConnOpened(id string, addr net.Addr)
	FrameReceived(id string, f Frame)
	FrameSent(id string, f Frame)
	// ConnClosed reports the final counters and the error that ended the
	// connection, nil when the peer closed cleanly.
	ConnClosed(stats ConnStats, err error)
}

type nopObserver struct{}

func (nopObserver) ConnOpened(string, net.Addr) {}
func (nopObserver) FrameReceived(string, Frame) {}
func (nopObserver) FrameSent(string, Frame)     {}
func (nopObserver) ConnClosed(ConnStats, error) {}

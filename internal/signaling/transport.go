package signaling

import "errors"

// State is the lifecycle of the signaling connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrNotOpen is returned by Send when the connection is not Open. Sending
// on a closed channel fails loudly; callers that want drop semantics
// (chat while disconnected) check state or ignore this error explicitly.
var ErrNotOpen = errors.New("signaling: connection not open")

// ErrCredential is returned by Connect when no usable credential could be
// obtained. The caller redirects to re-authentication.
var ErrCredential = errors.New("signaling: credential unavailable")

// Transport is the room session's view of the signaling channel. The
// production implementation is the websocket Client; tests use
// MemoryTransport.
//
// Frames delivers inbound frames and is closed when the connection drops
// or is closed; consumers treat channel closure as the transport fault
// signal. Only already-established peer media survives such a fault.
type Transport interface {
	Send(*Frame) error
	Frames() <-chan *Frame
	State() State
	Close() error
}

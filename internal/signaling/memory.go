package signaling

import "sync"

// MemoryTransport is an in-process Transport for tests and local
// experiments. Outbound frames are recorded for inspection; inbound
// frames are injected with Deliver.
type MemoryTransport struct {
	mu       sync.Mutex
	sent     []*Frame
	incoming chan *Frame
	state    State
	closed   bool
}

// NewMemoryTransport creates an open in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		incoming: make(chan *Frame, 64),
		state:    StateOpen,
	}
}

func (m *MemoryTransport) Send(frame *Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen {
		return ErrNotOpen
	}
	m.sent = append(m.sent, frame)
	return nil
}

func (m *MemoryTransport) Frames() <-chan *Frame {
	return m.incoming
}

func (m *MemoryTransport) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close marks the transport closed and closes the frame stream.
func (m *MemoryTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.state = StateClosed
		close(m.incoming)
	}
	return nil
}

// Drop simulates a transport fault: the frame stream closes and sends
// start failing, exactly as when the websocket dies under the client.
func (m *MemoryTransport) Drop() {
	m.Close()
}

// Deliver injects an inbound frame.
func (m *MemoryTransport) Deliver(frame *Frame) {
	m.incoming <- frame
}

// Sent returns a copy of all recorded outbound frames.
func (m *MemoryTransport) Sent() []*Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Frame, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentOfType returns recorded outbound frames with the given type.
func (m *MemoryTransport) SentOfType(frameType string) []*Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Frame
	for _, f := range m.sent {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 64
)

// ErrSuperseded is returned by Connect when a newer attempt started while
// this one was still dialing. The stale result is discarded, never
// installed.
var ErrSuperseded = errors.New("signaling: connection attempt superseded")

// CredentialProvider returns a fresh auth token for a connection attempt.
type CredentialProvider func(ctx context.Context) (string, error)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BuildURL maps (roomID, token) to the websocket endpoint.
	BuildURL func(roomID, token string) string
	// Credential resolves a fresh token before each connection attempt.
	Credential CredentialProvider
	// DisplayName is announced in the join frame after connecting.
	DisplayName string
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client maintains exactly one live websocket connection to a room
// endpoint. Connect may be called again when the room changes; each call
// bumps a monotonically increasing attempt token, and any async teardown
// or dial result carrying a stale token is discarded so it can never
// close or replace a newer live connection.
type Client struct {
	buildURL    func(roomID, token string) string
	credential  CredentialProvider
	displayName string
	logger      *slog.Logger

	attempt atomic.Uint64

	mu      sync.Mutex
	current *wsConn
}

// NewClient creates a signaling client.
func NewClient(config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		buildURL:    config.BuildURL,
		credential:  config.Credential,
		displayName: config.DisplayName,
		logger:      logger,
	}
}

// wsConn is one established connection attempt.
type wsConn struct {
	token    uint64
	conn     *websocket.Conn
	incoming chan *Frame
	outgoing chan *Frame
	done     chan struct{}
	state    atomic.Int32
	once     sync.Once
}

// Connect resolves a credential, dials the room endpoint and announces
// the local display name. Any previous connection is torn down first.
func (c *Client) Connect(ctx context.Context, roomID string) error {
	token := c.attempt.Add(1)

	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	cred, err := c.credential(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredential, err)
	}

	endpoint := c.buildURL(roomID, cred)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("signaling: dial room %s: %w", roomID, err)
	}

	if c.attempt.Load() != token {
		conn.Close()
		return ErrSuperseded
	}

	wc := &wsConn{
		token:    token,
		conn:     conn,
		incoming: make(chan *Frame, sendBuffer),
		outgoing: make(chan *Frame, sendBuffer),
		done:     make(chan struct{}),
	}
	wc.state.Store(int32(StateOpen))

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	if c.attempt.Load() != token {
		c.mu.Unlock()
		conn.Close()
		return ErrSuperseded
	}
	c.current = wc
	c.mu.Unlock()

	go c.readPump(wc)
	go c.writePump(wc)

	if err := c.Send(&Frame{Type: FrameTypeJoin, User: c.displayName}); err != nil {
		return err
	}

	c.logger.Debug("signaling connected", "room", roomID, "attempt", token)
	return nil
}

// readPump reads frames from the websocket into the incoming channel.
// The channel closes when the connection drops, which is the transport
// fault signal for consumers.
func (c *Client) readPump(wc *wsConn) {
	defer func() {
		wc.state.Store(int32(StateClosed))
		wc.conn.Close()
		close(wc.incoming)
	}()

	wc.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var frame Frame
		if err := wc.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("signaling read failed", "error", err)
			}
			return
		}
		select {
		case wc.incoming <- &frame:
		case <-wc.done:
			return
		}
	}
}

// writePump writes outbound frames and sends periodic pings.
func (c *Client) writePump(wc *wsConn) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		wc.conn.Close()
	}()

	for {
		select {
		case frame := <-wc.outgoing:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteJSON(frame); err != nil {
				wc.state.Store(int32(StateClosed))
				return
			}

		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				wc.state.Store(int32(StateClosed))
				return
			}

		case <-wc.done:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			wc.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues a frame for transmission. Returns ErrNotOpen when the
// connection is absent, closed, or its send buffer is saturated.
func (c *Client) Send(frame *Frame) error {
	c.mu.Lock()
	wc := c.current
	c.mu.Unlock()

	if wc == nil || State(wc.state.Load()) != StateOpen {
		return ErrNotOpen
	}
	select {
	case wc.outgoing <- frame:
		return nil
	case <-wc.done:
		return ErrNotOpen
	default:
		return fmt.Errorf("%w: send buffer full", ErrNotOpen)
	}
}

// Frames returns the inbound frame stream of the current connection. With
// no connection, a closed channel is returned so consumers fall through.
func (c *Client) Frames() <-chan *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current.incoming
	}
	closed := make(chan *Frame)
	close(closed)
	return closed
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateClosed
	}
	return State(c.current.state.Load())
}

// Close tears down the current connection and invalidates any in-flight
// connection attempt. Safe to call on every exit path.
func (c *Client) Close() error {
	c.attempt.Add(1)

	c.mu.Lock()
	wc := c.current
	c.current = nil
	c.mu.Unlock()

	if wc != nil {
		wc.close()
	}
	return nil
}

func (wc *wsConn) close() {
	wc.once.Do(func() {
		wc.state.Store(int32(StateClosed))
		close(wc.done)
	})
}

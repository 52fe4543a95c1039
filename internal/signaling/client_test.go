package signaling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// roomServer is a minimal stand-in for the room websocket endpoint: it
// validates the token, records inbound frames and lets tests push frames
// to the connected client.
type roomServer struct {
	*httptest.Server
	received chan map[string]any
	outbound chan any
}

func newRoomServer(t *testing.T, wantToken string) *roomServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	rs := &roomServer{
		received: make(chan map[string]any, 16),
		outbound: make(chan any, 16),
	}

	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != wantToken {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for frame := range rs.outbound {
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			}
		}()

		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			rs.received <- frame
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *roomServer) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func (rs *roomServer) waitFrame(t *testing.T, frameType string) map[string]any {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-rs.received:
			if frame["type"] == frameType {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", frameType)
			return nil
		}
	}
}

func newTestClient(server *roomServer, token string) *Client {
	return NewClient(ClientConfig{
		BuildURL: func(roomID, cred string) string {
			return server.wsURL() + "/api/rooms/" + roomID + "/ws?token=" + cred
		},
		Credential:  func(context.Context) (string, error) { return token, nil },
		DisplayName: "tester",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestClientConnectAnnouncesJoin(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "tok")
	t.Cleanup(func() { client.Close() })

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := client.State(); got != StateOpen {
		t.Fatalf("state %v after connect, want open", got)
	}

	join := server.waitFrame(t, FrameTypeJoin)
	if join["user"] != "tester" {
		t.Fatalf("join announced user %v, want tester", join["user"])
	}
}

func TestClientDeliversServerFrames(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "tok")
	t.Cleanup(func() { client.Close() })

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.waitFrame(t, FrameTypeJoin)

	server.outbound <- map[string]any{
		"type":     FrameTypeChat,
		"RoomID":   "room-1",
		"UserID":   "u2",
		"Username": "ada",
		"Data":     map[string]any{"message": "hi"},
	}

	select {
	case frame := <-client.Frames():
		if frame.Type != FrameTypeChat || frame.UserID != "u2" || frame.Username != "ada" {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestClientSendReachesServer(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "tok")
	t.Cleanup(func() { client.Close() })

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.waitFrame(t, FrameTypeJoin)

	if err := client.Send(&Frame{Type: FrameTypeChat, Data: MarshalData(ChatData{Message: "hi"})}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	chat := server.waitFrame(t, FrameTypeChat)
	data, ok := chat["data"].(map[string]any)
	if !ok || data["message"] != "hi" {
		t.Fatalf("server received %v", chat)
	}
}

func TestClientCloseInvalidatesConnection(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "tok")

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server.waitFrame(t, FrameTypeJoin)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := client.State(); got != StateClosed {
		t.Fatalf("state %v after close, want closed", got)
	}
	if err := client.Send(&Frame{Type: FrameTypeChat}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send after close returned %v, want ErrNotOpen", err)
	}

	// With no current connection the frame stream is a closed channel, the
	// consumer's signal that the transport is gone.
	select {
	case _, ok := <-client.Frames():
		if ok {
			t.Fatal("frame delivered after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame stream not closed after Close")
	}
}

func TestClientReconnectSupersedesPrevious(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "tok")
	t.Cleanup(func() { client.Close() })

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	first := client.Frames()
	server.waitFrame(t, FrameTypeJoin)

	if err := client.Connect(context.Background(), "room-1"); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	server.waitFrame(t, FrameTypeJoin)

	// The superseded connection's stream must close so a dispatcher
	// blocked on it falls through to the fresh one.
	select {
	case _, ok := <-first:
		if ok {
			t.Fatal("stale connection still delivering frames")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stale frame stream never closed")
	}

	if got := client.State(); got != StateOpen {
		t.Fatalf("state %v after reconnect, want open", got)
	}
}

func TestClientConnectCredentialFailure(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := NewClient(ClientConfig{
		BuildURL: func(roomID, cred string) string {
			return server.wsURL() + "/api/rooms/" + roomID + "/ws?token=" + cred
		},
		Credential: func(context.Context) (string, error) {
			return "", errors.New("refresh rejected")
		},
		DisplayName: "tester",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	err := client.Connect(context.Background(), "room-1")
	if !errors.Is(err, ErrCredential) {
		t.Fatalf("Connect returned %v, want ErrCredential", err)
	}
}

func TestClientConnectRejectedToken(t *testing.T) {
	server := newRoomServer(t, "tok")
	client := newTestClient(server, "stale")

	err := client.Connect(context.Background(), "room-1")
	if err == nil {
		t.Fatal("Connect succeeded with a rejected token")
	}
	if errors.Is(err, ErrCredential) {
		t.Fatalf("server rejection misreported as local credential fault: %v", err)
	}
	if got := client.State(); got != StateClosed {
		t.Fatalf("state %v after failed connect, want closed", got)
	}
}

func TestMemoryTransportFaultSemantics(t *testing.T) {
	transport := NewMemoryTransport()

	if err := transport.Send(&Frame{Type: FrameTypeChat}); err != nil {
		t.Fatalf("Send on open transport: %v", err)
	}

	transport.Drop()
	if err := transport.Send(&Frame{Type: FrameTypeChat}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send after drop returned %v, want ErrNotOpen", err)
	}
	if _, ok := <-transport.Frames(); ok {
		t.Fatal("frame stream open after drop")
	}
	if got := len(transport.Sent()); got != 1 {
		t.Fatalf("%d frames recorded, want 1", got)
	}
}

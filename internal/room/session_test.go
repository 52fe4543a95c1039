package room

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dojo-hq/dojo-cli/internal/media"
	"github.com/dojo-hq/dojo-cli/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

type silentProvider struct{}

func (silentProvider) Acquire(_ context.Context, audio, video bool) (*media.Stream, error) {
	return media.NewSilentStream(audio, video)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*Session, *signaling.MemoryTransport) {
	t.Helper()

	transport := signaling.NewMemoryTransport()
	s := NewSession(Config{
		RoomID:    "room-1",
		SelfID:    "self",
		SelfName:  "me",
		Transport: transport,
		Media:     silentProvider{},
		NewConnection: func() (*pion.PeerConnection, error) {
			return pion.NewPeerConnection(pion.Configuration{})
		},
		Logger: discardLogger(),
	})

	go s.Run(context.Background())
	t.Cleanup(s.LeaveRoom)

	return s, transport
}

// waitEvent drains the event stream until an event of type T arrives.
func waitEvent[T any](t *testing.T, s *Session) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// sync delivers an error frame and waits for its notice, guaranteeing
// every previously delivered frame has been dispatched.
func syncDispatch(t *testing.T, s *Session, transport *signaling.MemoryTransport) {
	t.Helper()
	transport.Deliver(&signaling.Frame{
		Type:    signaling.FrameTypeError,
		Payload: json.RawMessage(`"sync"`),
	})
	for {
		notice := waitEvent[NoticeEvent](t, s)
		if notice.Text == "sync" {
			return
		}
	}
}

func chatFrame(userID, username, message string, stamp time.Time) *signaling.Frame {
	payload, _ := json.Marshal(map[string]string{"message": message})
	return &signaling.Frame{
		Type:      signaling.FrameTypeChat,
		UserID:    userID,
		Username:  username,
		Payload:   payload,
		Timestamp: stamp,
	}
}

func rosterFrame(t *testing.T, entries ...map[string]any) *signaling.Frame {
	t.Helper()
	payload, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	return &signaling.Frame{Type: signaling.FrameTypeUserList, Payload: payload}
}

func signalTargets(t *testing.T, frames []*signaling.Frame) []string {
	t.Helper()
	targets := make([]string, 0, len(frames))
	for _, f := range frames {
		var data signaling.RTCSignalData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			t.Fatalf("unparseable relayed signal: %v", err)
		}
		targets = append(targets, data.TargetUserID)
	}
	return targets
}

func TestSessionChatRedeliveryDeduplicated(t *testing.T) {
	s, transport := newTestSession(t)

	stamp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	transport.Deliver(chatFrame("u2", "ada", "hello", stamp))

	first := waitEvent[ChatEvent](t, s)
	if first.Message.Content != "hello" || first.Message.Sender != "ada" {
		t.Fatalf("unexpected chat message: %+v", first.Message)
	}

	// The relay redelivers the identical frame, then a new one follows.
	transport.Deliver(chatFrame("u2", "ada", "hello", stamp))
	transport.Deliver(chatFrame("u2", "ada", "again", stamp.Add(time.Second)))

	second := waitEvent[ChatEvent](t, s)
	if second.Message.Content != "again" {
		t.Fatalf("duplicate chat not suppressed, got %q", second.Message.Content)
	}

	if got := len(s.Messages()); got != 2 {
		t.Fatalf("chat log holds %d messages, want 2", got)
	}
}

func TestSessionChatDoubleEncodedPayload(t *testing.T) {
	s, transport := newTestSession(t)

	// Some relay paths re-encode the payload as a JSON string.
	transport.Deliver(&signaling.Frame{
		Type:     signaling.FrameTypeChat,
		UserID:   "u2",
		Username: "ada",
		Payload:  json.RawMessage(`"{\"message\":\"nested\"}"`),
	})

	got := waitEvent[ChatEvent](t, s)
	if got.Message.Content != "nested" {
		t.Fatalf("double-encoded chat decoded to %q, want %q", got.Message.Content, "nested")
	}
}

func TestSessionRosterSnapshotDeduplicated(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(rosterFrame(t,
		map[string]any{"user_id": "u2", "username": "ada"},
		map[string]any{"UserID": "u2", "Username": "ada"},
		map[string]any{"id": "u3", "email": "bob@example.com"},
	))

	roster := waitEvent[RosterEvent](t, s).Participants
	if len(roster) != 2 {
		t.Fatalf("roster holds %d participants, want 2: %+v", len(roster), roster)
	}
	if roster[0].ID != "u2" || roster[0].Username != "ada" {
		t.Fatalf("unexpected first entry: %+v", roster[0])
	}
	if roster[1].ID != "u3" || roster[1].Username != "bob@example.com" {
		t.Fatalf("unexpected second entry: %+v", roster[1])
	}

	// The next snapshot fully replaces the previous one.
	transport.Deliver(rosterFrame(t, map[string]any{"user_id": "u4", "username": "eve"}))
	replaced := waitEvent[RosterEvent](t, s).Participants
	if len(replaced) != 1 || replaced[0].ID != "u4" {
		t.Fatalf("snapshot did not replace roster: %+v", replaced)
	}
}

func TestSessionStartCallAloneCreatesNoLinks(t *testing.T) {
	s, transport := newTestSession(t)

	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	ev := waitEvent[CallEvent](t, s)
	if !ev.Active || !ev.MicOn || !ev.VideoOn {
		t.Fatalf("unexpected call state: %+v", ev)
	}
	if got := s.Mesh().PeerCount(); got != 0 {
		t.Fatalf("mesh holds %d links in an empty room, want 0", got)
	}
	if offers := transport.SentOfType(signaling.FrameTypeRTCOffer); len(offers) != 0 {
		t.Fatalf("%d offers sent in an empty room, want 0", len(offers))
	}
}

func TestSessionStartCallOffersEachPeer(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(rosterFrame(t,
		map[string]any{"user_id": "self", "username": "me"},
		map[string]any{"user_id": "u2", "username": "ada"},
		map[string]any{"user_id": "u3", "username": "bob"},
	))
	waitEvent[RosterEvent](t, s)

	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	if got := s.Mesh().PeerCount(); got != 2 {
		t.Fatalf("mesh holds %d links, want 2", got)
	}

	offers := transport.SentOfType(signaling.FrameTypeRTCOffer)
	if len(offers) != 2 {
		t.Fatalf("%d offers sent, want 2", len(offers))
	}
	targets := signalTargets(t, offers)
	seen := map[string]bool{}
	for _, target := range targets {
		seen[target] = true
	}
	if !seen["u2"] || !seen["u3"] {
		t.Fatalf("offers addressed to %v, want u2 and u3", targets)
	}
}

func TestSessionAutoAnswersInboundOffer(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(&signaling.Frame{
		Type:    signaling.FrameTypeRTCOffer,
		UserID:  "u2",
		Payload: wrapSignal(t, "self", makeOffer(t)),
	})

	ev := waitEvent[CallEvent](t, s)
	if !ev.Active {
		t.Fatal("inbound offer did not activate the call")
	}
	syncDispatch(t, s, transport)

	answers := transport.SentOfType(signaling.FrameTypeRTCAnswer)
	if len(answers) != 1 {
		t.Fatalf("%d answers sent, want 1", len(answers))
	}
	if targets := signalTargets(t, answers); targets[0] != "u2" {
		t.Fatalf("answer addressed to %q, want u2", targets[0])
	}
	if !s.Mesh().HasPeer("u2") {
		t.Fatal("no link established for the offering peer")
	}
}

func TestSessionIgnoresEchoedAndMisaddressedSignals(t *testing.T) {
	s, transport := newTestSession(t)

	offer := makeOffer(t)

	// The server broadcasts to the whole room, so our own offer comes
	// back, and so do offers addressed to someone else.
	transport.Deliver(&signaling.Frame{
		Type:    signaling.FrameTypeRTCOffer,
		UserID:  "self",
		Payload: wrapSignal(t, "u2", offer),
	})
	transport.Deliver(&signaling.Frame{
		Type:    signaling.FrameTypeRTCOffer,
		UserID:  "u2",
		Payload: wrapSignal(t, "u3", offer),
	})
	syncDispatch(t, s, transport)

	if s.CallActive() {
		t.Fatal("echoed or misaddressed offer activated the call")
	}
	if got := s.Mesh().PeerCount(); got != 0 {
		t.Fatalf("mesh holds %d links, want 0", got)
	}
	if answers := transport.SentOfType(signaling.FrameTypeRTCAnswer); len(answers) != 0 {
		t.Fatalf("%d answers sent for ignorable offers, want 0", len(answers))
	}
}

func TestSessionToggleMicDoesNotRenegotiate(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(rosterFrame(t, map[string]any{"user_id": "u2", "username": "ada"}))
	waitEvent[RosterEvent](t, s)

	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	waitEvent[CallEvent](t, s)
	before := len(transport.SentOfType(signaling.FrameTypeRTCOffer))

	if on := s.ToggleMic(); on {
		t.Fatal("ToggleMic did not mute")
	}
	ev := waitEvent[CallEvent](t, s)
	if ev.MicOn || !ev.Active || !ev.VideoOn {
		t.Fatalf("unexpected call state after mute: %+v", ev)
	}

	if after := len(transport.SentOfType(signaling.FrameTypeRTCOffer)); after != before {
		t.Fatalf("mute triggered renegotiation: %d offers before, %d after", before, after)
	}
	if stream := s.Mesh().LocalStream(); stream == nil || stream.TrackOfKind(media.KindAudio).Enabled() {
		t.Fatal("audio track still enabled after mute")
	}
}

func TestSessionTransportDropStopsChatKeepsLinks(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(rosterFrame(t, map[string]any{"user_id": "u2", "username": "ada"}))
	waitEvent[RosterEvent](t, s)
	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	transport.Drop()
	waitEvent[DisconnectedEvent](t, s)

	sent := len(transport.Sent())
	s.SendChat("into the void")
	if got := len(transport.Sent()); got != sent {
		t.Fatal("chat sent on a dropped transport")
	}

	// Only the relay broke: the negotiated link stays up.
	if got := s.Mesh().PeerCount(); got != 1 {
		t.Fatalf("mesh holds %d links after transport drop, want 1", got)
	}
}

func TestSessionLeaveAnnouncesBeforeClose(t *testing.T) {
	s, transport := newTestSession(t)

	transport.Deliver(rosterFrame(t, map[string]any{"user_id": "u2", "username": "ada"}))
	waitEvent[RosterEvent](t, s)
	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	s.LeaveRoom()

	// The memory transport rejects sends after close, so a recorded leave
	// frame proves the announcement preceded the close.
	if leaves := transport.SentOfType(signaling.FrameTypeLeave); len(leaves) != 1 {
		t.Fatalf("%d leave announcements recorded, want 1", len(leaves))
	}
	if transport.State() != signaling.StateClosed {
		t.Fatal("transport still open after leave")
	}
	if got := s.Mesh().PeerCount(); got != 0 {
		t.Fatalf("mesh holds %d links after leave, want 0", got)
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not exit after leave")
	}

	// Idempotent: a second leave neither panics nor re-announces.
	s.LeaveRoom()
	if leaves := transport.SentOfType(signaling.FrameTypeLeave); len(leaves) != 1 {
		t.Fatal("second leave produced another announcement")
	}
}

func TestSessionBlankChatDropped(t *testing.T) {
	s, transport := newTestSession(t)

	s.SendChat("   ")
	s.SendChat("")
	if got := len(transport.SentOfType(signaling.FrameTypeChat)); got != 0 {
		t.Fatalf("%d chat frames sent for blank input, want 0", got)
	}

	s.SendChat("real")
	if got := len(transport.SentOfType(signaling.FrameTypeChat)); got != 1 {
		t.Fatalf("%d chat frames sent, want 1", got)
	}
}

func TestSessionUserJoinedLinksWhenCallActive(t *testing.T) {
	s, transport := newTestSession(t)

	if err := s.StartCall(context.Background()); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	waitEvent[CallEvent](t, s)

	transport.Deliver(&signaling.Frame{
		Type:     signaling.FrameTypeUserJoined,
		UserID:   "u2",
		Username: "ada",
	})
	syncDispatch(t, s, transport)

	if !s.Mesh().HasPeer("u2") {
		t.Fatal("joining peer not linked into the active call")
	}
	if offers := transport.SentOfType(signaling.FrameTypeRTCOffer); len(offers) != 1 {
		t.Fatalf("%d offers sent to the joiner, want 1", len(offers))
	}
}

// redialableTransport swaps its inner memory transport on redial, the
// way the websocket client swaps connections under one Transport value.
type redialableTransport struct {
	mu    sync.Mutex
	inner *signaling.MemoryTransport
}

func (r *redialableTransport) current() *signaling.MemoryTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner
}

func (r *redialableTransport) swap(next *signaling.MemoryTransport) {
	r.mu.Lock()
	r.inner = next
	r.mu.Unlock()
}

func (r *redialableTransport) Send(frame *signaling.Frame) error { return r.current().Send(frame) }
func (r *redialableTransport) Frames() <-chan *signaling.Frame   { return r.current().Frames() }
func (r *redialableTransport) State() signaling.State            { return r.current().State() }
func (r *redialableTransport) Close() error                      { return r.current().Close() }

func TestSessionReconnectResumesDispatch(t *testing.T) {
	first := signaling.NewMemoryTransport()
	transport := &redialableTransport{inner: first}

	s := NewSession(Config{
		RoomID:    "room-1",
		SelfID:    "self",
		SelfName:  "me",
		Transport: transport,
		Media:     silentProvider{},
		NewConnection: func() (*pion.PeerConnection, error) {
			return pion.NewPeerConnection(pion.Configuration{})
		},
		Reconnect: true,
		Redial: func(context.Context) error {
			transport.swap(signaling.NewMemoryTransport())
			return nil
		},
		Logger: discardLogger(),
	})
	go s.Run(context.Background())
	t.Cleanup(s.LeaveRoom)

	first.Drop()
	waitEvent[DisconnectedEvent](t, s)

	notice := waitEvent[NoticeEvent](t, s)
	if notice.Level != "info" {
		t.Fatalf("reconnect produced %+v, want info notice", notice)
	}

	// Frames on the fresh connection reach the dispatcher.
	transport.current().Deliver(chatFrame("u2", "ada", "back again", time.Now()))
	got := waitEvent[ChatEvent](t, s)
	if got.Message.Content != "back again" {
		t.Fatalf("post-reconnect chat %q, want %q", got.Message.Content, "back again")
	}
}

// makeOffer produces a real SDP offer with audio and video sections.
func makeOffer(t *testing.T) json.RawMessage {
	t.Helper()
	pc, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatalf("create offering peer: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio); err != nil {
		t.Fatal(err)
	}
	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo); err != nil {
		t.Fatal(err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local description: %v", err)
	}

	raw, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func wrapSignal(t *testing.T, target string, signal json.RawMessage) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(signaling.RTCSignalData{TargetUserID: target, Signal: signal})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

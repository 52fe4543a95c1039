// Package room implements the collaborative room session: the single
// dispatcher over the inbound signaling stream, the chat and roster
// state, and the call intents the presentation layer drives.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dojo-hq/dojo-cli/internal/media"
	"github.com/dojo-hq/dojo-cli/internal/rtc"
	"github.com/dojo-hq/dojo-cli/internal/signaling"
	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

// Config holds configuration for creating a Session.
type Config struct {
	// RoomID identifies the room the transport is connected to.
	RoomID string
	// SelfID and SelfName identify the local participant; frames echoed
	// back with SelfID are the session's own and are filtered.
	SelfID   string
	SelfName string
	// Transport is the signaling channel, already connected.
	Transport signaling.Transport
	// Media acquires the local stream when a call starts.
	Media media.Provider
	// NewConnection builds peer connections for the mesh.
	NewConnection func() (*pion.PeerConnection, error)
	// Reconnect redials the signaling channel once after a transport
	// drop. Off by default: a drop surfaces a notice and the user
	// rejoins manually.
	Reconnect bool
	// Redial re-establishes the transport; required when Reconnect is set.
	Redial func(ctx context.Context) error
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Session owns the chat, roster and call state of one open room view. It
// is the only component that mutates that state: every inbound frame and
// every user intent funnels through it. One Session exists per room
// entry and dies on leave or navigation away.
type Session struct {
	roomID   string
	selfID   string
	selfName string

	transport signaling.Transport
	mediaProv media.Provider
	mesh      *rtc.Mesh
	reconnect bool
	redial    func(ctx context.Context) error
	logger    *slog.Logger

	events chan Event

	mu           sync.Mutex
	messages     []ChatMessage
	roster       []Participant
	fingerprints *fingerprintCache
	callActive   bool
	micOn        bool
	videoOn      bool
	leaving      bool
	done         chan struct{}
}

// NewSession creates a session over an already-connected transport. Call
// Run to start dispatching.
func NewSession(config Config) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room", config.RoomID)

	s := &Session{
		roomID:       config.RoomID,
		selfID:       config.SelfID,
		selfName:     config.SelfName,
		transport:    config.Transport,
		mediaProv:    config.Media,
		reconnect:    config.Reconnect,
		redial:       config.Redial,
		logger:       logger,
		events:       make(chan Event, 128),
		fingerprints: newFingerprintCache(fingerprintCapacity),
		done:         make(chan struct{}),
	}

	s.mesh = rtc.NewMesh(rtc.MeshConfig{
		NewConnection: config.NewConnection,
		Sender:        (*signalRelay)(s),
		OnRemoteTrack: func(peerID string, track *pion.TrackRemote) {
			s.emit(RemoteTrackEvent{PeerID: peerID, Kind: track.Kind().String()})
		},
		OnPeerGone: func(peerID string) {
			s.emit(PeerGoneEvent{PeerID: peerID})
		},
		Logger: logger,
	})

	return s
}

// Events returns the state-change stream consumed by the presentation
// layer.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the dispatch loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Mesh exposes the peer mesh for call-state inspection.
func (s *Session) Mesh() *rtc.Mesh { return s.mesh }

// Run dispatches inbound frames until the transport closes or the
// session leaves. It owns all chat/roster/call mutation; peer-connection
// callbacks and user intents synchronize through the session lock.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	for {
		frames := s.transport.Frames()

	dispatch:
		for {
			select {
			case <-ctx.Done():
				s.LeaveRoom()
				return
			case frame, ok := <-frames:
				if !ok {
					break dispatch
				}
				s.handleFrame(ctx, frame)
			}
		}

		s.mu.Lock()
		leaving := s.leaving
		s.mu.Unlock()
		if leaving {
			return
		}

		// Transport fault: chat and roster stop, established peer media
		// stays up. Only the relay broke, not the negotiated paths.
		s.emit(DisconnectedEvent{})

		if !s.reconnect || s.redial == nil {
			s.emit(NoticeEvent{Level: "error", Text: "connection to room lost"})
			return
		}

		s.logger.Info("signaling dropped, redialing")
		if err := s.redial(ctx); err != nil {
			s.emit(NoticeEvent{Level: "error", Text: "reconnect failed: " + err.Error()})
			return
		}
		s.emit(NoticeEvent{Level: "info", Text: "reconnected to room"})
	}
}

// handleFrame routes one inbound frame by its discriminant tag.
func (s *Session) handleFrame(ctx context.Context, frame *signaling.Frame) {
	switch frame.Type {
	case signaling.FrameTypeChat:
		s.handleChat(frame)

	case signaling.FrameTypeCodeUpdate:
		// Remote code edits are deliberately ignored: free typing wins
		// over remote-overwrite of local edits.

	case signaling.FrameTypeRTCOffer, signaling.FrameTypeRTCAnswer, signaling.FrameTypeRTCCandidate:
		s.handleSignal(ctx, frame)

	case signaling.FrameTypeUserList, signaling.FrameTypeParticipants:
		s.handleRoster(frame)

	case signaling.FrameTypeUserJoined:
		s.handleUserJoined(frame)

	case signaling.FrameTypeUserLeft:
		// Roster removal arrives with the next authoritative snapshot;
		// only the system notice renders now.
		s.appendSystemMessage(displayName(frame) + " left the room")

	case signaling.FrameTypeJoin, signaling.FrameTypeGetParticipants:
		// Echoes of self-originated frames.

	case signaling.FrameTypeError:
		s.emit(NoticeEvent{Level: "error", Text: string(signaling.NormalizeData(frame.Payload))})

	default:
		s.logger.Debug("unhandled frame", "type", frame.Type)
	}
}

func (s *Session) handleChat(frame *signaling.Frame) {
	var data signaling.ChatData
	payload := signaling.NormalizeData(frame.Payload)
	if err := unmarshalLoose(payload, &data); err != nil {
		s.logger.Debug("unparseable chat payload", "error", err)
		return
	}

	now := time.Now()
	fingerprint := chatFingerprint(frame.UserID, frame.Username, data.Message, frame.Timestamp, now)

	s.mu.Lock()
	if s.fingerprints.Observe(fingerprint) {
		s.mu.Unlock()
		return
	}
	message := ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   frame.UserID,
		Sender:     nonEmpty(frame.Username, "Unknown"),
		Content:    data.Message,
		ReceivedAt: now,
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.emit(ChatEvent{Message: message})
}

// handleSignal forwards relayed WebRTC payloads to the mesh. Frames from
// self or addressed to another participant are echo artifacts of the
// server's room-wide broadcast and are dropped here.
func (s *Session) handleSignal(ctx context.Context, frame *signaling.Frame) {
	if frame.UserID == "" || frame.UserID == s.selfID {
		return
	}
	target, signal := signaling.UnwrapSignal(frame.Payload)
	if target != "" && target != s.selfID {
		return
	}

	var err error
	switch frame.Type {
	case signaling.FrameTypeRTCOffer:
		if s.mesh.LocalStream() == nil {
			// Auto-answer: an inbound offer escalates the local user
			// into the call, and media must be attached before the
			// link exists or the remote end never receives our tracks.
			if acquireErr := s.startLocalMedia(ctx); acquireErr != nil {
				s.emit(NoticeEvent{Level: "error", Text: mediaFaultText(acquireErr)})
				return
			}
		}
		err = s.mesh.HandleOffer(frame.UserID, signal)

	case signaling.FrameTypeRTCAnswer:
		err = s.mesh.HandleAnswer(frame.UserID, signal)

	case signaling.FrameTypeRTCCandidate:
		err = s.mesh.HandleCandidate(frame.UserID, signal)
	}
	if err != nil {
		// Signaling relay faults are expected races, not user errors.
		s.logger.Debug("signal handling failed", "type", frame.Type, "peer", frame.UserID, "error", err)
	}
}

func (s *Session) handleRoster(frame *signaling.Frame) {
	payload := signaling.NormalizeData(frame.Payload)
	var entries []signaling.UserInfo
	if err := unmarshalLoose(payload, &entries); err != nil {
		s.logger.Debug("unparseable roster payload", "error", err)
		return
	}

	// Snapshots are authoritative: full replace, deduplicated by id.
	seen := make(map[string]struct{}, len(entries))
	roster := make([]Participant, 0, len(entries))
	for i := range entries {
		id := entries[i].ID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		roster = append(roster, Participant{ID: id, Username: entries[i].Name()})
	}

	s.mu.Lock()
	s.roster = roster
	s.mu.Unlock()

	s.emit(RosterEvent{Participants: roster})
}

func (s *Session) handleUserJoined(frame *signaling.Frame) {
	name := displayName(frame)
	s.appendSystemMessage(name + " joined the room")

	if frame.UserID == "" || frame.UserID == s.selfID {
		return
	}

	s.mu.Lock()
	found := false
	for _, p := range s.roster {
		if p.ID == frame.UserID {
			found = true
			break
		}
	}
	if !found {
		s.roster = append(s.roster, Participant{ID: frame.UserID, Username: name})
	}
	roster := s.rosterLocked()
	callActive := s.callActive
	s.mu.Unlock()

	if !found {
		s.emit(RosterEvent{Participants: roster})
	}

	// Opportunistic link: the joiner sees our offer instead of having to
	// discover the active call.
	if callActive {
		if err := s.mesh.CreatePeer(frame.UserID, true); err != nil {
			s.logger.Warn("failed to link joining peer", "peer", frame.UserID, "error", err)
		}
	}
}

// StartCall acquires local media, marks the call active and offers a link
// to every current roster member except self.
func (s *Session) StartCall(ctx context.Context) error {
	s.mu.Lock()
	if s.callActive {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.startLocalMedia(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	roster := s.rosterLocked()
	s.mu.Unlock()

	for _, p := range roster {
		if p.ID == s.selfID {
			continue
		}
		if err := s.mesh.CreatePeer(p.ID, true); err != nil {
			// One peer failing must not stop the rest of the mesh.
			s.logger.Warn("failed to link peer", "peer", p.ID, "error", err)
		}
	}
	return nil
}

// startLocalMedia acquires the stream, installs it in the mesh and flips
// the call state. Used by StartCall and by offer auto-answer.
func (s *Session) startLocalMedia(ctx context.Context) error {
	stream, err := s.mediaProv.Acquire(ctx, true, true)
	if err != nil {
		return err
	}

	s.mesh.SetLocalStream(stream)

	s.mu.Lock()
	s.callActive = true
	s.micOn = true
	s.videoOn = true
	s.mu.Unlock()

	s.emit(CallEvent{Active: true, MicOn: true, VideoOn: true})
	return nil
}

// StopCall tears the mesh down and resets call state.
func (s *Session) StopCall() {
	s.mesh.Teardown()

	s.mu.Lock()
	s.callActive = false
	s.micOn = false
	s.videoOn = false
	s.mu.Unlock()

	s.emit(CallEvent{Active: false})
}

// ToggleMic flips the microphone and returns the new state. A pure
// track-enabled flip: no renegotiation, no new offer round trip.
func (s *Session) ToggleMic() bool {
	s.mu.Lock()
	s.micOn = !s.micOn
	enabled := s.micOn
	active, video := s.callActive, s.videoOn
	s.mu.Unlock()

	s.mesh.ToggleAudio(enabled)
	s.emit(CallEvent{Active: active, MicOn: enabled, VideoOn: video})
	return enabled
}

// ToggleVideo flips the camera and returns the new state.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	s.videoOn = !s.videoOn
	enabled := s.videoOn
	active, mic := s.callActive, s.micOn
	s.mu.Unlock()

	s.mesh.ToggleVideo(enabled)
	s.emit(CallEvent{Active: active, MicOn: mic, VideoOn: enabled})
	return enabled
}

// SendChat transmits a chat message. Blank input and a non-open
// signaling channel both drop the intent silently.
func (s *Session) SendChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.transport.State() != signaling.StateOpen {
		return
	}

	frame := &signaling.Frame{
		Type: signaling.FrameTypeChat,
		Data: signaling.MarshalData(signaling.ChatData{Message: text}),
	}
	if err := s.transport.Send(frame); err != nil {
		s.logger.Debug("chat send failed", "error", err)
	}
}

// LeaveRoom announces departure, tears down the mesh and closes the
// signaling channel. The announcement goes out before the close so peers
// see a clean departure rather than a timeout. Idempotent.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	if s.leaving {
		s.mu.Unlock()
		return
	}
	s.leaving = true
	s.mu.Unlock()

	if err := s.transport.Send(&signaling.Frame{Type: signaling.FrameTypeLeave, User: s.selfName}); err != nil {
		s.logger.Debug("leave announcement failed", "error", err)
	}

	s.mesh.Teardown()

	s.mu.Lock()
	s.callActive = false
	s.micOn = false
	s.videoOn = false
	s.mu.Unlock()

	if err := s.transport.Close(); err != nil {
		s.logger.Debug("transport close failed", "error", err)
	}
}

// Messages returns a copy of the chat log.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Roster returns a copy of the current participant list.
func (s *Session) Roster() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

// CallActive reports whether a call is in progress.
func (s *Session) CallActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callActive
}

func (s *Session) rosterLocked() []Participant {
	out := make([]Participant, len(s.roster))
	copy(out, s.roster)
	return out
}

func (s *Session) appendSystemMessage(text string) {
	s.mu.Lock()
	message := ChatMessage{
		ID:         uuid.NewString(),
		Sender:     "System",
		Content:    text,
		ReceivedAt: time.Now(),
		System:     true,
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.emit(ChatEvent{Message: message})
}

// emit publishes an event without ever blocking the dispatch loop. A
// saturated consumer loses the oldest semantics-free update rather than
// stalling frame handling.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug("event dropped, consumer behind")
	}
}

// signalRelay adapts the session's transport into the mesh's
// SignalSender without giving the mesh raw access to the channel.
type signalRelay Session

func (r *signalRelay) SendSignal(frameType, targetID string, signal any) error {
	s := (*Session)(r)
	frame := &signaling.Frame{
		Type: frameType,
		Data: signaling.MarshalData(signaling.RTCSignalData{
			TargetUserID: targetID,
			Signal:       signaling.MarshalData(signal),
		}),
	}
	return s.transport.Send(frame)
}

func displayName(frame *signaling.Frame) string {
	if frame.Username != "" {
		return frame.Username
	}
	var info signaling.UserInfo
	if err := unmarshalLoose(signaling.NormalizeData(frame.Payload), &info); err == nil {
		if name := info.Name(); name != "" {
			return name
		}
	}
	return "Someone"
}

// unmarshalLoose decodes a payload that may legitimately be absent.
func unmarshalLoose(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}

func nonEmpty(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func mediaFaultText(err error) string {
	return "could not start camera/microphone: " + err.Error()
}

// Package rtc manages the mesh of peer-to-peer media connections for a
// room. The mesh's lifecycle is independent of the signaling channel: the
// channel is only a relay for offer/answer/candidate exchange, and links
// that finished negotiating keep flowing when it drops.
package rtc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dojo-hq/dojo-cli/internal/media"
	pion "github.com/pion/webrtc/v4"
)

// Relayed signal frame types. They match the room server's contract so
// the relay can pass them through untranslated.
const (
	SignalOffer     = "rtc_offer"
	SignalAnswer    = "rtc_answer"
	SignalCandidate = "rtc_candidate"
)

// SignalSender relays a WebRTC payload to one peer through the signaling
// channel. The mesh never touches the channel directly.
type SignalSender interface {
	SendSignal(frameType, targetID string, signal any) error
}

// MeshConfig holds configuration for creating a Mesh.
type MeshConfig struct {
	// NewConnection builds a fresh peer connection. Required.
	NewConnection func() (*pion.PeerConnection, error)
	// Sender relays signaling payloads. Required.
	Sender SignalSender
	// OnRemoteTrack fires when a peer's media arrives. Optional.
	OnRemoteTrack func(peerID string, track *pion.TrackRemote)
	// OnPeerGone fires after a link is removed for any reason other than
	// Teardown, so stale video tiles disappear without manual cleanup.
	OnPeerGone func(peerID string)
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Mesh owns one peer link per remote participant. All mutation goes
// through the mesh; faults on one link never touch the others.
type Mesh struct {
	newConnection func() (*pion.PeerConnection, error)
	sender        SignalSender
	onRemoteTrack func(peerID string, track *pion.TrackRemote)
	onPeerGone    func(peerID string)
	logger        *slog.Logger

	mu     sync.Mutex
	peers  map[string]*peerLink
	stream *media.Stream
}

// peerLink is one point-to-point connection. Candidates arriving before
// the remote description are queued and flushed once it lands.
type peerLink struct {
	id        string
	pc        *pion.PeerConnection
	remoteSet bool
	pending   []pion.ICECandidateInit
}

// NewMesh creates an empty mesh.
func NewMesh(config MeshConfig) *Mesh {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mesh{
		newConnection: config.NewConnection,
		sender:        config.Sender,
		onRemoteTrack: config.OnRemoteTrack,
		onPeerGone:    config.OnPeerGone,
		logger:        logger,
		peers:         make(map[string]*peerLink),
	}
}

// SetLocalStream installs the local media stream. Must happen before any
// link is created, otherwise the remote end never receives local tracks.
func (m *Mesh) SetLocalStream(stream *media.Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = stream
}

// LocalStream returns the installed stream, nil when no call is active.
func (m *Mesh) LocalStream() *media.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// HasPeer reports whether a link exists for the participant.
func (m *Mesh) HasPeer(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.peers[peerID]
	return ok
}

// PeerCount returns the number of live links.
func (m *Mesh) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// CreatePeer establishes a link to a participant. A second call for the
// same id is a no-op, which keeps racing join broadcasts from producing
// duplicate links. When initiator is set, an offer is produced and
// relayed immediately; candidates trickle afterwards.
func (m *Mesh) CreatePeer(peerID string, initiator bool) error {
	m.mu.Lock()
	if _, exists := m.peers[peerID]; exists {
		m.mu.Unlock()
		return nil
	}

	pc, err := m.newConnection()
	if err != nil {
		m.mu.Unlock()
		return err
	}

	link := &peerLink{id: peerID, pc: pc}
	m.peers[peerID] = link

	if m.stream != nil {
		for _, track := range m.stream.Tracks() {
			if _, err := pc.AddTrack(track.Local()); err != nil {
				m.logger.Warn("failed to attach local track", "peer", peerID, "kind", track.Kind(), "error", err)
			}
		}
	}
	m.mu.Unlock()

	pc.OnICECandidate(func(candidate *pion.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := m.sender.SendSignal(SignalCandidate, peerID, candidate.ToJSON()); err != nil {
			m.logger.Debug("candidate relay failed", "peer", peerID, "error", err)
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		m.logger.Debug("remote track", "peer", peerID, "kind", track.Kind().String())
		if m.onRemoteTrack != nil {
			m.onRemoteTrack(peerID, track)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		switch state {
		case pion.PeerConnectionStateDisconnected,
			pion.PeerConnectionStateFailed,
			pion.PeerConnectionStateClosed:
			// Removal happens off the pion callback goroutine so a
			// Close in progress cannot deadlock against the mesh lock.
			go m.dropPeer(peerID)
		}
	})

	if initiator {
		offer, err := CreateOffer(pc)
		if err != nil {
			m.dropPeer(peerID)
			return err
		}
		if err := m.sender.SendSignal(SignalOffer, peerID, offer); err != nil {
			return fmt.Errorf("rtc: relay offer to %s: %w", peerID, err)
		}
	}

	return nil
}

// HandleOffer answers a remote offer. The caller guarantees the local
// stream is installed first (auto-answering acquires media before
// forwarding the offer here).
func (m *Mesh) HandleOffer(peerID string, raw json.RawMessage) error {
	offer, err := DecodeDescription(raw)
	if err != nil {
		return err
	}

	if err := m.CreatePeer(peerID, false); err != nil {
		return err
	}

	m.mu.Lock()
	link, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("rtc: link for %s vanished during offer", peerID)
	}

	answer, err := CreateAnswer(link.pc, offer)
	if err != nil {
		return err
	}
	m.markRemoteSet(link)

	if err := m.sender.SendSignal(SignalAnswer, peerID, answer); err != nil {
		return fmt.Errorf("rtc: relay answer to %s: %w", peerID, err)
	}
	return nil
}

// HandleAnswer applies a remote answer to an existing link. A stale or
// duplicate answer for an unknown peer is logged and swallowed; it must
// not take the session down.
func (m *Mesh) HandleAnswer(peerID string, raw json.RawMessage) error {
	answer, err := DecodeDescription(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	link, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("answer for unknown peer", "peer", peerID)
		return nil
	}

	if err := link.pc.SetRemoteDescription(*answer); err != nil {
		m.logger.Warn("failed to apply answer", "peer", peerID, "error", err)
		return nil
	}
	m.markRemoteSet(link)
	return nil
}

// HandleCandidate applies a relayed ICE candidate. Candidates that arrive
// before the remote description are queued and flushed when it lands;
// late or duplicate candidates are logged and swallowed.
func (m *Mesh) HandleCandidate(peerID string, raw json.RawMessage) error {
	candidate, err := DecodeCandidate(raw)
	if err != nil {
		m.logger.Debug("unparseable candidate", "peer", peerID, "error", err)
		return nil
	}

	m.mu.Lock()
	link, ok := m.peers[peerID]
	if ok && !link.remoteSet {
		link.pending = append(link.pending, *candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("candidate for unknown peer", "peer", peerID)
		return nil
	}

	if err := link.pc.AddICECandidate(*candidate); err != nil {
		m.logger.Debug("candidate rejected", "peer", peerID, "error", err)
	}
	return nil
}

// markRemoteSet flushes candidates queued while the remote description
// was missing.
func (m *Mesh) markRemoteSet(link *peerLink) {
	m.mu.Lock()
	link.remoteSet = true
	pending := link.pending
	link.pending = nil
	m.mu.Unlock()

	for _, candidate := range pending {
		if err := link.pc.AddICECandidate(candidate); err != nil {
			m.logger.Debug("queued candidate rejected", "peer", link.id, "error", err)
		}
	}
}

// ToggleAudio flips the microphone without renegotiation.
func (m *Mesh) ToggleAudio(enabled bool) {
	if stream := m.LocalStream(); stream != nil {
		stream.SetAudioEnabled(enabled)
	}
}

// ToggleVideo flips the camera without renegotiation.
func (m *Mesh) ToggleVideo(enabled bool) {
	if stream := m.LocalStream(); stream != nil {
		stream.SetVideoEnabled(enabled)
	}
}

// RemovePeer closes and forgets one link, notifying removal.
func (m *Mesh) RemovePeer(peerID string) {
	m.dropPeer(peerID)
}

func (m *Mesh) dropPeer(peerID string) {
	m.mu.Lock()
	link, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := link.pc.Close(); err != nil {
		m.logger.Debug("peer close failed", "peer", peerID, "error", err)
	}
	if m.onPeerGone != nil {
		m.onPeerGone(peerID)
	}
}

// Teardown closes every link and stops the local media tracks. Guaranteed
// on leaving the room regardless of how the room view exits; idempotent.
func (m *Mesh) Teardown() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*peerLink)
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	for id, link := range peers {
		if err := link.pc.Close(); err != nil {
			m.logger.Debug("peer close failed during teardown", "peer", id, "error", err)
		}
	}
	if stream != nil {
		stream.Stop()
	}
}

package room

import "time"

// Participant is one roster entry.
type Participant struct {
	ID       string
	Username string
}

// ChatMessage is one rendered chat entry. System is set for join/leave
// notices synthesized locally.
type ChatMessage struct {
	ID         string
	SenderID   string
	Sender     string
	Content    string
	ReceivedAt time.Time
	System     bool
}

// Event is a state change published to the presentation layer. The
// concrete types below are the only implementations.
type Event any

// ChatEvent carries one new chat entry.
type ChatEvent struct {
	Message ChatMessage
}

// RosterEvent carries the full deduplicated roster after a change.
type RosterEvent struct {
	Participants []Participant
}

// CallEvent reports the local call state.
type CallEvent struct {
	Active  bool
	MicOn   bool
	VideoOn bool
}

// RemoteTrackEvent announces an incoming media track from a peer, keyed
// so the presentation layer can show one tile per participant.
type RemoteTrackEvent struct {
	PeerID string
	Kind   string
}

// PeerGoneEvent announces a removed peer link; its tile disappears.
type PeerGoneEvent struct {
	PeerID string
}

// NoticeEvent is a dismissible user-visible notice.
type NoticeEvent struct {
	Level string // "info" or "error"
	Text  string
}

// DisconnectedEvent reports that the signaling channel dropped. Chat and
// roster stop updating; established peer media keeps flowing.
type DisconnectedEvent struct{}

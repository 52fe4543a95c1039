package signaling

import (
	"bytes"
	"encoding/json"
	"time"
)

// Frame type constants, matching the room server's message contract.
const (
	FrameTypeJoin  = "join"
	FrameTypeLeave = "leave"
	FrameTypeChat  = "chat"

	FrameTypeCodeUpdate = "code_update"

	FrameTypeRTCOffer     = "rtc_offer"
	FrameTypeRTCAnswer    = "rtc_answer"
	FrameTypeRTCCandidate = "rtc_candidate"

	FrameTypeUserJoined      = "user_joined"
	FrameTypeUserLeft        = "user_left"
	FrameTypeUserList        = "user_list"
	FrameTypeParticipants    = "participants"
	FrameTypeGetParticipants = "get_participants"

	FrameTypeError = "error"
)

// Frame is one message on the room signaling channel.
//
// Outbound frames carry "type" plus "data" (and "user" on the join
// announcement); the server stamps sender metadata before broadcasting.
// Inbound frames come back with the server's field names (UserID,
// Username, Data, Timestamp). Both sets of tags live on one struct; the
// exact-match rule in encoding/json keeps them from colliding.
type Frame struct {
	Type string `json:"type"`

	// Outbound fields.
	User string          `json:"user,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	// Inbound fields, stamped by the server.
	UserID    string          `json:"UserID,omitempty"`
	Username  string          `json:"Username,omitempty"`
	Payload   json.RawMessage `json:"Data,omitempty"`
	Timestamp time.Time       `json:"Timestamp,omitzero"`
}

// ChatData is the payload of a chat frame.
type ChatData struct {
	Message string `json:"message"`
}

// UserInfo is one roster entry in a user_list payload. The server and the
// other clients disagree on key casing, so every known variant is decoded.
type UserInfo struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`

	// Alternate casings seen on the wire.
	AltUserID   string `json:"UserID,omitempty"`
	AltUsername string `json:"Username,omitempty"`
	AltID       string `json:"id,omitempty"`
	AltEmail    string `json:"email,omitempty"`
}

// ID returns the participant id under whichever key it arrived.
func (u *UserInfo) ID() string {
	if u.UserID != "" {
		return u.UserID
	}
	if u.AltUserID != "" {
		return u.AltUserID
	}
	return u.AltID
}

// Name returns the display name under whichever key it arrived.
func (u *UserInfo) Name() string {
	if u.Username != "" {
		return u.Username
	}
	if u.AltUsername != "" {
		return u.AltUsername
	}
	return u.AltEmail
}

// RTCSignalData wraps a relayed WebRTC payload with its addressee.
type RTCSignalData struct {
	TargetUserID string          `json:"target_user_id,omitempty"`
	Signal       json.RawMessage `json:"signal,omitempty"`
}

// NormalizeData undoes relay double-encoding: some paths re-encode the
// payload as a JSON string, so a payload starting with a quote is decoded
// once more before use. Returns the input unchanged when it is already
// structured.
func NormalizeData(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return trimmed
	}
	return json.RawMessage(inner)
}

// UnwrapSignal extracts the WebRTC payload and its addressee from an
// inbound rtc_* frame. Handles both the enveloped form
// {"target_user_id":..., "signal":...} and a bare SDP/candidate object,
// in either single- or double-encoded form.
func UnwrapSignal(raw json.RawMessage) (target string, signal json.RawMessage) {
	data := NormalizeData(raw)

	var wrapped RTCSignalData
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Signal) > 0 {
		return wrapped.TargetUserID, NormalizeData(wrapped.Signal)
	}
	return "", data
}

// MarshalData encodes an outbound frame payload.
func MarshalData(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

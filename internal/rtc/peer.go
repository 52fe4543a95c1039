package rtc

import (
	"encoding/json"
	"fmt"

	"github.com/dojo-hq/dojo-cli/internal/config"
	pion "github.com/pion/webrtc/v4"
)

// NewPeerConnection builds a pion connection with the configured STUN and
// TURN servers.
func NewPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, fmt.Errorf("rtc: create peer connection: %w", err)
	}
	return pc, nil
}

// CreateOffer produces and installs the local offer.
func CreateOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("rtc: create offer: %w", err)
	}

	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("rtc: set local description: %w", err)
	}

	return pc.LocalDescription(), nil
}

// CreateAnswer installs the remote offer and produces the local answer.
func CreateAnswer(pc *pion.PeerConnection, offer *pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := pc.SetRemoteDescription(*offer); err != nil {
		return nil, fmt.Errorf("rtc: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("rtc: create answer: %w", err)
	}

	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("rtc: set local description: %w", err)
	}

	return pc.LocalDescription(), nil
}

// DecodeDescription parses a relayed SDP payload.
func DecodeDescription(raw json.RawMessage) (*pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("rtc: parse session description: %w", err)
	}
	if desc.SDP == "" {
		return nil, fmt.Errorf("rtc: empty session description")
	}
	return &desc, nil
}

// DecodeCandidate parses a relayed ICE candidate payload.
func DecodeCandidate(raw json.RawMessage) (*pion.ICECandidateInit, error) {
	var candidate pion.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, fmt.Errorf("rtc: parse ICE candidate: %w", err)
	}
	if candidate.Candidate == "" {
		return nil, fmt.Errorf("rtc: empty ICE candidate")
	}
	return &candidate, nil
}

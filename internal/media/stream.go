// Package media owns the local capture state for a room session: the
// audio/video tracks attached to every outgoing peer connection, and the
// mute flags that flip without renegotiation.
package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// ErrNoDevice is the user-actionable media fault: no capture source is
// available for the requested kinds. A call does not start on this error.
var ErrNoDevice = errors.New("media: no capture source available")

// Track kinds.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// Track is one local media track plus its enabled flag. Disabling a
// track stops its sample flow; the track itself stays attached to every
// peer connection, so toggling never triggers renegotiation.
type Track struct {
	kind    string
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

func (t *Track) Kind() string { return t.kind }

// Local returns the pion track to attach to a peer connection.
func (t *Track) Local() webrtc.TrackLocal { return t.local }

func (t *Track) Enabled() bool { return t.enabled.Load() }

// SetEnabled flips the sample flow. Sample pumps check the flag per
// frame; while disabled nothing is written, which the remote side renders
// as a muted track.
func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

// WriteSample forwards a sample when the track is enabled.
func (t *Track) WriteSample(sample Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.local.WriteSample(sample)
}

// Stream is the local media handle: at most one audio and one video
// track, shared read-only by every outgoing peer link. Exactly one Stream
// exists per session; only its owner may stop it.
type Stream struct {
	tracks []*Track
	cancel context.CancelFunc
	once   sync.Once
}

// Tracks returns all local tracks.
func (s *Stream) Tracks() []*Track { return s.tracks }

// TrackOfKind returns the track of the given kind, or nil.
func (s *Stream) TrackOfKind(kind string) *Track {
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

// SetAudioEnabled flips the microphone flag.
func (s *Stream) SetAudioEnabled(enabled bool) {
	if t := s.TrackOfKind(KindAudio); t != nil {
		t.SetEnabled(enabled)
	}
}

// SetVideoEnabled flips the camera flag.
func (s *Stream) SetVideoEnabled(enabled bool) {
	if t := s.TrackOfKind(KindVideo); t != nil {
		t.SetEnabled(enabled)
	}
}

// Stop halts every sample pump. Idempotent.
func (s *Stream) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		for _, t := range s.tracks {
			t.SetEnabled(false)
		}
	})
}

// Provider acquires the local media stream for a session. Acquisition is
// asynchronous and cancellable; a failure is a media fault, never a crash.
type Provider interface {
	Acquire(ctx context.Context, audio, video bool) (*Stream, error)
}

func newAudioTrack() (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "dojo")
	if err != nil {
		return nil, err
	}
	t := &Track{kind: KindAudio, local: local}
	t.enabled.Store(true)
	return t, nil
}

func newVideoTrack() (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "dojo")
	if err != nil {
		return nil, err
	}
	t := &Track{kind: KindVideo, local: local}
	t.enabled.Store(true)
	return t, nil
}

// NewSilentStream returns a stream whose tracks carry no samples. Used by
// tests and as the fallback for a requested kind with no capture source.
func NewSilentStream(audio, video bool) (*Stream, error) {
	stream := &Stream{}
	if audio {
		t, err := newAudioTrack()
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, t)
	}
	if video {
		t, err := newVideoTrack()
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, t)
	}
	return stream, nil
}

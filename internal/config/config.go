package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default configuration values (production)
const (
	DefaultAPIURL   = "https://api.dojo-hq.dev/api"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""
)

// Config holds application configuration
type Config struct {
	// APIURL is the base URL of the Dojo platform API, including the /api prefix
	APIURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Capture file paths used to feed local audio/video tracks.
	// Empty means the corresponding device is unavailable.
	AudioFile string
	VideoFile string

	// Reconnect controls whether the room session redials the signaling
	// channel after a transport drop. Off by default: a drop surfaces a
	// notice and the user rejoins manually.
	Reconnect bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	APIURL     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	AudioFile  string
	VideoFile  string
	Reconnect  bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	apiURL := firstOf(opts.APIURL, os.Getenv("DOJO_API_URL"), DefaultAPIURL)
	apiURL = strings.TrimRight(apiURL, "/")

	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}

	return &Config{
		APIURL:     apiURL,
		STUNServer: firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:   firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:   firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		AudioFile:  firstOf(opts.AudioFile, os.Getenv("DOJO_AUDIO_FILE"), ""),
		VideoFile:  firstOf(opts.VideoFile, os.Getenv("DOJO_VIDEO_FILE"), ""),
		Reconnect:  opts.Reconnect,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// WebSocketURL returns the signaling endpoint for a room. The token rides
// as a query parameter because browsers (the other Dojo client) cannot set
// headers on websocket dials, so the server only reads the query form.
func (c *Config) WebSocketURL(roomID, token string) string {
	ws := c.APIURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return fmt.Sprintf("%s/rooms/%s/ws?token=%s", ws, roomID, url.QueryEscape(token))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"DOJO_API_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD"} {
		t.Setenv(name, "")
	}

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("APIURL %q, want default", cfg.APIURL)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Fatalf("STUNServer %q, want default", cfg.STUNServer)
	}
	if cfg.TURNServer != "" || cfg.Reconnect {
		t.Fatalf("unexpected non-defaults: %+v", cfg)
	}
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("DOJO_API_URL", "https://env.example.com/api")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	cfg, err := Load(Options{APIURL: "https://flag.example.com/api"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://flag.example.com/api" {
		t.Fatalf("APIURL %q, flag should win over env", cfg.APIURL)
	}
	if cfg.STUNServer != "stun:env.example.com:3478" {
		t.Fatalf("STUNServer %q, env should win over default", cfg.STUNServer)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	cfg, err := Load(Options{APIURL: "https://api.example.com/api/"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.HasSuffix(cfg.APIURL, "/") {
		t.Fatalf("APIURL keeps trailing slash: %q", cfg.APIURL)
	}
}

func TestWebSocketURL(t *testing.T) {
	cases := []struct {
		name   string
		apiURL string
		want   string
	}{
		{
			name:   "https",
			apiURL: "https://api.example.com/api",
			want:   "wss://api.example.com/api/rooms/r1/ws?token=tok",
		},
		{
			name:   "http",
			apiURL: "http://localhost:8080/api",
			want:   "ws://localhost:8080/api/rooms/r1/ws?token=tok",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{APIURL: tc.apiURL}
			if got := cfg.WebSocketURL("r1", "tok"); got != tc.want {
				t.Fatalf("WebSocketURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWebSocketURLEscapesToken(t *testing.T) {
	cfg := &Config{APIURL: "https://api.example.com/api"}
	got := cfg.WebSocketURL("r1", "a b+c")
	if strings.Contains(got, " ") || strings.Contains(got, "+c") {
		t.Fatalf("token not escaped: %q", got)
	}
}

func TestGetTURNServers(t *testing.T) {
	cfg := &Config{}
	if servers := cfg.GetTURNServers(); servers != nil {
		t.Fatalf("TURN servers without a configured host: %v", servers)
	}

	cfg.TURNServer = "turn.example.com"
	servers := cfg.GetTURNServers()
	if len(servers) != 3 {
		t.Fatalf("%d TURN URLs, want 3", len(servers))
	}
	if servers[0] != "turn:turn.example.com:3478?transport=udp" {
		t.Fatalf("unexpected first TURN URL: %q", servers[0])
	}
	if !strings.HasPrefix(servers[2], "turns:") {
		t.Fatalf("third TURN URL not TLS: %q", servers[2])
	}
}

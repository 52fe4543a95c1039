package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *TokenStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := NewTokenStoreAt(filepath.Join(t.TempDir(), "credentials.json"))
	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Tokens:  tokens,
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, tokens
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": status < 300,
		"data":    data,
	})
}

func TestLoginPersistsCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ada@example.com" || body["password"] != "hunter2" {
			writeEnvelope(w, http.StatusUnauthorized, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, AuthResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		})
	})

	client, tokens := newTestClient(t, mux)

	auth, err := client.Login(context.Background(), "ada@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if auth.AccessToken != "access-1" {
		t.Fatalf("access token %q, want access-1", auth.AccessToken)
	}

	saved, err := tokens.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved == nil || saved.RefreshToken != "refresh-1" {
		t.Fatalf("persisted credentials %+v, want refresh-1", saved)
	}
	if saved.Expired() {
		t.Fatal("fresh credentials already expired")
	}

	token, err := client.EnsureFreshToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureFreshToken: %v", err)
	}
	if token != "access-1" {
		t.Fatalf("fresh token %q, want access-1", token)
	}
}

func TestEnsureFreshTokenRefreshesExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			writeEnvelope(w, http.StatusUnauthorized, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, AuthResponse{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresIn:    3600,
		})
	})

	client, tokens := newTestClient(t, mux)
	if err := tokens.Save(&Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	token, err := client.EnsureFreshToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureFreshToken: %v", err)
	}
	if token != "access-2" {
		t.Fatalf("refreshed token %q, want access-2", token)
	}

	saved, err := tokens.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.RefreshToken != "refresh-2" {
		t.Fatalf("rotated refresh token not persisted: %+v", saved)
	}
}

func TestEnsureFreshTokenNotLoggedIn(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	_, err := client.EnsureFreshToken(context.Background())
	if !errors.Is(err, ErrCredential) {
		t.Fatalf("EnsureFreshToken returned %v, want ErrCredential", err)
	}
}

func TestDoRetriesOnceAfter401(t *testing.T) {
	var profileCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/profile", func(w http.ResponseWriter, r *http.Request) {
		call := profileCalls.Add(1)
		auth := r.Header.Get("Authorization")
		if call == 1 || auth != "Bearer access-2" {
			writeEnvelope(w, http.StatusUnauthorized, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, User{ID: "u1", Username: "ada", Email: "ada@example.com"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, AuthResponse{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresIn:    3600,
		})
	})

	client, tokens := newTestClient(t, mux)
	if err := tokens.Save(&Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	user, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if user.Username != "ada" {
		t.Fatalf("user %+v, want ada", user)
	}
	if got := profileCalls.Load(); got != 2 {
		t.Fatalf("profile endpoint hit %d times, want 2", got)
	}
}

func TestErrorEnvelopeSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "invalid credentials",
		})
	})

	client, _ := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Login returned %v, want *Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestLogoutClearsCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil)
	})

	client, tokens := newTestClient(t, mux)
	if err := tokens.Save(&Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	saved, err := tokens.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved != nil {
		t.Fatalf("credentials survive logout: %+v", saved)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	store := NewTokenStoreAt(filepath.Join(t.TempDir(), "nested", "credentials.json"))

	if creds, err := store.Load(); err != nil || creds != nil {
		t.Fatalf("empty store Load = (%+v, %v), want (nil, nil)", creds, err)
	}

	want := &Credentials{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("round trip lost data: %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

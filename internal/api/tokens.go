package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Credentials are the persisted auth tokens for the platform.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is unusable. A small skew
// window keeps a token that would expire mid-request from being handed out.
func (c *Credentials) Expired() bool {
	return time.Until(c.ExpiresAt) < 30*time.Second
}

// TokenStore persists credentials as a JSON file in the user config dir.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store rooted at the platform config directory
// (e.g. ~/.config/dojo/credentials.json).
func NewTokenStore() (*TokenStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("api: locate config dir: %w", err)
	}
	return &TokenStore{path: filepath.Join(dir, "dojo", "credentials.json")}, nil
}

// NewTokenStoreAt returns a store at an explicit path. Used by tests.
func NewTokenStoreAt(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads saved credentials. Returns nil without error when the user
// has never logged in.
func (s *TokenStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("api: read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("api: parse credentials: %w", err)
	}
	return &creds, nil
}

// Save writes credentials with owner-only permissions.
func (s *TokenStore) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("api: create config dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("api: encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("api: write credentials: %w", err)
	}
	return nil
}

// Clear removes saved credentials. Missing file is not an error.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("api: clear credentials: %w", err)
	}
	return nil
}

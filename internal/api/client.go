package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrCredential marks an unrecoverable credential fault: no saved login,
// or a refresh that the server rejected. All platform operations are
// meaningless without a valid credential, so callers log out and redirect
// to login on this error.
var ErrCredential = errors.New("credential invalid or expired")

// ErrNotLoggedIn is returned when no credentials are saved at all.
var ErrNotLoggedIn = fmt.Errorf("%w: not logged in", ErrCredential)

// Error is a non-2xx platform response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: request failed (status %d)", e.Status)
}

// envelope is the platform's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API root including the /api prefix, no trailing slash.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a 30s
	// timeout is used.
	HTTPClient *http.Client
	// Tokens persists credentials between invocations. Required.
	Tokens *TokenStore
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the Dojo platform REST API. It owns the bearer
// credential: requests are authenticated with the saved access token and
// retried once through a refresh when the server answers 401.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
	logger     *slog.Logger

	mu    sync.Mutex
	creds *Credentials
}

// NewClient creates a platform API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if config.Tokens == nil {
		return nil, fmt.Errorf("api: TokenStore is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		tokens:     config.Tokens,
		logger:     logger,
	}, nil
}

// EnsureFreshToken returns a usable access token, refreshing through the
// saved refresh token when the access token has expired. This is the
// credential provider for the room signaling channel.
func (c *Client) EnsureFreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshTokenLocked(ctx)
}

func (c *Client) freshTokenLocked(ctx context.Context) (string, error) {
	if c.creds == nil {
		creds, err := c.tokens.Load()
		if err != nil {
			return "", err
		}
		if creds == nil {
			return "", ErrNotLoggedIn
		}
		c.creds = creds
	}

	if !c.creds.Expired() {
		return c.creds.AccessToken, nil
	}

	auth, err := c.refresh(ctx, c.creds.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: refresh rejected: %v", ErrCredential, err)
	}
	c.creds = credentialsFrom(auth)
	if err := c.tokens.Save(c.creds); err != nil {
		c.logger.Warn("failed to persist refreshed credentials", "error", err)
	}
	return c.creds.AccessToken, nil
}

func credentialsFrom(auth *AuthResponse) *Credentials {
	return &Credentials{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second),
	}
}

// refresh exchanges the refresh token for a new token pair. It bypasses
// the normal request path to avoid recursing into token handling.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.doUnauthenticated(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": refreshToken}, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// do issues an authenticated request and decodes the envelope's data field
// into out (which may be nil). A 401 triggers exactly one refresh-and-retry.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.mu.Lock()
	token, err := c.freshTokenLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	err = c.roundTrip(ctx, method, path, token, body, out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.mu.Lock()
		// Force a refresh even if the clock says the token is fine; the
		// server's opinion wins.
		if c.creds != nil {
			c.creds.ExpiresAt = time.Time{}
		}
		token, err = c.freshTokenLocked(ctx)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return c.roundTrip(ctx, method, path, token, body, out)
	}
	return err
}

// doUnauthenticated issues a request without a bearer token (login,
// register, refresh).
func (c *Client) doUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	return c.roundTrip(ctx, method, path, "", body, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	var env envelope
	if len(data) > 0 {
		// Error responses use the same envelope, so decode before the
		// status check to get at the message.
		if err := json.Unmarshal(data, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}

	if resp.StatusCode >= 300 || (len(data) > 0 && !env.Success && env.Message != "") {
		return &Error{Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("api: decode response data: %w", err)
		}
	}
	return nil
}

// setCredentials installs and persists a fresh token pair after login or
// register.
func (c *Client) setCredentials(auth *AuthResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = credentialsFrom(auth)
	return c.tokens.Save(c.creds)
}

// clearCredentials drops in-memory and persisted tokens.
func (c *Client) clearCredentials() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
	return c.tokens.Clear()
}

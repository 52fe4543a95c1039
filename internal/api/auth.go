package api

import (
	"context"
	"net/http"
)

// Login authenticates with email and password and persists the returned
// token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var auth AuthResponse
	err := c.doUnauthenticated(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &auth)
	if err != nil {
		return nil, err
	}
	if err := c.setCredentials(&auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Register creates an account and persists the returned token pair.
func (c *Client) Register(ctx context.Context, data RegisterData) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.doUnauthenticated(ctx, http.MethodPost, "/auth/register", data, &auth); err != nil {
		return nil, err
	}
	if err := c.setCredentials(&auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Logout revokes the refresh token server-side and clears saved
// credentials. The local clear happens even when the revoke call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()
	if creds == nil {
		if loaded, err := c.tokens.Load(); err == nil {
			creds = loaded
		}
	}
	if creds != nil && creds.RefreshToken != "" {
		if err := c.do(ctx, http.MethodPost, "/auth/logout",
			map[string]string{"refresh_token": creds.RefreshToken}, nil); err != nil {
			c.logger.Debug("server-side logout failed", "error", err)
		}
	}
	return c.clearCredentials()
}

// Me fetches the authenticated user's account and profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

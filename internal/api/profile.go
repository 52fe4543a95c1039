package api

import (
	"context"
	"net/http"
)

// ProfileStats aggregates per-platform stats keyed by platform name.
// Platforms the user has not linked are absent from the map.
type ProfileStats map[string]PlatformStat

// GetProfileStats fetches the user's profile and reshapes the platform
// stat list into a per-platform map. The server reports GeeksForGeeks as
// "gfg"; callers see the full name.
func (c *Client) GetProfileStats(ctx context.Context) (ProfileStats, error) {
	user, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}

	stats := ProfileStats{}
	if user.Profile == nil {
		return stats, nil
	}
	for _, stat := range user.Profile.PlatformStats {
		key := stat.Platform
		if key == "gfg" {
			key = "geeksforgeeks"
		}
		stats[key] = stat
	}
	return stats, nil
}

// SyncPlatforms asks the server to re-scrape stats for the given
// platforms ("leetcode", "codeforces", "codechef", "gfg"). An empty slice
// syncs every linked platform.
func (c *Client) SyncPlatforms(ctx context.Context, platforms []string) error {
	return c.do(ctx, http.MethodPost, "/users/sync-stats",
		map[string][]string{"platforms": platforms}, nil)
}

// UpdateProfile patches profile fields (bio, handles, links). Only the
// provided keys change.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/users/profile", fields, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListProblems returns problems matching the given filters.
func (c *Client) ListProblems(ctx context.Context, filters ProblemFilters) ([]Problem, error) {
	query := url.Values{}
	if filters.Difficulty != "" {
		query.Set("difficulty", filters.Difficulty)
	}
	if filters.Platform != "" {
		query.Set("platform", filters.Platform)
	}
	if len(filters.Tags) > 0 {
		query.Set("tags", strings.Join(filters.Tags, ","))
	}
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}

	path := "/problems"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var problems []Problem
	if err := c.do(ctx, http.MethodGet, path, nil, &problems); err != nil {
		return nil, err
	}
	return problems, nil
}

// UpcomingContests returns the contest calendar across platforms.
func (c *Client) UpcomingContests(ctx context.Context) ([]Contest, error) {
	var contests []Contest
	if err := c.do(ctx, http.MethodGet, "/contests/upcoming", nil, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

// ListSheets returns the user's visible problem sheets.
func (c *Client) ListSheets(ctx context.Context) ([]Sheet, error) {
	var sheets []Sheet
	if err := c.do(ctx, http.MethodGet, "/sheets", nil, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// GetSheet fetches one sheet with its problems.
func (c *Client) GetSheet(ctx context.Context, id string) (*Sheet, error) {
	var sheet Sheet
	if err := c.do(ctx, http.MethodGet, "/sheets/"+id, nil, &sheet); err != nil {
		return nil, err
	}
	return &sheet, nil
}

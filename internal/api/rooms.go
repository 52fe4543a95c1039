package api

import (
	"context"
	"net/http"
)

// ListRooms returns the active room listing.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetRoom fetches one room. The server nests the room under a "room" key
// on some endpoints and returns it bare on others; handle both.
func (c *Client) GetRoom(ctx context.Context, id string) (*Room, error) {
	var payload struct {
		Room
		Nested *Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+id, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Nested != nil {
		return payload.Nested, nil
	}
	room := payload.Room
	return &room, nil
}

// CreateRoom creates a room and returns it.
func (c *Client) CreateRoom(ctx context.Context, data CreateRoomData) (*Room, error) {
	var payload struct {
		Room *Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms", data, &payload); err != nil {
		return nil, err
	}
	return payload.Room, nil
}

// DeleteRoom removes a room the user owns.
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+id, nil, nil)
}

// JoinRoom registers the user as a participant of a room.
func (c *Client) JoinRoom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+id+"/join", nil, nil)
}

// JoinRoomByCode joins via a shareable room code and returns the room.
func (c *Client) JoinRoomByCode(ctx context.Context, code string) (*Room, error) {
	var payload struct {
		Room *Room `json:"room"`
	}
	err := c.do(ctx, http.MethodPost, "/rooms/join",
		map[string]string{"room_code": code}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Room, nil
}

// LeaveRoom removes the user from a room's participant list.
func (c *Client) LeaveRoom(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+id+"/leave", nil, nil)
}

package api

import "time"

// User is the authenticated platform account.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	CreatedAt string   `json:"created_at"`
	Profile   *Profile `json:"profile,omitempty"`
}

// Profile carries the competitive-programming handles and aggregated stats
// attached to a user.
type Profile struct {
	Bio                string         `json:"bio,omitempty"`
	Location           string         `json:"location,omitempty"`
	Website            string         `json:"website,omitempty"`
	LeetCodeUsername   string         `json:"leetcode_username,omitempty"`
	CodeforcesUsername string         `json:"codeforces_username,omitempty"`
	CodeChefUsername   string         `json:"codechef_username,omitempty"`
	GFGUsername        string         `json:"gfg_username,omitempty"`
	TotalSolved        int            `json:"total_solved,omitempty"`
	EasySolved         int            `json:"easy_solved,omitempty"`
	MediumSolved       int            `json:"medium_solved,omitempty"`
	HardSolved         int            `json:"hard_solved,omitempty"`
	PlatformStats      []PlatformStat `json:"platform_stats,omitempty"`
}

// PlatformStat is one external platform's synced numbers.
type PlatformStat struct {
	Platform         string `json:"platform"`
	Rating           int    `json:"rating"`
	MaxRating        int    `json:"max_rating"`
	SolvedCount      int    `json:"solved_count"`
	EasySolved       int    `json:"easy_solved"`
	MediumSolved     int    `json:"medium_solved"`
	HardSolved       int    `json:"hard_solved"`
	GlobalRank       int    `json:"global_rank"`
	ContestsAttended int    `json:"contests_attended"`
	LastSyncedAt     string `json:"last_synced_at,omitempty"`
}

// AuthResponse is returned by login, register and refresh.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RegisterData is the payload for account creation.
type RegisterData struct {
	Email              string `json:"email"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	LeetCodeUsername   string `json:"leetcode_username,omitempty"`
	CodeforcesUsername string `json:"codeforces_username,omitempty"`
}

// Room is a collaborative workspace listing entry.
type Room struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	RoomCode            string `json:"room_code"`
	Description         string `json:"description,omitempty"`
	MaxParticipants     int    `json:"max_participants"`
	CurrentParticipants int    `json:"current_participants"`
	CreatedBy           string `json:"created_by"`
	IsActive            bool   `json:"is_active"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// CreateRoomData is the payload for room creation.
type CreateRoomData struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	MaxParticipants int    `json:"max_participants"`
}

// Problem is a tracked problem across platforms.
type Problem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Difficulty     string   `json:"difficulty"`
	Platform       string   `json:"platform"`
	ProblemURL     string   `json:"problem_url,omitempty"`
	Tags           []string `json:"tags"`
	AcceptanceRate float64  `json:"acceptance_rate,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// ProblemFilters narrows a problem listing.
type ProblemFilters struct {
	Difficulty string
	Platform   string
	Tags       []string
	Search     string
}

// Contest is an upcoming or running contest on an external platform.
type Contest struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Platform        string    `json:"platform"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds int       `json:"duration_seconds"`
	URL             string    `json:"url"`
	Phase           string    `json:"phase,omitempty"`
}

// Sheet is a curated problem list.
type Sheet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	IsPublic    bool      `json:"is_public"`
	Problems    []Problem `json:"problems"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

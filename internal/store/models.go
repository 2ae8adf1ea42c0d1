package store

import "time"

type Session struct {
	SessionID string `json:"session_id"` // UUID handed out by the API
	UserID    int64  `json:"user_id"`
	Category  string `json:"category"`
}

type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile is a row of the externally-maintained v_user_profile_stats
// view. Fields the view leaves NULL come back as their zero/nil values.
type UserProfile struct {
	UserID        int64  `json:"user_id"`
	TotalScore    int    `json:"total_score"`
	Rank          string `json:"rank"`           // "" when the user has no rank
	AcademicLevel *int   `json:"academic_level"` // nil when unknown
}

type Rule struct {
	RuleID       int64   `json:"rule_id"`
	ActivityName string  `json:"activity_name"`
	Points       float64 `json:"points"`
	MaxPoints    float64 `json:"max_points"`
}

// RuleDocument is one snippet of the embedded rule corpus used for
// semantic search.
type RuleDocument struct {
	ID        int64
	Content   string
	Embedding []float32
}

// Package model defines the core conversation and profile data types.
package model

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHuman || r == RoleAgent
}

// Session is a single conversation. Immutable after creation except for
// title backfill from the first human turn.
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Title     string    `json:"title,omitempty"`
}

// Turn is one message within a session. Immutable once written.
// Turns within a session are totally ordered by timestamp.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile is the durable, cross-session record for one user.
// EmotionTrends maps an emotion label to a numeric value; ImportantEvents
// maps a date key to a description.
type Profile struct {
	UserID          string             `json:"user_id"`
	ProfileSummary  string             `json:"profile_summary,omitempty"`
	EmotionTrends   map[string]float64 `json:"emotion_trends,omitempty"`
	ImportantEvents map[string]string  `json:"important_events,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at,omitempty"`
}

// ProfileUpdate is a partial profile change. A nil Summary leaves the stored
// summary untouched; a non-nil Summary replaces it wholesale. Trend and event
// maps are merged key-wise into the stored maps: keys absent from the update
// are preserved, keys present overwrite the stored value for that key.
type ProfileUpdate struct {
	Summary         *string            `json:"profile_summary,omitempty"`
	EmotionTrends   map[string]float64 `json:"emotion_trends,omitempty"`
	ImportantEvents map[string]string  `json:"important_events,omitempty"`
}

// Empty reports whether the update carries no changes.
func (u ProfileUpdate) Empty() bool {
	return u.Summary == nil && len(u.EmotionTrends) == 0 && len(u.ImportantEvents) == 0
}

// Classification is the result of the external emotion/intent classifier.
// Intensity is on a 0..10 scale.
type Classification struct {
	Label     string  `json:"label"`
	Intensity float64 `json:"intensity"`
}

// ContextBundle is the assembled per-turn context handed to the external
// generation component.
type ContextBundle struct {
	ShortTerm          []Turn  `json:"short_term"`
	LongTerm           Profile `json:"long_term"`
	RetrievedKnowledge string  `json:"retrieved_knowledge,omitempty"`
	Route              string  `json:"route"`
	SafetyNotice       string  `json:"safety_notice,omitempty"`
}

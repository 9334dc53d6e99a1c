// Package memory provides the conversation and profile storage interfaces
// and their SQLite implementation.
package memory

import (
	"context"
	"errors"

	"github.com/seedling-ai/companion/internal/model"
)

// ErrSessionNotFound is returned when a turn is appended to (or read from)
// an unknown session. Sessions must be created explicitly first.
var ErrSessionNotFound = errors.New("session not found")

// ErrValidation is returned for malformed profile update payloads.
var ErrValidation = errors.New("invalid profile update")

// AppendParams holds parameters for appending a turn.
type AppendParams struct {
	SessionID string
	Role      model.Role
	Content   string
}

// RecentParams holds parameters for the short-term window query.
type RecentParams struct {
	SessionID string
	Limit     int
}

// ConversationStore is the durable, ordered turn log.
type ConversationStore interface {
	// CreateSession creates a new session. The title may be empty; it is
	// backfilled from the first human turn.
	CreateSession(ctx context.Context, title string) (model.Session, error)

	// GetSession returns a session by ID, or ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (model.Session, error)

	// AppendTurn persists a new turn. Returns ErrSessionNotFound when the
	// session does not exist. Writes within one session are serialized.
	AppendTurn(ctx context.Context, p AppendParams) (model.Turn, error)

	// Recent returns up to Limit of the most recent turns, oldest first.
	// Pure query, no side effects.
	Recent(ctx context.Context, p RecentParams) ([]model.Turn, error)

	// ListSessions returns sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)
}

// ProfileStore is the per-user long-term record with merge semantics.
type ProfileStore interface {
	// GetProfile returns the stored profile, or an empty profile when the
	// user has never been written. Missing profiles are not an error.
	GetProfile(ctx context.Context, userID string) (model.Profile, error)

	// UpdateProfile merges a partial update into the stored profile and
	// returns the result. Creates the profile lazily on first write.
	// Idempotent: applying the same update twice equals applying it once.
	UpdateProfile(ctx context.Context, userID string, u model.ProfileUpdate) (model.Profile, error)
}

// Store combines both stores plus lifecycle.
type Store interface {
	ConversationStore
	ProfileStore
	Close() error
}

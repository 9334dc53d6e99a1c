package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seedling-ai/companion/internal/model"
)

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	p := model.Profile{UserID: userID}

	var summary, trends, events sql.NullString
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_summary, emotion_trends, important_events, updated_at
		 FROM profiles WHERE user_id = ?`, userID).
		Scan(&summary, &trends, &events, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		// Missing profiles are an empty default, never an error.
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}

	if summary.Valid {
		p.ProfileSummary = summary.String
	}
	if trends.Valid && trends.String != "" {
		if err := json.Unmarshal([]byte(trends.String), &p.EmotionTrends); err != nil {
			return p, fmt.Errorf("decode emotion trends for %s: %w", userID, err)
		}
	}
	if events.Valid && events.String != "" {
		if err := json.Unmarshal([]byte(events.String), &p.ImportantEvents); err != nil {
			return p, fmt.Errorf("decode important events for %s: %w", userID, err)
		}
	}
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

// UpdateProfile merges u into the stored profile under a per-user lock so two
// concurrent merges cannot both read the same base state and clobber each
// other's keys.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID string, u model.ProfileUpdate) (model.Profile, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	merged := mergeProfile(current, u)
	merged.UpdatedAt = time.Now().UTC()

	trendsJSON, err := json.Marshal(merged.EmotionTrends)
	if err != nil {
		return model.Profile{}, fmt.Errorf("encode emotion trends: %w", err)
	}
	eventsJSON, err := json.Marshal(merged.ImportantEvents)
	if err != nil {
		return model.Profile{}, fmt.Errorf("encode important events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, profile_summary, emotion_trends, important_events, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			profile_summary  = excluded.profile_summary,
			emotion_trends   = excluded.emotion_trends,
			important_events = excluded.important_events,
			updated_at       = excluded.updated_at
	`, userID, merged.ProfileSummary, string(trendsJSON), string(eventsJSON),
		merged.UpdatedAt.Format(timeLayout))
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return merged, nil
}

// mergeProfile applies the documented merge contract: summary is a
// whole-value replace, trends and events are a key-wise union where keys in
// the update overwrite the stored value and all other keys are preserved.
func mergeProfile(base model.Profile, u model.ProfileUpdate) model.Profile {
	out := model.Profile{
		UserID:          base.UserID,
		ProfileSummary:  base.ProfileSummary,
		EmotionTrends:   make(map[string]float64, len(base.EmotionTrends)+len(u.EmotionTrends)),
		ImportantEvents: make(map[string]string, len(base.ImportantEvents)+len(u.ImportantEvents)),
	}
	for k, v := range base.EmotionTrends {
		out.EmotionTrends[k] = v
	}
	for k, v := range base.ImportantEvents {
		out.ImportantEvents[k] = v
	}

	if u.Summary != nil {
		out.ProfileSummary = *u.Summary
	}
	for k, v := range u.EmotionTrends {
		out.EmotionTrends[k] = v
	}
	for k, v := range u.ImportantEvents {
		out.ImportantEvents[k] = v
	}
	return out
}

// ParseProfileUpdate builds a ProfileUpdate from loosely-typed inputs: the
// trend and event arguments arrive as JSON strings (the upstream tool call
// passes string parameters). Returns ErrValidation when a payload is present
// but not map-shaped.
func ParseProfileUpdate(summary, trendsJSON, eventsJSON string) (model.ProfileUpdate, error) {
	var u model.ProfileUpdate
	if summary != "" {
		u.Summary = &summary
	}
	if trendsJSON != "" {
		if err := json.Unmarshal([]byte(trendsJSON), &u.EmotionTrends); err != nil {
			return model.ProfileUpdate{}, fmt.Errorf("%w: emotion_trends must be a JSON object of numbers: %v", ErrValidation, err)
		}
	}
	if eventsJSON != "" {
		if err := json.Unmarshal([]byte(eventsJSON), &u.ImportantEvents); err != nil {
			return model.ProfileUpdate{}, fmt.Errorf("%w: important_events must be a JSON object of strings: %v", ErrValidation, err)
		}
	}
	return u, nil
}

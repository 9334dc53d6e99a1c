package memory

import (
	"context"

	"github.com/seedling-ai/companion/internal/model"
)

// Transcript is a full session export: the session record plus every turn in
// read order.
type Transcript struct {
	Session model.Session `json:"session"`
	Turns   []model.Turn  `json:"turns"`
}

// ExportSession returns the complete transcript for one session, oldest turn
// first. Returns ErrSessionNotFound for unknown sessions.
func (s *SQLiteStore) ExportSession(ctx context.Context, sessionID string) (*Transcript, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, timestamp FROM turns
		 WHERE session_id = ?
		 ORDER BY timestamp ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tr := &Transcript{Session: sess}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		tr.Turns = append(tr.Turns, t)
	}
	return tr, rows.Err()
}

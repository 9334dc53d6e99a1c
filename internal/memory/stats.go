package memory

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string         `json:"db_path"`
	DBSizeBytes int64          `json:"db_size_bytes"`
	Sessions    int            `json:"sessions"`
	Turns       int            `json:"turns"`
	Profiles    int            `json:"profiles"`
	Roles       map[string]int `json:"turns_by_role,omitempty"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, Roles: make(map[string]int)}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&st.Turns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&st.Profiles)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, COUNT(*) FROM turns GROUP BY role`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		var count int
		rows.Scan(&role, &count)
		st.Roles[role] = count
	}

	return st, nil
}

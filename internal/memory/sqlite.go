package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/seedling-ai/companion/internal/model"
)

// Timestamps are compared as TEXT in SQL, so the encoding must be fixed
// width: RFC3339Nano trims trailing zeros and "...00.5Z" would sort after
// "...00.51Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// titleMaxLen bounds the backfilled session title.
const titleMaxLen = 80

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand

	mu       sync.Mutex // guards entropy and the lock maps
	sessions map[string]*sync.Mutex
	users    map[string]*sync.Mutex
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions: make(map[string]*sync.Mutex),
		users:    make(map[string]*sync.Mutex),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		start_time  TEXT NOT NULL,
		title       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time DESC);

	CREATE TABLE IF NOT EXISTS turns (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		role        TEXT NOT NULL CHECK (role IN ('human', 'agent')),
		content     TEXT NOT NULL,
		timestamp   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session_ts ON turns(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id          TEXT PRIMARY KEY,
		profile_summary  TEXT,
		emotion_trends   TEXT,
		important_events TEXT,
		updated_at       TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) newTurnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// sessionLock returns the mutex serializing writes for one session.
func (s *SQLiteStore) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	if !ok {
		m = &sync.Mutex{}
		s.sessions[id] = m
	}
	return m
}

// userLock returns the mutex serializing profile updates for one user.
func (s *SQLiteStore) userLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[id]
	if !ok {
		m = &sync.Mutex{}
		s.users[id] = m
	}
	return m
}

func (s *SQLiteStore) CreateSession(ctx context.Context, title string) (model.Session, error) {
	sess := model.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
		Title:     title,
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, start_time, title) VALUES (?, ?, ?)`,
		sess.ID, sess.StartTime.Format(timeLayout), titlePtr)
	if err != nil {
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	var start string
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, start_time, title FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &start, &title)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return model.Session{}, err
	}
	sess.StartTime, _ = time.Parse(timeLayout, start)
	if title.Valid {
		sess.Title = title.String
	}
	return sess, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, p AppendParams) (model.Turn, error) {
	if !p.Role.Valid() {
		return model.Turn{}, fmt.Errorf("%w: role %q", ErrValidation, p.Role)
	}

	lock := s.sessionLock(p.SessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Turn{}, err
	}
	defer tx.Rollback()

	var title sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT title FROM sessions WHERE id = ?`, p.SessionID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Turn{}, fmt.Errorf("%w: %s", ErrSessionNotFound, p.SessionID)
	}
	if err != nil {
		return model.Turn{}, err
	}

	// Keep timestamps strictly non-decreasing within the session even if the
	// wall clock steps backwards.
	now := time.Now().UTC()
	var lastStr sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM turns WHERE session_id = ?`, p.SessionID).Scan(&lastStr); err != nil {
		return model.Turn{}, err
	}
	if lastStr.Valid {
		if last, perr := time.Parse(timeLayout, lastStr.String); perr == nil && !now.After(last) {
			now = last.Add(time.Microsecond)
		}
	}

	turn := model.Turn{
		ID:        s.newTurnID(),
		SessionID: p.SessionID,
		Role:      p.Role,
		Content:   p.Content,
		Timestamp: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, string(turn.Role), turn.Content, now.Format(timeLayout))
	if err != nil {
		return model.Turn{}, fmt.Errorf("insert turn: %w", err)
	}

	// Backfill the session title from the first human turn.
	if p.Role == model.RoleHuman && (!title.Valid || title.String == "") {
		t := p.Content
		if r := []rune(t); len(r) > titleMaxLen {
			t = string(r[:titleMaxLen])
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET title = ? WHERE id = ?`, t, p.SessionID); err != nil {
			return model.Turn{}, fmt.Errorf("backfill title: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Turn{}, err
	}
	return turn, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, p RecentParams) ([]model.Turn, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	if _, err := s.GetSession(ctx, p.SessionID); err != nil {
		return nil, err
	}

	// Take the newest N, then flip to oldest-first read order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, timestamp FROM turns
		 WHERE session_id = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, p.SessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_time, title FROM sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var start string
		var title sql.NullString
		if err := rows.Scan(&sess.ID, &start, &title); err != nil {
			return nil, err
		}
		sess.StartTime, _ = time.Parse(timeLayout, start)
		if title.Valid {
			sess.Title = title.String
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(row scanner) (model.Turn, error) {
	var t model.Turn
	var role, ts string
	if err := row.Scan(&t.ID, &t.SessionID, &role, &t.Content, &ts); err != nil {
		return t, err
	}
	t.Role = model.Role(role)
	t.Timestamp, _ = time.Parse(timeLayout, ts)
	return t, nil
}

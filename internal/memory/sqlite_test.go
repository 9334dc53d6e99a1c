package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seedling-ai/companion/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" {
		t.Error("expected non-empty session ID")
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("expected %q, got %q", sess.ID, got.ID)
	}
}

func TestAppendToUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendTurn(ctx, AppendParams{
		SessionID: "nope", Role: model.RoleHuman, Content: "hello",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendRejectsBadRole(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	_, err := s.AppendTurn(ctx, AppendParams{
		SessionID: sess.ID, Role: "robot", Content: "beep",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestTitleBackfillFromFirstHumanTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "how do I sleep better"})
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleAgent, Content: "let's talk about it"})
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "second question"})

	got, _ := s.GetSession(ctx, sess.ID)
	if got.Title != "how do I sleep better" {
		t.Errorf("expected title from first human turn, got %q", got.Title)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	for i := 0; i < 7; i++ {
		role := model.RoleHuman
		if i%2 == 1 {
			role = model.RoleAgent
		}
		_, err := s.AppendTurn(ctx, AppendParams{
			SessionID: sess.ID, Role: role, Content: fmt.Sprintf("turn-%d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, err := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 4})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	// Oldest first within the window: turns 3..6
	if turns[0].Content != "turn-3" || turns[3].Content != "turn-6" {
		t.Errorf("wrong window: first=%q last=%q", turns[0].Content, turns[3].Content)
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].Timestamp.Before(turns[i-1].Timestamp) {
			t.Errorf("timestamps out of order at %d", i)
		}
	}
}

func TestRecentReturnsFullShortHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "only one"})

	turns, err := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 10})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "only one" {
		t.Errorf("expected full short history, got %v", turns)
	}
}

func TestRecentIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "a"})
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleAgent, Content: "b"})

	first, _ := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 5})
	second, _ := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 5})
	if len(first) != len(second) {
		t.Fatalf("repeated query changed results: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("replayed query reordered turns at %d", i)
		}
	}
}

func TestConcurrentAppendsStayOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			_, err := s.AppendTurn(ctx, AppendParams{
				SessionID: sess.ID, Role: model.RoleHuman, Content: fmt.Sprintf("c-%d", n),
			})
			done <- err
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	turns, _ := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 10})
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].Timestamp.Before(turns[i-1].Timestamp) {
			t.Errorf("timestamps regressed at %d", i)
		}
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateSession(ctx, "first")
	time.Sleep(2 * time.Millisecond)
	b, _ := s.CreateSession(ctx, "second")

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != b.ID || sessions[1].ID != a.ID {
		t.Error("expected newest session first")
	}
}

func TestExportSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, _ := s.CreateSession(ctx, "")
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "hi"})
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleAgent, Content: "hello"})

	tr, err := s.ExportSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(tr.Turns) != 2 || tr.Turns[0].Content != "hi" {
		t.Errorf("unexpected transcript: %+v", tr.Turns)
	}

	if _, err := s.ExportSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	sess, _ := s.CreateSession(ctx, "")
	s.AppendTurn(ctx, AppendParams{SessionID: sess.ID, Role: model.RoleHuman, Content: "hi"})
	s.UpdateProfile(ctx, "u1", model.ProfileUpdate{EmotionTrends: map[string]float64{"calm": 5}})

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Sessions != 1 || st.Turns != 1 || st.Profiles != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestTimestampEncodingIsLexicographicallyMonotonic(t *testing.T) {
	// The .5s fraction is a prefix of .51s; a trimmed encoding would sort
	// them backwards because 'Z' > '5'.
	a := time.Date(2026, 8, 30, 12, 0, 0, 500_000_000, time.UTC)
	b := time.Date(2026, 8, 30, 12, 0, 0, 510_000_000, time.UTC)

	ea, eb := a.Format(timeLayout), b.Format(timeLayout)
	if !(ea < eb) {
		t.Fatalf("encoding not monotonic: %q !< %q", ea, eb)
	}

	back, err := time.Parse(timeLayout, ea)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("round trip changed the instant: %v vs %v", back, a)
	}
}

func TestRecentOrdersSubSecondTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	// Write rows directly so the stored fractions are controlled: the
	// earlier one is a decimal prefix of the later one.
	first := time.Date(2026, 8, 30, 12, 0, 0, 500_000_000, time.UTC)
	second := first.Add(10 * time.Millisecond)
	for i, ts := range []time.Time{first, second} {
		content := fmt.Sprintf("turn-%d", i)
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO turns (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
			s.newTurnID(), sess.ID, "human", content, ts.Format(timeLayout)); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := s.Recent(ctx, RecentParams{SessionID: sess.ID, Limit: 10})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "turn-0" || turns[1].Content != "turn-1" {
		t.Errorf("sub-second turns misordered: %q then %q @ %v, %v",
			turns[0].Content, turns[1].Content, turns[0].Timestamp, turns[1].Timestamp)
	}

	// The monotonic append guard reads MAX(timestamp) over the same column;
	// a fresh append must land after both rows.
	turn, err := s.AppendTurn(ctx, AppendParams{
		SessionID: sess.ID, Role: model.RoleHuman, Content: "turn-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !turn.Timestamp.After(second) {
		t.Errorf("appended turn %v not after %v", turn.Timestamp, second)
	}
}

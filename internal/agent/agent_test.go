package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seedling-ai/companion/internal/chunker"
	"github.com/seedling-ai/companion/internal/classifier"
	"github.com/seedling-ai/companion/internal/embedding"
	"github.com/seedling-ai/companion/internal/knowledge"
	"github.com/seedling-ai/companion/internal/memory"
	"github.com/seedling-ai/companion/internal/model"
	"github.com/seedling-ai/companion/internal/policy"
)

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	s, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedClassifier(label string, intensity float64) classifier.Classifier {
	return classifier.Func(func(context.Context, string) (model.Classification, error) {
		return model.Classification{Label: label, Intensity: intensity}, nil
	})
}

func downClassifier() classifier.Classifier {
	return classifier.Func(func(context.Context, string) (model.Classification, error) {
		return model.Classification{}, classifier.ErrUnavailable
	})
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func builtRetriever(t *testing.T, docs map[string]string) *knowledge.Retriever {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		if err := writeFile(filepath.Join(dir, name), content); err != nil {
			t.Fatal(err)
		}
	}
	handle := knowledge.NewHandle()
	lex := embedding.NewLexical(128)
	in := knowledge.NewIndexer(lex, chunker.DefaultOptions(), t.TempDir(), handle, nil)
	if _, err := in.Build(context.Background(), dir); err != nil {
		t.Fatalf("build index: %v", err)
	}
	return knowledge.NewRetriever(handle, lex, 2, nil)
}

func TestProcessTurnEmpathy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, err := store.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	a := New(Options{Store: store, Classifier: fixedClassifier("sad", 4)})
	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "today was really hard")
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if bundle.Route != string(policy.RouteEmpathy) {
		t.Errorf("route = %s, want empathy", bundle.Route)
	}
	if bundle.RetrievedKnowledge != "" {
		t.Error("empathy route must not carry retrieved knowledge")
	}
	if len(bundle.ShortTerm) != 1 || bundle.ShortTerm[0].Content != "today was really hard" {
		t.Errorf("short-term window missing the new turn: %+v", bundle.ShortTerm)
	}
}

func TestProcessTurnRetrieves(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	r := builtRetriever(t, map[string]string{
		"sleep.txt": "A consistent bedtime and a dark room improve sleep quality.",
	})
	a := New(Options{Store: store, Classifier: fixedClassifier("anxious", 5), Retriever: r})

	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "how do I sleep better at night")
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if bundle.Route != string(policy.RouteRetrieve) {
		t.Fatalf("route = %s, want retrieve", bundle.Route)
	}
	if !strings.Contains(bundle.RetrievedKnowledge, "bedtime") {
		t.Errorf("expected grounded knowledge, got %q", bundle.RetrievedKnowledge)
	}
}

func TestProcessTurnEscalateSkipsRetrieval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	r := builtRetriever(t, map[string]string{"doc.txt": "breathing techniques"})
	a := New(Options{Store: store, Classifier: fixedClassifier("despair", 9), Retriever: r})

	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "help me, I want to hurt myself")
	if err != nil {
		t.Fatalf("process turn: %v", err)
	}
	if bundle.Route != string(policy.RouteEscalate) {
		t.Fatalf("route = %s, want escalate", bundle.Route)
	}
	if bundle.RetrievedKnowledge != "" {
		t.Error("escalation must never retrieve")
	}
	if bundle.SafetyNotice != policy.SafetyResources {
		t.Error("escalation must carry the fixed safety resources text")
	}
}

func TestProcessTurnClassifierDownDegradesNeutral(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	a := New(Options{Store: store, Classifier: downClassifier()})
	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "I feel terrible today")
	if err != nil {
		t.Fatalf("turn must survive a dead classifier: %v", err)
	}
	// Neutral classification, expressive text: empathy route.
	if bundle.Route != string(policy.RouteEmpathy) {
		t.Errorf("route = %s, want empathy", bundle.Route)
	}
}

func TestProcessTurnIndexNotBuiltDegradesUngrounded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	r := knowledge.NewRetriever(knowledge.NewHandle(), embedding.NewLexical(64), 3, nil)
	a := New(Options{Store: store, Classifier: fixedClassifier("anxious", 4), Retriever: r})

	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "any advice for stress?")
	if err != nil {
		t.Fatalf("turn must survive a missing index: %v", err)
	}
	if bundle.Route != string(policy.RouteRetrieve) {
		t.Errorf("route = %s, want retrieve", bundle.Route)
	}
	if bundle.RetrievedKnowledge != "" {
		t.Error("missing index must produce an ungrounded bundle")
	}
}

func TestProcessTurnUnknownSession(t *testing.T) {
	store := newTestStore(t)
	a := New(Options{Store: store, Classifier: fixedClassifier("sad", 2)})
	_, err := a.ProcessTurn(context.Background(), "no-such-session", "user-1", "hello")
	if !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProcessTurnIncludesProfile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	summary := "university student, exam stress"
	if _, err := store.UpdateProfile(ctx, "user-1", model.ProfileUpdate{
		Summary:       &summary,
		EmotionTrends: map[string]float64{"anxious": 3},
	}); err != nil {
		t.Fatal(err)
	}

	a := New(Options{Store: store, Classifier: fixedClassifier("anxious", 3)})
	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "hi again")
	if err != nil {
		t.Fatal(err)
	}
	if bundle.LongTerm.ProfileSummary != summary {
		t.Errorf("long-term profile missing: %+v", bundle.LongTerm)
	}
}

func TestRecordReplyAndWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sess, _ := store.CreateSession(ctx, "")

	a := New(Options{Store: store, Classifier: fixedClassifier("neutral", 0), Window: 4})
	for i := 0; i < 4; i++ {
		if _, err := a.ProcessTurn(ctx, sess.ID, "user-1", "message"); err != nil {
			t.Fatal(err)
		}
		if _, err := a.RecordReply(ctx, sess.ID, "reply"); err != nil {
			t.Fatal(err)
		}
	}

	bundle, err := a.ProcessTurn(ctx, sess.ID, "user-1", "latest")
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.ShortTerm) != 4 {
		t.Fatalf("window = %d turns, want 4", len(bundle.ShortTerm))
	}
	last := bundle.ShortTerm[len(bundle.ShortTerm)-1]
	if last.Content != "latest" || last.Role != model.RoleHuman {
		t.Errorf("window must end with the newest turn, got %+v", last)
	}
}

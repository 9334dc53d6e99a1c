// Package agent orchestrates one conversational turn: record it, classify
// it, route it, optionally ground it, and assemble the context bundle the
// response generator consumes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seedling-ai/companion/internal/classifier"
	"github.com/seedling-ai/companion/internal/knowledge"
	"github.com/seedling-ai/companion/internal/memory"
	"github.com/seedling-ai/companion/internal/model"
	"github.com/seedling-ai/companion/internal/policy"
)

// DefaultWindow is the short-term context size in turns.
const DefaultWindow = 10

// Agent wires the stores, the classifier, the routing policy, and the
// retriever into the per-turn pipeline.
type Agent struct {
	store           memory.Store
	classifier      classifier.Classifier
	policy          *policy.Policy
	retriever       *knowledge.Retriever
	window          int
	classifyTimeout time.Duration
	logger          *slog.Logger
}

// Options configures an Agent. Store and Classifier are required; a nil
// Retriever disables grounding entirely.
type Options struct {
	Store           memory.Store
	Classifier      classifier.Classifier
	Policy          *policy.Policy
	Retriever       *knowledge.Retriever
	Window          int
	ClassifyTimeout time.Duration
	Logger          *slog.Logger
}

// New creates an Agent from options, filling defaults for anything unset.
func New(opts Options) *Agent {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = 5 * time.Second
	}
	if opts.Policy == nil {
		opts.Policy = policy.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		store:           opts.Store,
		classifier:      opts.Classifier,
		policy:          opts.Policy,
		retriever:       opts.Retriever,
		window:          opts.Window,
		classifyTimeout: opts.ClassifyTimeout,
		logger:          opts.Logger,
	}
}

// ProcessTurn runs the full pipeline for one human turn and returns the
// context bundle for response generation. The turn is persisted before
// anything else; a storage failure aborts the turn.
//
// Classification and retrieval degrade instead of failing: a dead
// classifier yields the neutral classification, and an unbuilt or
// unreachable index yields an ungrounded bundle. The escalation route
// never retrieves.
func (a *Agent) ProcessTurn(ctx context.Context, sessionID, userID, text string) (model.ContextBundle, error) {
	var bundle model.ContextBundle

	if _, err := a.store.AppendTurn(ctx, memory.AppendParams{
		SessionID: sessionID,
		Role:      model.RoleHuman,
		Content:   text,
	}); err != nil {
		return bundle, fmt.Errorf("append turn: %w", err)
	}

	recent, err := a.store.Recent(ctx, memory.RecentParams{
		SessionID: sessionID,
		Limit:     a.window,
	})
	if err != nil {
		return bundle, fmt.Errorf("recent turns: %w", err)
	}
	bundle.ShortTerm = recent

	cls := a.classify(ctx, text)
	decision := a.policy.Decide(text, cls)
	bundle.Route = string(decision.Route)
	a.logger.Debug("turn routed",
		"session", sessionID,
		"route", decision.Route,
		"reason", decision.Reason,
		"label", cls.Label,
		"intensity", cls.Intensity)

	switch decision.Route {
	case policy.RouteEscalate:
		bundle.SafetyNotice = policy.SafetyResources
	case policy.RouteRetrieve:
		bundle.RetrievedKnowledge = a.retrieve(ctx, text)
	}

	profile, err := a.store.GetProfile(ctx, userID)
	if err != nil {
		return bundle, fmt.Errorf("get profile: %w", err)
	}
	bundle.LongTerm = profile

	return bundle, nil
}

// RecordReply appends the agent's reply to the session log.
func (a *Agent) RecordReply(ctx context.Context, sessionID, text string) (model.Turn, error) {
	return a.store.AppendTurn(ctx, memory.AppendParams{
		SessionID: sessionID,
		Role:      model.RoleAgent,
		Content:   text,
	})
}

func (a *Agent) classify(ctx context.Context, text string) model.Classification {
	cctx, cancel := context.WithTimeout(ctx, a.classifyTimeout)
	defer cancel()

	cls, err := a.classifier.Classify(cctx, text)
	if err != nil {
		a.logger.Warn("classifier unavailable, using neutral", "error", err)
		return classifier.Neutral()
	}
	return cls
}

func (a *Agent) retrieve(ctx context.Context, query string) string {
	if a.retriever == nil {
		a.logger.Debug("retrieval requested but no retriever configured")
		return ""
	}
	text, err := a.retriever.SearchText(ctx, query)
	if err != nil {
		if errors.Is(err, knowledge.ErrIndexNotBuilt) {
			a.logger.Warn("knowledge index not built, responding ungrounded")
		} else {
			a.logger.Warn("retrieval failed, responding ungrounded", "error", err)
		}
		return ""
	}
	return text
}

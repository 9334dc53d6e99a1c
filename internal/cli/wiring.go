package cli

import (
	"context"
	"log/slog"

	"github.com/seedling-ai/companion/internal/chunker"
	"github.com/seedling-ai/companion/internal/classifier"
	"github.com/seedling-ai/companion/internal/config"
	"github.com/seedling-ai/companion/internal/embedding"
	"github.com/seedling-ai/companion/internal/knowledge"
	"github.com/seedling-ai/companion/internal/model"
)

// newEmbedder builds the configured embedding provider. For network
// providers with fallback enabled, query-time callers get lexical
// degradation; Build paths should pass raw=true to fail loudly instead.
func newEmbedder(cfg config.Embedding, raw bool) embedding.Embedder {
	var e embedding.Embedder
	switch cfg.Provider {
	case "ollama":
		e = embedding.NewOllamaEmbedder(cfg.BaseURL, cfg.Model, 0)
	case "openai":
		e = embedding.NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, 0, 0)
	default:
		return embedding.NewLexical(0)
	}
	if cfg.Fallback && !raw {
		return embedding.NewFallback(e, slog.Default())
	}
	return e
}

func chunkingOptions(cfg config.Knowledge) chunker.Options {
	return chunker.Options{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
}

// newRetriever loads the persisted index, if any, and wires a retriever
// over it. Returns nil when no index has ever been built; the agent treats
// that as grounding unavailable.
func newRetriever(cfg config.Config) *knowledge.Retriever {
	handle := knowledge.NewHandle()
	if err := handle.LoadFrom(cfg.Knowledge.IndexDir); err != nil {
		slog.Debug("knowledge index unavailable", "dir", cfg.Knowledge.IndexDir, "err", err)
	}
	return knowledge.NewRetriever(handle, newEmbedder(cfg.Embedding, false), cfg.Knowledge.TopK, nil)
}

// newClassifier wires the emotion service when configured; otherwise every
// turn classifies as neutral and routing runs on keyword rules alone.
func newClassifier(cfg config.Classify) classifier.Classifier {
	if cfg.BaseURL == "" {
		return classifier.Func(func(context.Context, string) (model.Classification, error) {
			return classifier.Neutral(), nil
		})
	}
	return classifier.NewHTTPClassifier(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
}

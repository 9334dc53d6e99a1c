package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seedling-ai/companion/internal/embedding"
)

// Retriever answers top-k similarity queries against the current index
// snapshot. It is invoked at most once per turn by the routing policy.
type Retriever struct {
	handle   *Handle
	embedder queryEmbedder
	k        int
	logger   *slog.Logger
}

// queryEmbedder is the subset of embedding.Embedder the retriever needs.
type queryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// NewRetriever creates a retriever over handle. The embedder should carry a
// lexical fallback so an unreachable embedding service degrades the query
// representation instead of failing the turn.
func NewRetriever(handle *Handle, embedder queryEmbedder, k int, logger *slog.Logger) *Retriever {
	if k <= 0 {
		k = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{handle: handle, embedder: embedder, k: k, logger: logger}
}

// Search embeds the query and returns the top-k matching chunks.
// ErrIndexNotBuilt is returned when no artifact has been published; callers
// treat it as "no grounding available".
func (r *Retriever) Search(ctx context.Context, query string) ([]Hit, error) {
	ix, err := r.handle.Snapshot()
	if err != nil {
		return nil, err
	}

	v, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	v = embedding.Normalize(v)

	if len(v) != ix.Dims() {
		return nil, fmt.Errorf("%w: query %d, index %d (rebuild after changing the embedder)",
			ErrDimsMismatch, len(v), ix.Dims())
	}

	hits := ix.Search(v, r.k)
	r.logger.Debug("knowledge search",
		"index_version", ix.Version(), "hits", len(hits))
	return hits, nil
}

// SearchText runs Search and joins the matched chunk texts in similarity
// order, the form the context assembly consumes.
func (r *Retriever) SearchText(ctx context.Context, query string) (string, error) {
	hits, err := r.Search(ctx, query)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seedling-ai/companion/internal/chunker"
	"github.com/seedling-ai/companion/internal/embedding"
)

// Indexer is the offline batch job: read the corpus, chunk, embed,
// normalize, persist, publish. It fails loudly — an unreachable embedding
// model aborts the build rather than producing a silently degraded index.
type Indexer struct {
	embedder embedding.Embedder
	chunking chunker.Options
	dir      string
	handle   *Handle
	logger   *slog.Logger
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Dims      int           `json:"dims"`
	Version   uint64        `json:"version"`
	Elapsed   time.Duration `json:"elapsed"`
}

// NewIndexer creates an indexer that persists artifacts to dir and, when
// handle is non-nil, publishes each successful build to it.
func NewIndexer(embedder embedding.Embedder, opts chunker.Options, dir string, handle *Handle, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		chunking: opts,
		dir:      dir,
		handle:   handle,
		logger:   logger,
	}
}

// Build indexes every .txt document under srcDir, replacing any prior
// artifact. An empty corpus returns ErrEmptyCorpus and leaves any existing
// artifact untouched.
func (in *Indexer) Build(ctx context.Context, srcDir string) (*BuildResult, error) {
	start := time.Now()

	docs, err := readCorpus(srcDir)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, doc := range docs {
		texts = append(texts, chunker.Chunk(doc, in.chunking)...)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCorpus, srcDir)
	}

	in.logger.Info("indexing corpus",
		"dir", srcDir, "documents", len(docs), "chunks", len(texts))

	dims := in.embedder.Dims()
	ix := &Index{
		dims:    dims,
		ids:     make([]int, 0, len(texts)),
		vecs:    make([]embedding.Vector, 0, len(texts)),
		texts:   make(map[int]string, len(texts)),
		builtAt: start,
	}
	for id, text := range texts {
		v, err := in.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", id, err)
		}
		if len(v) != dims {
			return nil, fmt.Errorf("embed chunk %d: got %d dims, want %d", id, len(v), dims)
		}
		ix.ids = append(ix.ids, id)
		ix.vecs = append(ix.vecs, embedding.Normalize(v))
		ix.texts[id] = text
	}

	if err := saveIndex(in.dir, ix); err != nil {
		return nil, err
	}
	if in.handle != nil {
		in.handle.publish(ix)
	}

	res := &BuildResult{
		Documents: len(docs),
		Chunks:    ix.Len(),
		Dims:      dims,
		Version:   ix.version,
		Elapsed:   time.Since(start),
	}
	in.logger.Info("index built",
		"chunks", res.Chunks, "dims", res.Dims, "elapsed", res.Elapsed)
	return res, nil
}

// readCorpus loads all .txt files under dir in name order.
func readCorpus(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []string
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			docs = append(docs, s)
		}
	}
	return docs, nil
}

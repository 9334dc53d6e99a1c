// Package knowledge implements the corpus similarity index: an offline
// indexer that builds and persists it, and an online retriever that queries
// it. The index is immutable between rebuilds; rebuilds publish a new
// snapshot through a versioned handle so readers never observe a torn
// artifact.
package knowledge

import (
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/seedling-ai/companion/internal/embedding"
)

// ErrIndexNotBuilt is returned when no index artifact exists yet. Callers
// treat it as "no grounding available" and continue.
var ErrIndexNotBuilt = errors.New("knowledge index not built")

// ErrCorruptIndex is returned when the persisted vector and chunk artifacts
// disagree (length or dimension mismatch).
var ErrCorruptIndex = errors.New("knowledge index corrupt")

// ErrEmptyCorpus is returned by the indexer when the source directory holds
// no indexable text; no artifact is written.
var ErrEmptyCorpus = errors.New("knowledge corpus is empty")

// ErrDimsMismatch is returned when a query vector's width differs from the
// snapshot's, typically a stale index after an embedder change.
var ErrDimsMismatch = errors.New("query dims do not match index")

// Hit is one search result.
type Hit struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Index is an immutable snapshot of the embedded corpus. Each chunk carries
// a stable integer ID assigned at build time; search returns IDs so results
// stay addressable across debugging and future incremental updates.
type Index struct {
	version uint64
	dims    int
	ids     []int
	vecs    []embedding.Vector // unit-normalized, parallel to ids
	texts   map[int]string
	builtAt time.Time
}

// Version returns the monotonic version of this snapshot.
func (ix *Index) Version() uint64 { return ix.version }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.ids) }

// Dims returns the embedding dimensionality of the snapshot.
func (ix *Index) Dims() int { return ix.dims }

// BuiltAt returns when the snapshot was built.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Text returns the chunk text for a stable ID.
func (ix *Index) Text(id int) (string, bool) {
	t, ok := ix.texts[id]
	return t, ok
}

// Search returns the k chunks most similar to the unit-normalized query
// vector, most similar first. Inner product over unit vectors is cosine
// similarity.
func (ix *Index) Search(query embedding.Vector, k int) []Hit {
	if len(query) != ix.dims || ix.Len() == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	if k > ix.Len() {
		k = ix.Len()
	}

	hits := make([]Hit, 0, ix.Len())
	for i, id := range ix.ids {
		score := float64(vek32.Dot(query, ix.vecs[i]))
		hits = append(hits, Hit{ID: id, Score: score, Text: ix.texts[id]})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	return hits[:k]
}

// Handle is the explicit, process-wide access point to the current index
// snapshot. Rebuilds publish a new snapshot atomically; concurrent readers
// keep whatever snapshot they loaded.
type Handle struct {
	current atomic.Pointer[Index]
	version atomic.Uint64
}

// NewHandle returns an empty handle. Snapshot returns ErrIndexNotBuilt
// until an index is published or loaded.
func NewHandle() *Handle {
	return &Handle{}
}

// Snapshot returns the current index snapshot.
func (h *Handle) Snapshot() (*Index, error) {
	ix := h.current.Load()
	if ix == nil {
		return nil, ErrIndexNotBuilt
	}
	return ix, nil
}

// publish installs ix as the current snapshot with the next version number.
func (h *Handle) publish(ix *Index) {
	ix.version = h.version.Add(1)
	h.current.Store(ix)
}

// LoadFrom reads the persisted artifacts in dir and publishes them.
// A missing artifact leaves the handle empty and returns ErrIndexNotBuilt.
func (h *Handle) LoadFrom(dir string) error {
	ix, err := loadIndex(dir)
	if err != nil {
		return err
	}
	h.publish(ix)
	return nil
}

package knowledge

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/seedling-ai/companion/internal/embedding"
)

// On-disk artifact names. The two files form one logical artifact: vectors
// keyed by position, chunk texts keyed by the same position order.
const (
	vectorsFile = "vectors.idx"
	chunksFile  = "chunks.json"
)

// persistedVectors is the gob payload for the vector arena. BuildID ties it
// to the chunk file written by the same build; the renames into place are
// sequential, so without the stamp a reader between them could pair new
// vectors with old texts of the same length.
type persistedVectors struct {
	BuildID string
	Dims    int
	IDs     []int
	Flat    []float32 // len(IDs) * Dims, row-major
}

// persistedChunks is the JSON payload for the chunk texts.
type persistedChunks struct {
	BuildID string           `json:"build_id"`
	Chunks  []persistedChunk `json:"chunks"`
}

// persistedChunk pairs a stable ID with its text.
type persistedChunk struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// saveIndex writes both artifacts to temp files in dir and renames them into
// place, so a rebuild is atomic from any reader's perspective: a concurrent
// loadIndex sees either the old pair or the new pair in full.
func saveIndex(dir string, ix *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	buildID := uuid.NewString()
	pv := persistedVectors{
		BuildID: buildID,
		Dims:    ix.dims,
		IDs:     ix.ids,
		Flat:    make([]float32, 0, len(ix.ids)*ix.dims),
	}
	pc := persistedChunks{BuildID: buildID, Chunks: make([]persistedChunk, 0, len(ix.ids))}
	for i, id := range ix.ids {
		pv.Flat = append(pv.Flat, ix.vecs[i]...)
		pc.Chunks = append(pc.Chunks, persistedChunk{ID: id, Text: ix.texts[id]})
	}

	vecTmp, err := writeTemp(dir, "vectors-*", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(pv)
	})
	if err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	defer os.Remove(vecTmp)

	chunkTmp, err := writeTemp(dir, "chunks-*", func(f *os.File) error {
		return json.NewEncoder(f).Encode(pc)
	})
	if err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	defer os.Remove(chunkTmp)

	if err := os.Rename(vecTmp, filepath.Join(dir, vectorsFile)); err != nil {
		return fmt.Errorf("swap vectors: %w", err)
	}
	if err := os.Rename(chunkTmp, filepath.Join(dir, chunksFile)); err != nil {
		return fmt.Errorf("swap chunks: %w", err)
	}
	return nil
}

func writeTemp(dir, pattern string, write func(*os.File) error) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// loadIndex reads both artifacts from dir. Missing files yield
// ErrIndexNotBuilt; structural disagreement between the two files yields
// ErrCorruptIndex.
func loadIndex(dir string) (*Index, error) {
	vf, err := os.Open(filepath.Join(dir, vectorsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexNotBuilt
	}
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer vf.Close()

	cf, err := os.Open(filepath.Join(dir, chunksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: vectors present but chunks missing", ErrCorruptIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("open chunks: %w", err)
	}
	defer cf.Close()

	var pv persistedVectors
	if err := gob.NewDecoder(vf).Decode(&pv); err != nil {
		return nil, fmt.Errorf("%w: decode vectors: %v", ErrCorruptIndex, err)
	}
	var pc persistedChunks
	if err := json.NewDecoder(cf).Decode(&pc); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", ErrCorruptIndex, err)
	}
	chunks := pc.Chunks

	if pv.BuildID == "" || pv.BuildID != pc.BuildID {
		return nil, fmt.Errorf("%w: artifact pair from different builds (%q vs %q)",
			ErrCorruptIndex, pv.BuildID, pc.BuildID)
	}
	if pv.Dims <= 0 || len(pv.Flat) != len(pv.IDs)*pv.Dims {
		return nil, fmt.Errorf("%w: vector arena shape %d != %d ids x %d dims",
			ErrCorruptIndex, len(pv.Flat), len(pv.IDs), pv.Dims)
	}
	if len(chunks) != len(pv.IDs) {
		return nil, fmt.Errorf("%w: %d chunks vs %d vectors",
			ErrCorruptIndex, len(chunks), len(pv.IDs))
	}

	ix := &Index{
		dims:    pv.Dims,
		ids:     pv.IDs,
		vecs:    make([]embedding.Vector, len(pv.IDs)),
		texts:   make(map[int]string, len(chunks)),
		builtAt: time.Now(),
	}
	for i := range pv.IDs {
		ix.vecs[i] = pv.Flat[i*pv.Dims : (i+1)*pv.Dims]
	}
	for i, c := range chunks {
		if c.ID != pv.IDs[i] {
			return nil, fmt.Errorf("%w: chunk id %d does not match vector id %d at position %d",
				ErrCorruptIndex, c.ID, pv.IDs[i], i)
		}
		ix.texts[c.ID] = c.Text
	}
	return ix, nil
}

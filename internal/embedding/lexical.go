package embedding

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode"
)

// Lexical is a degraded, offline embedder: each token is hashed into a
// bucket of a fixed-width vector, so texts sharing words still land near
// each other under inner product. It is not a semantic model; it exists so
// an unreachable embedding service downgrades retrieval quality instead of
// failing the turn.
type Lexical struct {
	dims int
}

// NewLexical creates a lexical embedder with the given dimensionality,
// typically matched to the primary embedder so index and query vectors
// stay comparable in shape.
func NewLexical(dims int) *Lexical {
	if dims <= 0 {
		dims = 384
	}
	return &Lexical{dims: dims}
}

func (l *Lexical) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, l.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % uint32(l.dims))
		// Half the hash space contributes negatively so buckets don't
		// saturate in one direction.
		if sum&0x80000000 != 0 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	return Normalize(v), nil
}

func (l *Lexical) Dims() int { return l.dims }

// tokenize lowercases and splits text into word tokens. Han characters
// carry meaning individually, so they are emitted as unigrams plus adjacent
// bigrams rather than whitespace-delimited words.
func tokenize(text string) []string {
	var tokens []string
	var word []rune
	var prevHan rune

	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
			if prevHan != 0 {
				tokens = append(tokens, string([]rune{prevHan, r}))
			}
			prevHan = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
			prevHan = 0
		default:
			flush()
			prevHan = 0
		}
	}
	flush()
	return tokens
}

// Fallback wraps a primary embedder with a lexical backup. When the primary
// fails, the degradation is logged and the backup result is returned; the
// caller never sees the transient error.
type Fallback struct {
	Primary Embedder
	Backup  Embedder
	logger  *slog.Logger
}

// NewFallback pairs primary with a lexical backup of matching width.
func NewFallback(primary Embedder, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		Primary: primary,
		Backup:  NewLexical(primary.Dims()),
		logger:  logger,
	}
}

func (f *Fallback) Embed(ctx context.Context, text string) (Vector, error) {
	v, err := f.Primary.Embed(ctx, text)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		// A cancelled turn is not a degradation; propagate it.
		return nil, err
	}
	f.logger.Warn("embedding degraded to lexical fallback", "err", err)
	return f.Backup.Embed(ctx, text)
}

func (f *Fallback) Dims() int { return f.Primary.Dims() }

// Package chunker splits corpus documents into overlapping chunks for
// embedding and indexing. The overlap preserves context across chunk
// boundaries so queries spanning a boundary still match.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Options configures chunking behavior. Sizes are in runes so multi-byte
// text is never split mid-character.
type Options struct {
	Size    int
	Overlap int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Chunk splits text into overlapping chunks of at most opts.Size runes.
// Consecutive chunks share opts.Overlap runes. Short text returns a single
// chunk; empty input returns nil.
func Chunk(text string, opts Options) []string {
	if opts.Size <= 0 {
		opts = DefaultOptions()
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.Size {
		opts.Overlap = opts.Size / 2
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= opts.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + opts.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = softBoundary(runes, start, end)
		}

		c := strings.TrimSpace(string(runes[start:end]))
		if c != "" {
			chunks = append(chunks, c)
		}
		if end == len(runes) {
			break
		}

		// Overlap is taken from the actual chunk end so no text is skipped
		// when softBoundary shortens the window.
		next := end - opts.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// softBoundary walks back from end looking for a break point (newline, then
// any whitespace) so chunks end on natural boundaries where possible. The
// search is bounded so a pathological run of non-whitespace still splits.
func softBoundary(runes []rune, start, end int) int {
	const lookback = 80

	floor := end - lookback
	if floor < start+1 {
		floor = start + 1
	}
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

package chunker

import (
	"strings"
	"testing"
)

func TestChunk_EmptyInput(t *testing.T) {
	result := Chunk("", DefaultOptions())
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestChunk_ShortContent(t *testing.T) {
	text := "A short passage about breathing exercises."
	result := Chunk(text, DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
	if result[0] != text {
		t.Errorf("expected %q, got %q", text, result[0])
	}
}

func TestChunk_RespectsSize(t *testing.T) {
	opts := Options{Size: 100, Overlap: 20}
	text := strings.Repeat("Sleep hygiene matters for recovery. ", 30) // ~1080 chars
	result := Chunk(text, opts)
	if len(result) < 5 {
		t.Fatalf("expected several chunks, got %d", len(result))
	}
	for i, c := range result {
		if n := len([]rune(c)); n > opts.Size {
			t.Errorf("chunk %d exceeds size: %d", i, n)
		}
	}
}

func TestChunk_OverlapSharesText(t *testing.T) {
	opts := Options{Size: 100, Overlap: 30}
	text := strings.Repeat("abcdefghij", 40) // 400 chars, no whitespace
	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}

	// The tail of chunk N must reappear at the head of chunk N+1.
	tail := result[0][len(result[0])-opts.Overlap:]
	if !strings.HasPrefix(result[1], tail) {
		t.Errorf("expected overlap %q at start of next chunk %q", tail, result[1][:40])
	}
}

func TestChunk_NoTextLost(t *testing.T) {
	opts := Options{Size: 80, Overlap: 10}
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("marker")
		b.WriteByte(byte('a' + i%26))
		b.WriteString(" word word word ")
	}
	text := strings.TrimSpace(b.String())
	result := Chunk(text, opts)

	joined := strings.Join(result, " ")
	for i := 0; i < 50; i++ {
		m := "marker" + string(byte('a'+i%26))
		if !strings.Contains(joined, m) {
			t.Fatalf("marker %q lost during chunking", m)
		}
	}
}

func TestChunk_PrefersLineBoundaries(t *testing.T) {
	line := strings.Repeat("x", 40)
	text := strings.Repeat(line+"\n", 20)
	opts := Options{Size: 100, Overlap: 10}
	result := Chunk(text, opts)
	for i, c := range result {
		if strings.Contains(c, "\n") {
			for _, part := range strings.Split(c, "\n") {
				if len(part) != 40 {
					t.Errorf("chunk %d split mid-line: %q", i, part)
				}
			}
		}
	}
}

func TestChunk_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("焦虑时可以尝试深呼吸放松。", 60)
	opts := Options{Size: 120, Overlap: 20}
	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}
	for i, c := range result {
		if !strings.HasPrefix(c, "焦") && !strings.Contains("虑时可以尝试深呼吸放松。", string([]rune(c)[0])) {
			t.Errorf("chunk %d starts mid-character: %q", i, c[:12])
		}
	}
}

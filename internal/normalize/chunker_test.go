package normalize

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)
	got := c.Split("short note")
	if len(got) != 1 || got[0] != "short note" {
		t.Fatalf("short text: want one chunk, got %v", got)
	}
}

func TestSplitEmptyAndBlank(t *testing.T) {
	c := NewChunker(500, 50)
	if got := c.Split(""); got != nil {
		t.Fatalf("empty text: want nil got %v", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Fatalf("blank text: want no chunks got %v", got)
	}
}

func TestSplitOverlapsChunks(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("abcdefghij", 25) // 250 runes
	got := c.Split(text)

	// step is 80, so windows start at 0, 80, 160, 240
	if len(got) != 4 {
		t.Fatalf("chunks: want=4 got=%d", len(got))
	}
	first := []rune(got[0])
	second := []rune(got[1])
	if string(first[80:]) != string(second[:20]) {
		t.Fatalf("chunks should overlap by 20 runes:\n tail=%q\n head=%q",
			string(first[80:]), string(second[:20]))
	}
}

func TestSplitHandlesMultibyteRunes(t *testing.T) {
	c := NewChunker(10, 2)
	text := strings.Repeat("가나다라마", 4) // 20 runes
	got := c.Split(text)
	for i, chunk := range got {
		if !strings.HasPrefix(text, string([]rune(chunk)[:1])) && i == 0 {
			t.Fatalf("first chunk should start the text: %q", chunk)
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("chunk %d split inside a rune: %q", i, chunk)
			}
		}
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Size != defaultChunkSize || c.Overlap != defaultChunkOverlap {
		t.Fatalf("defaults: want=(%d,%d) got=(%d,%d)",
			defaultChunkSize, defaultChunkOverlap, c.Size, c.Overlap)
	}
	// overlap >= size would loop forever, so it falls back too
	c = NewChunker(10, 10)
	if c.Overlap >= c.Size {
		t.Fatalf("overlap must stay below size, got size=%d overlap=%d", c.Size, c.Overlap)
	}
}

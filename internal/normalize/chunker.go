package normalize

import "strings"

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// Chunker splits long text into overlapping rune windows so a search hit in
// the middle of a document still carries its surrounding context.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split returns the chunks of text in order. Chunks that trim to nothing are
// dropped; a text shorter than one window comes back as a single chunk.
func (c Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

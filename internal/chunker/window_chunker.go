package chunker

import (
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

// Default window parameters, measured in characters.
const (
	DefaultChunkSize = 700
	DefaultOverlap   = 150
)

// WindowChunker splits normalized text into overlapping character windows,
// optionally cutting each window back to its last sentence terminator.
type WindowChunker struct {
	chunkSize int
	overlap   int
	snap      bool
}

// Option configures a WindowChunker.
type Option func(*WindowChunker)

// WithSentenceSnap toggles cutting windows at the last sentence terminator.
func WithSentenceSnap(enabled bool) Option {
	return func(c *WindowChunker) { c.snap = enabled }
}

// NewWindowChunker creates a chunker. Non-positive sizes fall back to the
// default and a negative overlap is treated as zero.
func NewWindowChunker(chunkSize, overlap int, opts ...Option) *WindowChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	c := &WindowChunker{chunkSize: chunkSize, overlap: overlap, snap: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits the document content and assigns a fresh id to every chunk.
func (c *WindowChunker) Chunk(document domain.Document) []domain.DocumentChunk {
	parts := Split(document.Content, c.chunkSize, c.overlap, c.snap)
	chunks := make([]domain.DocumentChunk, 0, len(parts))
	for i, text := range parts {
		chunks = append(chunks, domain.DocumentChunk{
			ID:      uuid.New().String(),
			Source:  document.Source,
			Content: text,
			Ordinal: i,
		})
	}
	return chunks
}

// Normalize converts carriage returns to newlines, trims every line and
// drops blank ones.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Split normalizes text and slides a window of chunkSize characters over it.
// The next window starts overlap characters before the end of the previous
// one, or right at its end when that would not move forward. A snapped cut
// is only taken when it reaches past the previous chunk's end.
func Split(text string, chunkSize, overlap int, snap bool) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	runes := []rune(Normalize(text))
	n := len(runes)

	var chunks []string
	start, prevEnd := 0, 0
	for start < n {
		end := min(start+chunkSize, n)
		if snap && end < n {
			if cut := lastTerminator(runes[start:end]); cut > 0 && start+cut+1 > prevEnd {
				end = start + cut + 1
			}
		}
		prevEnd = end
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			chunks = append(chunks, s)
		}
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastTerminator(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '。':
			return i
		}
	}
	return -1
}

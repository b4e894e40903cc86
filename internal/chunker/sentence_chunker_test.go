package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func contents(chunks []domain.DocumentChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestSentenceChunker_Overlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks := c.Chunk(domain.Document{Source: "a.txt", Content: "One. Two! Three? Four."})
	assert.Equal(t, []string{"One. Two!", "Two! Three?", "Three? Four."}, contents(chunks))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, "a.txt", ch.Source)
		assert.NotEmpty(t, ch.ID)
	}
}

func TestSentenceChunker_KeepsUnterminatedTail(t *testing.T) {
	chunks := NewSentenceChunker(5, 0).Chunk(domain.Document{Content: "First sentence.\n  and a trailing note"})
	require.Len(t, chunks, 1)
	assert.Equal(t, "First sentence. and a trailing note", chunks[0].Content)
}

func TestSentenceChunker_Edges(t *testing.T) {
	assert.Empty(t, NewSentenceChunker(3, 1).Chunk(domain.Document{Content: " \n "}))

	// overlap >= size is clamped so the chunker always advances
	chunks := NewSentenceChunker(2, 5).Chunk(domain.Document{Content: "A. B. C."})
	assert.Equal(t, []string{"A. B.", "B. C."}, contents(chunks))

	def := NewSentenceChunker(0, -1)
	assert.Equal(t, DefaultSentencesPerChunk, def.sentencesPerChunk)
	assert.Equal(t, 0, def.overlapSentences)
}

package chunker

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

// Default sentence chunker parameters.
const (
	DefaultSentencesPerChunk = 5
	DefaultOverlapSentences  = 1
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SentenceChunker groups whole sentences into chunks, repeating the last
// overlapSentences of each chunk at the start of the next. Chunk length is
// not bounded by characters.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

var _ domain.Chunker = (*SentenceChunker)(nil)

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = DefaultSentencesPerChunk
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) []domain.DocumentChunk {
	sentences := splitSentences(Normalize(document.Content))
	var chunks []domain.DocumentChunk
	i := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, domain.DocumentChunk{
			ID:      uuid.New().String(),
			Source:  document.Source,
			Content: strings.Join(sentences[i:end], " "),
			Ordinal: len(chunks),
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}

// splitSentences returns the trimmed sentences of text, keeping any
// unterminated tail as a final sentence.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceSplitter.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
)

// Mode tells how an answer was produced.
type Mode string

const (
	ModeNoIndex   Mode = "no_index"
	ModeNotFound  Mode = "not_found"
	ModeSnippets  Mode = "snippets"
	ModeGenerated Mode = "generated"
)

const (
	NoIndexMessage  = "Please upload and index documents first."
	NotFoundMessage = "I could not find relevant information about this in the indexed documents."
	EmptyQuestion   = "Please enter a question."

	snippetsHeader = "No language model is configured, so here are the most relevant passages from your documents:"
	fallbackHeader = "The language model could not be reached, so here are the most relevant passages from your documents instead:"
	snippetSep     = "\n\n---\n\n"
)

// Source is a cited passage.
type Source struct {
	SourceName string `json:"source"`
	Content    string `json:"content"`
}

// Answer is the result of a question. Err is set when generation failed
// and the text fell back to raw snippets.
type Answer struct {
	Text    string                `json:"answer"`
	Sources []Source              `json:"sources"`
	Chunks  []domain.SearchResult `json:"-"`
	Mode    Mode                  `json:"mode"`
	Err     error                 `json:"-"`
}

// Answer retrieves relevant chunks for question and composes an answer from
// them, with the generator when one is available. It never fails: backend
// problems degrade to raw snippets and are reported in Answer.Err.
func (s *RAGService) Answer(ctx context.Context, question string) Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{Text: EmptyQuestion, Mode: ModeNotFound, Err: domain.ErrInvalidInput}
	}
	st := s.state.Load()
	if st == nil || len(st.chunks) == 0 {
		return Answer{Text: NoIndexMessage, Mode: ModeNoIndex}
	}

	results := s.relevant(ctx, st, question)
	if len(results) == 0 {
		return Answer{Text: NotFoundMessage, Mode: ModeNotFound}
	}
	ans := Answer{Chunks: results, Sources: toSources(results)}

	if !s.generator.Available() {
		ans.Text = formatSnippets(snippetsHeader, results)
		ans.Mode = ModeSnippets
		return ans
	}

	text, err := s.generate(ctx, question, results)
	if err != nil {
		s.log.Warn("generation failed, returning snippets", "generator", s.generator.Name(), "error", err)
		ans.Text = formatSnippets(fallbackHeader, results)
		ans.Mode = ModeSnippets
		ans.Err = err
		return ans
	}
	ans.Text = text
	ans.Mode = ModeGenerated
	return ans
}

func (s *RAGService) generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	p, err := s.prompts.Answer(question, results)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	text, err := s.generator.Generate(ctx, domain.GenerateRequest{
		System:      s.prompts.System(),
		Prompt:      p,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", backendErr("generate", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrBackendUnavailable)
	}
	return text, nil
}

// relevant applies the relevance policy: vector search filtered by
// max_distance, or keyword overlap when the query vector carries no signal
// or the embedder or index is unavailable.
func (s *RAGService) relevant(ctx context.Context, st *indexState, question string) []domain.SearchResult {
	vec, err := s.embedQuery(ctx, st, question)
	if err != nil {
		s.log.Warn("query embedding failed, using keyword search", "error", err)
		return s.keywordSearch(st, question)
	}
	if embedding.IsZero(vec) {
		s.log.Debug("query has no known terms, using keyword search")
		return s.keywordSearch(st, question)
	}
	results, err := s.search(ctx, st, vec, s.opts.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotBuilt) {
			return nil
		}
		s.log.Warn("index search failed, using keyword search", "error", err)
		return s.keywordSearch(st, question)
	}
	if s.opts.MaxDistance <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Distance <= s.opts.MaxDistance {
			kept = append(kept, r)
		}
	}
	return kept
}

func toSources(results []domain.SearchResult) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{SourceName: r.Chunk.Source, Content: r.Chunk.Content}
	}
	return out
}

// formatSnippets renders header followed by "[i] From <source>:" blocks.
func formatSnippets(header string, results []domain.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d] From %s:\n%s", i+1, r.Chunk.Source, r.Chunk.Content)
	}
	return header + "\n\n" + strings.Join(parts, snippetSep)
}

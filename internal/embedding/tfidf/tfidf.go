package tfidf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/textproc"
)

var errNotPrepared = errors.New("tfidf embedder not prepared")

// Embedder implements a simple TF-IDF vectorizer.
// A zero Embedder is unprepared; Fit returns a prepared copy built from a corpus.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
}

var (
	_ domain.Embedder = (*Embedder)(nil)
	_ domain.Fitter   = (*Embedder)(nil)
)

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Fit builds the vocabulary and IDF values from corpus and returns a new
// prepared embedder. The receiver is not modified.
func (e *Embedder) Fit(ctx context.Context, corpus []string) (domain.Embedder, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus for TF-IDF fit", domain.ErrEmptyInput)
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for i, text := range corpus {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for tok := range textproc.TermSet(text) {
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return nil, errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	fitted := &Embedder{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		fitted.vocabulary[term] = i
		// Smoothed IDF
		fitted.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return fitted, nil
}

// Dimension returns the vocabulary size, 0 before Fit.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Embed computes TF-IDF vectors for texts. A text with no known terms maps to
// the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(e.idf) == 0 {
		return nil, errNotPrepared
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float64 {
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range textproc.Terms(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	embedding.Normalize(vec)
	return vec
}

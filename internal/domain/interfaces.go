package domain

import "context"

// Document represents a single source file loaded into the system.
type Document struct {
	Source  string
	Path    string
	Content string
}

// DocumentChunk is a bounded span of normalized source text used for indexing.
// Chunks are immutable once created.
type DocumentChunk struct {
	ID      string
	Source  string
	Content string
	Ordinal int
}

// SearchResult represents a retrieved chunk with its distance to the query.
// Lower distance means closer.
type SearchResult struct {
	Chunk    DocumentChunk
	Distance float64
}

// Loader reads a file into plain text.
type Loader interface {
	Load(path string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) []DocumentChunk
}

// Embedder converts texts into fixed-dimension numeric vectors.
// Output order matches input order and every input yields a vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Fitter is implemented by embedders whose vector space depends on the corpus.
// Fit returns a new prepared embedder and leaves the receiver untouched.
type Fitter interface {
	Fit(ctx context.Context, corpus []string) (Embedder, error)
}

// Index stores vectors and supports nearest-neighbor search by L2 distance.
// Returned ids are positions in insertion order.
type Index interface {
	Init(ctx context.Context, dimension int) error
	Add(ctx context.Context, vectors [][]float64) error
	Search(ctx context.Context, query []float64, k int) (distances []float64, ids []int, err error)
	Len() int
	Dimension() int
}

// Generator turns a prompt into text. Available reports whether a real
// backend is configured; a generator that is not available must not be called.
type Generator interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is a single-turn generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

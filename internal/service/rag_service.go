package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/generator"
	"ragchat/internal/loader"
	"ragchat/internal/logger"
	"ragchat/internal/prompt"
	"ragchat/internal/snapshot"
	"ragchat/internal/vectorstore"
	"ragchat/internal/vectorstore/memory"
)

// Options tunes retrieval and generation.
type Options struct {
	TopK                int
	MaxDistance         float64 // 0 disables the distance filter
	MinKeywordScore     float64
	EmbedBatchSize      int
	SummaryMaxSentences int
	CompareMaxChars     int
	Temperature         float32
	MaxTokens           int
}

// Deps are the components the service is assembled from. Nil Generator,
// Prompts, Logger and NewIndex get working defaults; nil Summarizer and
// Snapshots disable those features.
type Deps struct {
	Loader     domain.Loader
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	NewIndex   vectorstore.Factory
	Generator  domain.Generator
	Summarizer domain.Summarizer
	Prompts    *prompt.Templates
	Snapshots  *snapshot.Store
	Logger     *slog.Logger
}

// BuildStats reports the outcome of BuildIndex.
type BuildStats struct {
	FilesIndexed  int
	ChunksCreated int
	Skipped       []string
	Summary       string
}

// Status describes the active index.
type Status struct {
	Built              bool
	Files              []string
	Chunks             int
	Embedder           string
	Dimension          int
	Generator          string
	GeneratorAvailable bool
	Summary            string
	BuiltAt            time.Time
}

// indexState is replaced as a whole after every successful build.
type indexState struct {
	index    domain.Index
	chunks   []domain.DocumentChunk
	embedder domain.Embedder
	files    []string
	summary  string
	builtAt  time.Time
}

// RAGService indexes documents and answers questions about them.
// Builds are serialized; queries read the state published by the last build.
type RAGService struct {
	loader     domain.Loader
	chunker    domain.Chunker
	embedder   domain.Embedder
	newIndex   vectorstore.Factory
	generator  domain.Generator
	summarizer domain.Summarizer
	prompts    *prompt.Templates
	snapshots  *snapshot.Store
	log        *slog.Logger
	opts       Options

	buildMu sync.Mutex
	state   atomic.Pointer[indexState]
}

func NewRAGService(d Deps, opts Options) *RAGService {
	if d.Loader == nil {
		d.Loader = loader.New()
	}
	if d.NewIndex == nil {
		d.NewIndex = func() domain.Index { return memory.NewIndex() }
	}
	if d.Generator == nil {
		d.Generator = generator.Null{}
	}
	if d.Prompts == nil {
		d.Prompts = prompt.Default()
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = embedding.DefaultBatchSize
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 5
	}
	if opts.CompareMaxChars <= 0 {
		opts.CompareMaxChars = 12000
	}
	return &RAGService{
		loader:     d.Loader,
		chunker:    d.Chunker,
		embedder:   d.Embedder,
		newIndex:   d.NewIndex,
		generator:  d.Generator,
		summarizer: d.Summarizer,
		prompts:    d.Prompts,
		snapshots:  d.Snapshots,
		log:        d.Logger,
		opts:       opts,
	}
}

// BuildIndex loads, chunks and embeds paths (files, directories or globs)
// and replaces the active index. Unreadable or unsupported files are
// skipped. It fails with domain.ErrEmptyInput when no chunk was produced,
// leaving the previous index in place.
func (s *RAGService) BuildIndex(ctx context.Context, paths []string) (BuildStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	var (
		stats  BuildStats
		chunks []domain.DocumentChunk
		files  []string
		corpus strings.Builder
	)
	for _, p := range loader.ExpandPaths(paths) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		text, err := s.loader.Load(p)
		if err != nil {
			s.log.Warn("skipping file", "path", p, "error", err)
			stats.Skipped = append(stats.Skipped, p)
			continue
		}
		docChunks := s.chunker.Chunk(domain.Document{Source: filepath.Base(p), Path: p, Content: text})
		if len(docChunks) == 0 {
			s.log.Warn("skipping file with no text", "path", p)
			stats.Skipped = append(stats.Skipped, p)
			continue
		}
		chunks = append(chunks, docChunks...)
		files = append(files, p)
		corpus.WriteString(text)
		corpus.WriteString("\n")
	}
	if len(chunks) == 0 {
		return stats, fmt.Errorf("%w: %d path(s) given, %d skipped", domain.ErrEmptyInput, len(paths), len(stats.Skipped))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	emb, vectors, err := s.embedCorpus(ctx, texts)
	if err != nil {
		return stats, err
	}
	idx, err := s.buildIndex(ctx, emb, vectors)
	if err != nil {
		return stats, err
	}

	summary := s.summarize(corpus.String())
	st := &indexState{
		index:    idx,
		chunks:   chunks,
		embedder: emb,
		files:    files,
		summary:  summary,
		builtAt:  time.Now(),
	}
	s.publish(ctx, st)
	s.saveSnapshot(ctx, st, vectors)

	stats.FilesIndexed = len(files)
	stats.ChunksCreated = len(chunks)
	stats.Summary = summary
	s.log.Info("index built", "files", stats.FilesIndexed, "chunks", stats.ChunksCreated, "skipped", len(stats.Skipped), "embedder", emb.Name())
	return stats, nil
}

// embedCorpus fits a corpus-dependent embedder when needed and embeds texts.
func (s *RAGService) embedCorpus(ctx context.Context, texts []string) (domain.Embedder, [][]float64, error) {
	emb := s.embedder
	if f, ok := emb.(domain.Fitter); ok {
		fitted, err := f.Fit(ctx, texts)
		if err != nil {
			return nil, nil, backendErr("fit embedder", err)
		}
		emb = fitted
	}
	vectors, err := embedding.EmbedAll(ctx, emb, texts, s.opts.EmbedBatchSize)
	if err != nil {
		return nil, nil, backendErr("embed chunks", err)
	}
	return emb, vectors, nil
}

func (s *RAGService) buildIndex(ctx context.Context, emb domain.Embedder, vectors [][]float64) (domain.Index, error) {
	dim := emb.Dimension()
	if dim == 0 && len(vectors) > 0 {
		dim = len(vectors[0])
	}
	idx := s.newIndex()
	if err := idx.Init(ctx, dim); err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := idx.Add(ctx, vectors); err != nil {
		_ = vectorstore.Release(ctx, idx)
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	return idx, nil
}

// publish swaps in st and releases the index it replaces.
func (s *RAGService) publish(ctx context.Context, st *indexState) {
	old := s.state.Swap(st)
	if old != nil {
		if err := vectorstore.Release(ctx, old.index); err != nil {
			s.log.Warn("failed to release previous index", "error", err)
		}
	}
}

func (s *RAGService) summarize(text string) string {
	if s.summarizer == nil {
		return ""
	}
	summary, err := s.summarizer.Summarize(text, s.opts.SummaryMaxSentences)
	if err != nil {
		s.log.Warn("summary failed", "error", err)
		return ""
	}
	return summary
}

func (s *RAGService) saveSnapshot(ctx context.Context, st *indexState, vectors [][]float64) {
	if s.snapshots == nil {
		return
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	err := s.snapshots.Save(ctx, &snapshot.Snapshot{
		Embedder:  st.embedder.Name(),
		Dimension: dim,
		Files:     st.files,
		Summary:   st.summary,
		Chunks:    st.chunks,
		Vectors:   vectors,
		CreatedAt: st.builtAt,
	})
	if err != nil {
		s.log.Warn("failed to save index snapshot", "path", s.snapshots.Path(), "error", err)
		return
	}
	s.log.Debug("index snapshot saved", "path", s.snapshots.Path())
}

// Restore loads the last saved snapshot as the active index. It reports
// false without error when there is no usable snapshot, for instance one
// written by a different embedder.
func (s *RAGService) Restore(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, nil
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	snap, err := s.snapshots.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Embedder != s.embedder.Name() {
		s.log.Info("ignoring snapshot from another embedder", "snapshot", snap.Embedder, "configured", s.embedder.Name())
		return false, nil
	}

	emb := s.embedder
	if f, ok := emb.(domain.Fitter); ok {
		texts := make([]string, len(snap.Chunks))
		for i, c := range snap.Chunks {
			texts[i] = c.Content
		}
		fitted, err := f.Fit(ctx, texts)
		if err != nil {
			return false, backendErr("fit embedder", err)
		}
		emb = fitted
	}
	if d := emb.Dimension(); d != 0 && d != snap.Dimension {
		s.log.Info("ignoring snapshot with another dimension", "snapshot", snap.Dimension, "configured", d)
		return false, nil
	}
	idx, err := s.buildIndex(ctx, emb, snap.Vectors)
	if err != nil {
		return false, err
	}
	s.publish(ctx, &indexState{
		index:    idx,
		chunks:   snap.Chunks,
		embedder: emb,
		files:    snap.Files,
		summary:  snap.Summary,
		builtAt:  snap.CreatedAt,
	})
	s.log.Info("index restored", "path", s.snapshots.Path(), "chunks", len(snap.Chunks))
	return true, nil
}

// Retrieve returns up to k chunks nearest to query, nearest first, with no
// relevance filtering. k <= 0 uses the configured top_k. An absent index
// yields an empty result.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	st := s.state.Load()
	if st == nil || len(st.chunks) == 0 {
		return []domain.SearchResult{}, nil
	}
	if k <= 0 {
		k = s.opts.TopK
	}
	vec, err := s.embedQuery(ctx, st, query)
	if err != nil {
		return nil, err
	}
	results, err := s.search(ctx, st, vec, k)
	if errors.Is(err, domain.ErrIndexNotBuilt) {
		return []domain.SearchResult{}, nil
	}
	return results, err
}

func (s *RAGService) embedQuery(ctx context.Context, st *indexState, query string) ([]float64, error) {
	vecs, err := st.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, backendErr("embed query", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embed query: got %d vectors", domain.ErrBackendUnavailable, len(vecs))
	}
	return vecs[0], nil
}

func (s *RAGService) search(ctx context.Context, st *indexState, vec []float64, k int) ([]domain.SearchResult, error) {
	dists, ids, err := st.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(st.chunks) {
			continue
		}
		out = append(out, domain.SearchResult{Chunk: st.chunks[id], Distance: dists[i]})
	}
	return out, nil
}

// Status reports the active index and generator.
func (s *RAGService) Status() Status {
	out := Status{
		Generator:          s.generator.Name(),
		GeneratorAvailable: s.generator.Available(),
		Embedder:           s.embedder.Name(),
	}
	st := s.state.Load()
	if st == nil {
		return out
	}
	out.Built = true
	out.Files = append([]string(nil), st.files...)
	out.Chunks = len(st.chunks)
	out.Dimension = st.index.Dimension()
	out.Summary = st.summary
	out.BuiltAt = st.builtAt
	return out
}

// HasGenerator reports whether answers are composed by a language model.
func (s *RAGService) HasGenerator() bool { return s.generator.Available() }

// backendErr wraps err as a backend failure unless it already carries a
// domain error or a context error.
func backendErr(op string, err error) error {
	if errors.Is(err, domain.ErrBackendUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrBackendUnavailable, op, err)
}

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/snapshot"
	"ragchat/internal/summarizer"
)

type fakeGenerator struct {
	mu        sync.Mutex
	available bool
	text      string
	err       error
	requests  []domain.GenerateRequest
}

func (g *fakeGenerator) Name() string    { return "fake" }
func (g *fakeGenerator) Available() bool { return g.available }

func (g *fakeGenerator) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.text, g.err
}

// switchEmbedder delegates to inner until fail is set.
type switchEmbedder struct {
	inner domain.Embedder
	mu    sync.Mutex
	fail  bool
}

func (e *switchEmbedder) Name() string   { return "switch" }
func (e *switchEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *switchEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	fail := e.fail
	e.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return e.inner.Embed(ctx, texts)
}

func (e *switchEmbedder) setFail(v bool) {
	e.mu.Lock()
	e.fail = v
	e.mu.Unlock()
}

func writeDocs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	france := filepath.Join(dir, "france.txt")
	japan := filepath.Join(dir, "japan.txt")
	require.NoError(t, os.WriteFile(france, []byte("Paris is the capital of France."), 0o644))
	require.NoError(t, os.WriteFile(japan, []byte("Tokyo is the capital of Japan."), 0o644))
	return france, japan
}

func newService(t *testing.T, mutate func(*Deps, *Options)) *RAGService {
	t.Helper()
	d := Deps{
		Chunker:    chunker.NewWindowChunker(0, 0),
		Embedder:   tfidf.NewEmbedder(),
		Summarizer: summarizer.NewFrequencySummarizer(),
	}
	opts := Options{TopK: 5, MaxDistance: 1.3, MinKeywordScore: 0.1}
	if mutate != nil {
		mutate(&d, &opts)
	}
	return NewRAGService(d, opts)
}

func built(t *testing.T, mutate func(*Deps, *Options)) *RAGService {
	t.Helper()
	svc := newService(t, mutate)
	france, japan := writeDocs(t)
	stats, err := svc.BuildIndex(context.Background(), []string{france, japan})
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesIndexed)
	require.Equal(t, 2, stats.ChunksCreated)
	return svc
}

func TestRetrieve_CapitalOfFrance(t *testing.T) {
	svc := built(t, nil)

	results, err := svc.Retrieve(context.Background(), "capital of France", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "france.txt", results[0].Chunk.Source)
	assert.Equal(t, "Paris is the capital of France.", results[0].Chunk.Content)
}

func TestRetrieve_Counts(t *testing.T) {
	svc := built(t, nil)
	ctx := context.Background()

	for k, want := range map[int]int{1: 1, 2: 2, 10: 2, 0: 2} {
		results, err := svc.Retrieve(ctx, "capital", k)
		require.NoError(t, err)
		assert.Len(t, results, want, "k=%d", k)
	}
	results, err := svc.Retrieve(ctx, "capital of Japan", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.Equal(t, "japan.txt", results[0].Chunk.Source)
}

func TestRetrieve_NoIndex(t *testing.T) {
	results, err := newService(t, nil).Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	emb := &switchEmbedder{inner: hashing.NewEmbedder(64)}
	svc := built(t, func(d *Deps, _ *Options) { d.Embedder = emb })
	emb.setFail(true)

	_, err := svc.Retrieve(context.Background(), "capital", 1)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestBuildIndex_EmptyInput(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	_, err := svc.BuildIndex(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte("  \n\n "), 0o644))
	stats, err := svc.BuildIndex(ctx, []string{blank, filepath.Join(dir, "missing.txt")})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Equal(t, 0, stats.ChunksCreated)
	assert.Len(t, stats.Skipped, 2)
	assert.False(t, svc.Status().Built)
}

func TestBuildIndex_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	svc := built(t, nil)
	_, err := svc.BuildIndex(context.Background(), []string{filepath.Join(t.TempDir(), "gone.txt")})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	st := svc.Status()
	assert.True(t, st.Built)
	assert.Equal(t, 2, st.Chunks)
}

func TestBuildIndex_SkipsUnsupportedAndUnreadable(t *testing.T) {
	france, _ := writeDocs(t)
	dir := filepath.Dir(france)
	docx := filepath.Join(dir, "cv.docx")
	require.NoError(t, os.WriteFile(docx, []byte("binary"), 0o644))

	svc := newService(t, nil)
	stats, err := svc.BuildIndex(context.Background(), []string{france, docx, filepath.Join(dir, "missing.txt")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.ChunksCreated)
	assert.ElementsMatch(t, []string{docx, filepath.Join(dir, "missing.txt")}, stats.Skipped)
	assert.Equal(t, "Paris is the capital of France.", stats.Summary)
}

func TestBuildIndex_Directory(t *testing.T) {
	france, _ := writeDocs(t)
	svc := newService(t, nil)
	stats, err := svc.BuildIndex(context.Background(), []string{filepath.Dir(france)})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
}

func TestBuildIndex_EmbedFailureIsFatal(t *testing.T) {
	emb := &switchEmbedder{inner: hashing.NewEmbedder(64), fail: true}
	svc := newService(t, func(d *Deps, _ *Options) { d.Embedder = emb })
	france, _ := writeDocs(t)

	_, err := svc.BuildIndex(context.Background(), []string{france})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.False(t, svc.Status().Built)
}

func TestStatus(t *testing.T) {
	svc := newService(t, nil)
	st := svc.Status()
	assert.False(t, st.Built)
	assert.Equal(t, "tfidf", st.Embedder)
	assert.Equal(t, "none", st.Generator)
	assert.False(t, svc.HasGenerator())

	france, japan := writeDocs(t)
	_, err := svc.BuildIndex(context.Background(), []string{france, japan})
	require.NoError(t, err)
	st = svc.Status()
	assert.True(t, st.Built)
	assert.Equal(t, []string{france, japan}, st.Files)
	assert.Equal(t, 2, st.Chunks)
	assert.Equal(t, 5, st.Dimension) // paris capital france tokyo japan
	assert.NotEmpty(t, st.Summary)
	assert.False(t, st.BuiltAt.IsZero())
}

func TestRestore(t *testing.T) {
	store := snapshot.New(filepath.Join(t.TempDir(), "index.db"))
	withStore := func(d *Deps, _ *Options) { d.Snapshots = store }
	ctx := context.Background()

	fresh := newService(t, withStore)
	ok, err := fresh.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	built(t, withStore)

	restored := newService(t, withStore)
	ok, err = restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	results, err := restored.Retrieve(ctx, "capital of France", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "france.txt", results[0].Chunk.Source)
	assert.Equal(t, 2, restored.Status().Chunks)

	other := newService(t, func(d *Deps, _ *Options) {
		d.Snapshots = store
		d.Embedder = hashing.NewEmbedder(32)
	})
	ok, err = other.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_Disabled(t *testing.T) {
	ok, err := newService(t, nil).Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentAnswersDuringRebuild(t *testing.T) {
	svc := built(t, nil)
	france, japan := writeDocs(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ans := svc.Answer(ctx, "capital of France")
				assert.Equal(t, ModeSnippets, ans.Mode)
				assert.True(t, strings.Contains(ans.Text, "Paris is the capital of France."))
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := svc.BuildIndex(ctx, []string{france, japan})
		require.NoError(t, err)
	}
	wg.Wait()
}

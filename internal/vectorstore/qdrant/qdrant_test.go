package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// fakeQdrant implements the handful of REST endpoints the index uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]map[int][]float64
	distance    map[string]string
	apiKeys     []string
}

func newFake(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{collections: map[string]map[int][]float64{}, distance: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]
	switch {
	case len(parts) == 2 && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = map[int][]float64{}
		f.distance[name] = body.Vectors.Distance
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	case len(parts) == 2 && r.Method == http.MethodDelete:
		if _, ok := f.collections[name]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.collections, name)
		_, _ = w.Write([]byte(`{"result":true}`))
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []struct {
				ID     int       `json:"id"`
				Vector []float64 `json:"vector"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.collections[name][p.ID] = p.Vector
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case len(parts) == 4 && parts[3] == "search":
		var body struct {
			Vector []float64 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		type hit struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		}
		var hits []hit
		for id, v := range f.collections[name] {
			sum := 0.0
			for i := range v {
				d := v[i] - body.Vector[i]
				sum += d * d
			}
			hits = append(hits, hit{ID: id, Score: math.Sqrt(sum)})
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Score != hits[j].Score {
				return hits[i].Score < hits[j].Score
			}
			return hits[i].ID < hits[j].ID
		})
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func TestIndex_Lifecycle(t *testing.T) {
	f, srv := newFake(t)
	idx := NewIndex(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"})
	ctx := context.Background()

	_, _, err := idx.Search(ctx, []float64{0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)

	require.NoError(t, idx.Init(ctx, 2))
	name := idx.Collection()
	assert.True(t, strings.HasPrefix(name, "docs_"))
	assert.Equal(t, "Euclid", f.distance[name])

	require.NoError(t, idx.Add(ctx, [][]float64{{0, 0}, {3, 4}}))
	require.NoError(t, idx.Add(ctx, [][]float64{{1, 0}}))
	assert.Equal(t, 3, idx.Len())
	assert.Len(t, f.collections[name], 3)

	d, ids, err := idx.Search(ctx, []float64{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, ids)
	assert.InDeltaSlice(t, []float64{0, 1}, d, 1e-12)

	_, _, err = idx.Search(ctx, []float64{0}, 2)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, idx.Add(ctx, [][]float64{{1}}), domain.ErrDimensionMismatch)

	require.NoError(t, vectorstore.Release(ctx, idx))
	assert.NotContains(t, f.collections, name)
	assert.Equal(t, 0, idx.Len())
	assert.Contains(t, f.apiKeys, "secret")
}

func TestIndex_ReinitUsesNewCollection(t *testing.T) {
	f, srv := newFake(t)
	idx := NewIndex(Config{URL: srv.URL})
	ctx := context.Background()

	require.NoError(t, idx.Init(ctx, 2))
	first := idx.Collection()
	require.NoError(t, idx.Init(ctx, 2))
	second := idx.Collection()

	assert.NotEqual(t, first, second)
	assert.NotContains(t, f.collections, first)
	assert.Contains(t, f.collections, second)
}

func TestIndex_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewIndex(Config{URL: srv.URL}).Init(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

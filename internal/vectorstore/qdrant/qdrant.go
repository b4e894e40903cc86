package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

const upsertBatch = 256

// Index is a minimal REST client to Qdrant.
// Each Init creates a fresh collection named <collection>_<suffix> using
// Euclid distance; Drop deletes it.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	name      string
	dimension int
	count     int
}

var _ domain.Index = (*Index)(nil)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "ragchat"
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection returns the name of the collection created by the last Init.
func (s *Index) Collection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidInput, dimension)
	}
	if err := s.Drop(ctx); err != nil {
		return err
	}
	name := s.collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Euclid",
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("%w: create collection: %v", domain.ErrBackendUnavailable, err)
	}
	s.mu.Lock()
	s.name = name
	s.dimension = dimension
	s.count = 0
	s.mu.Unlock()
	return nil
}

// Add upserts vectors with point ids continuing from the current size.
func (s *Index) Add(ctx context.Context, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name == "" {
		return fmt.Errorf("%w: index not initialized", domain.ErrIndexNotBuilt)
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d components, index has %d", domain.ErrDimensionMismatch, i, len(v), s.dimension)
		}
	}
	for start := 0; start < len(vectors); start += upsertBatch {
		end := min(start+upsertBatch, len(vectors))
		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, map[string]any{
				"id":     s.count + i,
				"vector": vectors[i],
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", s.name)
		if err := s.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("%w: upsert points: %v", domain.ErrBackendUnavailable, err)
		}
	}
	s.count += len(vectors)
	return nil
}

// Search returns Qdrant's Euclid scores as distances, nearest first.
func (s *Index) Search(ctx context.Context, query []float64, k int) ([]float64, []int, error) {
	s.mu.RLock()
	name, dim, count := s.name, s.dimension, s.count
	s.mu.RUnlock()
	if count == 0 {
		return nil, nil, domain.ErrIndexNotBuilt
	}
	if len(query) != dim {
		return nil, nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(query), dim)
	}
	if k <= 0 {
		return []float64{}, []int{}, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    uint64  `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", name), req, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: search: %v", domain.ErrBackendUnavailable, err)
	}
	dists := make([]float64, 0, len(resp.Result))
	ids := make([]int, 0, len(resp.Result))
	for _, r := range resp.Result {
		dists = append(dists, r.Score)
		ids = append(ids, int(r.ID))
	}
	return dists, ids, nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Index) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Drop deletes the collection created by Init, if any.
func (s *Index) Drop(ctx context.Context) error {
	s.mu.Lock()
	name := s.name
	s.name, s.dimension, s.count = "", 0, 0
	s.mu.Unlock()
	if name == "" {
		return nil
	}
	if err := s.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func (s *Index) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return nil
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newServer answers /v1/embeddings with [len(input), index] vectors, listing
// them in reverse order to exercise index-based reordering.
func newServer(t *testing.T, failFirst int, status int) (*httptest.Server, *atomic.Int32, *[]int) {
	t.Helper()
	var calls atomic.Int32
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if int(n) <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches = append(batches, len(req.Input))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			assert.NotEmpty(t, req.Input[i])
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &batches
}

func newClient(t *testing.T, url string, batch int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    url + "/v1",
		APIKey:     "test-key",
		BatchSize:  batch,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestEmbed_BatchesAndOrder(t *testing.T) {
	srv, _, batches := newServer(t, 0, 0)
	c := newClient(t, srv.URL, 2)
	assert.Equal(t, 0, c.Dimension())

	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, *batches)
	assert.Equal(t, []float64{1, 0}, vecs[0])
	assert.Equal(t, []float64{2, 1}, vecs[1])
	assert.Equal(t, []float64{1, 0}, vecs[2]) // empty input sent as a single space
	assert.Equal(t, []float64{4, 1}, vecs[3])
	assert.Equal(t, []float64{5, 0}, vecs[4])
	assert.Equal(t, 2, c.Dimension())
	assert.Equal(t, "openai", c.Name())
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	srv, calls, _ := newServer(t, 2, http.StatusInternalServerError)
	c := newClient(t, srv.URL, 8)

	vecs, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_DoesNotRetryUnauthorized(t *testing.T) {
	srv, calls, _ := newServer(t, 10, http.StatusUnauthorized)
	c := newClient(t, srv.URL, 8)

	_, err := c.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_RateLimited(t *testing.T) {
	srv, calls, _ := newServer(t, 0, 0)
	c, err := NewClient(Config{
		BaseURL:           srv.URL + "/v1",
		APIKey:            "test-key",
		BatchSize:         1,
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

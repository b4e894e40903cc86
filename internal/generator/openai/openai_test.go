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

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	g, err := New(Config{BaseURL: url + "/v1", APIKey: "sk-test", MaxRetries: 2, RetryDelay: time.Millisecond, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return g
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.InDelta(t, DefaultTemperature, req.Temperature, 1e-6)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "question", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  Paris [1]\n"))
	}))
	defer srv.Close()

	g := newGenerator(t, srv.URL)
	assert.True(t, g.Available())
	assert.Equal(t, "openai:gpt-4o-mini", g.Name())

	out, err := g.Generate(context.Background(), domain.GenerateRequest{System: "sys", Prompt: "question"})
	require.NoError(t, err)
	assert.Equal(t, "Paris [1]", out)
}

func TestGenerate_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := newGenerator(t, srv.URL).Generate(context.Background(), domain.GenerateRequest{Prompt: "q"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_EmptyChoiceIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("   "))
	}))
	defer srv.Close()

	g, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), domain.GenerateRequest{Prompt: "q"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

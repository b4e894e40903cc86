package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"ragchat/internal/domain"
	"ragchat/internal/util"
)

// DefaultModel is the embedding model used when Config.Model is empty.
const DefaultModel = string(openai.SmallEmbedding3)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	BatchSize         int
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
// Dimension is learned from the first response.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	dimension  atomic.Int64
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrBackendUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		client:     openai.NewClientWithConfig(oc),
		model:      openai.EmbeddingModel(cfg.Model),
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns 0 until the first successful call.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns one vector per text, batching requests by the configured size.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: openai embeddings: %v", domain.ErrBackendUnavailable, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	// The API rejects empty inputs.
	input := make([]string, len(batch))
	for i, t := range batch {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	var result [][]float64
	err := util.Do(ctx, c.maxRetries, c.retryDelay, retryable, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: input,
			Model: c.model,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(input) {
			return fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(input))
		}
		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

		vecs := make([][]float64, len(data))
		for i, d := range data {
			// Convert []float32 to []float64
			v := make([]float64, len(d.Embedding))
			for j, x := range d.Embedding {
				v[j] = float64(x)
			}
			vecs[i] = v
		}
		result = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		c.dimension.CompareAndSwap(0, int64(len(result[0])))
	}
	return result, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return util.RetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return util.RetryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

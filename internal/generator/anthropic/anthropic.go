// Package anthropic generates answers with the Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/util"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultTimeout = 60 * time.Second
	DefaultVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Version    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Generator calls POST /v1/messages.
type Generator struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	version    string
	maxRetries int
	retryDelay time.Duration
}

var _ domain.Generator = (*Generator)(nil)

type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// statusError carries the HTTP status so retries can tell transient failures apart.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("anthropic error (status %d): %s", e.code, e.msg)
}

func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", domain.ErrBackendUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Generator{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		version:    cfg.Version,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

func (g *Generator) Name() string    { return "anthropic:" + g.model }
func (g *Generator) Available() bool { return true }

func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	// Anthropic requires max_tokens to be set
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(messagesRequest{
		Model:       g.model,
		Messages:    []messagesMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var answer string
	err = util.Do(ctx, g.maxRetries, g.retryDelay, retryable, func(ctx context.Context) error {
		text, err := g.send(ctx, body)
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return answer, nil
}

func (g *Generator) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", g.version)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		serr := &statusError{code: resp.StatusCode, msg: strings.TrimSpace(string(payload))}
		var msgResp messagesResponse
		if json.Unmarshal(payload, &msgResp) == nil && msgResp.Error != nil {
			serr.msg = msgResp.Error.Message
		}
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return "", &util.RetryAfterError{Delay: d, Err: serr}
		}
		return "", serr
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(payload, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", errors.New("anthropic: no response content returned")
	}
	return text, nil
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return util.RetryableStatus(serr.code)
	}
	return true
}

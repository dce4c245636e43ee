// Package ollama provides an Ollama-backed embedding client.
//
// The embedding contract is mean-pooled, L2-normalized vectors of a fixed
// dimensionality set by the model (all-minilm: 384). Ollama mean-pools
// server-side; normalization happens here so every stored vector has unit
// length regardless of backend version.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client implements embed.Embedder against Ollama's HTTP API.
type Client struct {
	baseURL   string
	model     string
	normalize bool
	client    *http.Client
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces embedding requests at n per second with the given
// burst. Protects a shared Ollama instance from import-sized fan-out.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithoutNormalization disables client-side L2 normalization.
func WithoutNormalization() Option {
	return func(c *Client) {
		c.normalize = false
	}
}

// New creates an embedding client for the given Ollama base URL and model.
func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		model:     model,
		normalize: true,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the vector for text. Safe for concurrent use.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for %d-byte prompt", len(text))
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	if c.normalize {
		l2Normalize(out)
	}
	return out, nil
}

// l2Normalize scales v to unit length in place. Zero vectors stay zero.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Package search answers semantic queries: embed the query text, then run a
// filtered k-NN search over the thread index.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/embed"
	"github.com/tweetnest/tweetnest/engine/semantic"
)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 10

// MaxTopK caps the result count a caller can request.
const MaxTopK = 100

// Searcher is the slice of the semantic store the service needs.
type Searcher interface {
	SearchThreads(ctx context.Context, vector []float32, topK int, filter semantic.SearchFilter) ([]semantic.SearchResult, error)
}

// Request is one semantic query.
type Request struct {
	Query    string
	TopK     int
	Username string
	Since    time.Time
	Until    time.Time
}

// Service runs semantic queries. Safe for concurrent use.
type Service struct {
	embedder embed.Embedder
	index    Searcher
	log      *slog.Logger
	timeout  time.Duration
}

// New creates a search Service. timeout <= 0 disables the per-query deadline.
func New(embedder embed.Embedder, index Searcher, log *slog.Logger, timeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{embedder: embedder, index: index, log: log, timeout: timeout}
}

// Query embeds the request text and returns the top matching threads.
func (s *Service) Query(ctx context.Context, req Request) ([]semantic.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	results, err := s.index.SearchThreads(ctx, vector, topK, semantic.SearchFilter{
		Username: req.Username,
		Since:    req.Since,
		Until:    req.Until,
	})
	if err != nil {
		return nil, fmt.Errorf("search: query index: %w", err)
	}

	s.log.Info("search: query served",
		"top_k", topK, "results", len(results), "duration", time.Since(start))
	return results, nil
}

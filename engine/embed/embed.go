// Package embed drives an embedding backend over thread texts in bounded
// batches.
package embed

import (
	"context"
	"fmt"

	"github.com/tweetnest/tweetnest/pkg/fn"
)

// DefaultBatchSize is the number of texts embedded per batch.
const DefaultBatchSize = 50

// Embedder turns text into a fixed-length vector. Implementations must be
// safe for concurrent use; the batcher fans out within a batch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Batch embeds texts in fixed-size batches, returning vectors index-aligned
// with the input. At most one batch is in flight at a time; calls within a
// batch run concurrently. A single failed item fails the whole batch and
// aborts with that error, so callers can treat the chunk as lost and move on.
func Batch(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for i, batch := range fn.Chunk(texts, batchSize) {
		results := fn.ParMapResult(batch, len(batch), func(text string) fn.Result[[]float32] {
			return fn.FromPair(e.Embed(ctx, text))
		})
		vectors, err := fn.Collect(results).Unwrap()
		if err != nil {
			return nil, fmt.Errorf("embed: batch %d: %w", i, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

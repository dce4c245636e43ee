package embed

import (
	"context"

	"github.com/tweetnest/tweetnest/pkg/resilience"
)

// Guarded wraps an Embedder with a circuit breaker so a dead backend fails
// chunks fast instead of timing out on every text.
type Guarded struct {
	inner   Embedder
	breaker *resilience.Breaker
}

// Guard wraps e with breaker b.
func Guard(e Embedder, b *resilience.Breaker) *Guarded {
	return &Guarded{inner: e, breaker: b}
}

// Embed implements Embedder through the breaker.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		v, err := g.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

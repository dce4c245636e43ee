package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tweetnest/tweetnest/pkg/resilience"
)

// fakeEmbedder derives a deterministic vector from the text so tests can
// check index alignment.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, fmt.Errorf("backend rejected %q", text)
	}
	return []float32{float32(len(text)), float32(text[0])}, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text number %d padding %s", i, strings.Repeat("x", i))
	}
	return out
}

func TestBatchPreservesOrder(t *testing.T) {
	e := &fakeEmbedder{}
	in := texts(17)

	vectors, err := Batch(context.Background(), e, in, 5)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(vectors) != len(in) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(in))
	}
	for i, v := range vectors {
		if v[0] != float32(len(in[i])) {
			t.Errorf("vectors[%d] does not match input %d: got %v", i, i, v)
		}
	}
	if e.calls != len(in) {
		t.Errorf("embedder called %d times, want %d", e.calls, len(in))
	}
}

func TestBatchEmptyInput(t *testing.T) {
	vectors, err := Batch(context.Background(), &fakeEmbedder{}, nil, 5)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("got %d vectors, want 0", len(vectors))
	}
}

func TestBatchZeroSizeUsesDefault(t *testing.T) {
	e := &fakeEmbedder{}
	in := texts(3)
	vectors, err := Batch(context.Background(), e, in, 0)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
}

func TestBatchSingleFailureFailsBatch(t *testing.T) {
	e := &fakeEmbedder{failOn: "number 7"}
	_, err := Batch(context.Background(), e, texts(10), 4)
	if err == nil {
		t.Fatal("expected batch failure")
	}
	if !strings.Contains(err.Error(), "batch 1") {
		t.Errorf("error should name the failing batch: %v", err)
	}
}

type errEmbedder struct{ err error }

func (e *errEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, e.err }

func TestGuardPassesThrough(t *testing.T) {
	g := Guard(&fakeEmbedder{}, resilience.NewBreaker(resilience.DefaultBreakerOpts))
	v, err := g.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || v[0] != 5 {
		t.Errorf("vector = %v", v)
	}
}

func TestGuardTripsAfterThreshold(t *testing.T) {
	boom := errors.New("backend down")
	g := Guard(&errEmbedder{err: boom}, resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: 2,
		Timeout:       time.Hour,
		HalfOpenMax:   1,
	}))

	for i := 0; i < 2; i++ {
		if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}
	if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

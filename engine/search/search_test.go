package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/semantic"
)

type fakeEmbedder struct {
	err    error
	vector []float32
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeSearcher struct {
	gotVector []float32
	gotTopK   int
	gotFilter semantic.SearchFilter
	results   []semantic.SearchResult
	err       error
}

func (f *fakeSearcher) SearchThreads(_ context.Context, vector []float32, topK int, filter semantic.SearchFilter) ([]semantic.SearchResult, error) {
	f.gotVector = vector
	f.gotTopK = topK
	f.gotFilter = filter
	return f.results, f.err
}

func TestQuery(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	idx := &fakeSearcher{results: []semantic.SearchResult{{ID: "a", Score: 0.9}}}
	svc := New(emb, idx, nil, 0)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err := svc.Query(context.Background(), Request{
		Query:    "what did I say about go",
		TopK:     5,
		Username: "alice",
		Since:    since,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("results = %+v", results)
	}
	if idx.gotTopK != 5 {
		t.Errorf("topK = %d, want 5", idx.gotTopK)
	}
	if idx.gotFilter.Username != "alice" || !idx.gotFilter.Since.Equal(since) {
		t.Errorf("filter = %+v", idx.gotFilter)
	}
	if len(idx.gotVector) != 2 {
		t.Errorf("vector = %v", idx.gotVector)
	}
}

func TestQueryEmpty(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{}, nil, 0)
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Query(context.Background(), Request{Query: q}); !errors.Is(err, domain.ErrEmptyQuery) {
			t.Errorf("Query(%q) err = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestQueryTopKBounds(t *testing.T) {
	idx := &fakeSearcher{}
	svc := New(&fakeEmbedder{vector: []float32{1}}, idx, nil, 0)

	if _, err := svc.Query(context.Background(), Request{Query: "q text"}); err != nil {
		t.Fatal(err)
	}
	if idx.gotTopK != DefaultTopK {
		t.Errorf("default topK = %d, want %d", idx.gotTopK, DefaultTopK)
	}

	if _, err := svc.Query(context.Background(), Request{Query: "q text", TopK: 10000}); err != nil {
		t.Fatal(err)
	}
	if idx.gotTopK != MaxTopK {
		t.Errorf("capped topK = %d, want %d", idx.gotTopK, MaxTopK)
	}
}

func TestQueryEmbedError(t *testing.T) {
	boom := errors.New("embed down")
	svc := New(&fakeEmbedder{err: boom}, &fakeSearcher{}, nil, 0)

	_, err := svc.Query(context.Background(), Request{Query: "anything"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped embed error", err)
	}
}

func TestQuerySearchError(t *testing.T) {
	boom := errors.New("index down")
	svc := New(&fakeEmbedder{vector: []float32{1}}, &fakeSearcher{err: boom}, nil, 0)

	_, err := svc.Query(context.Background(), Request{Query: "anything"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped index error", err)
	}
}

func TestQueryTimeoutSetsDeadline(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	var sawDeadline bool
	idx := &deadlineSearcher{saw: &sawDeadline}
	svc := New(emb, idx, nil, time.Second)

	if _, err := svc.Query(context.Background(), Request{Query: "q text"}); err != nil {
		t.Fatal(err)
	}
	if !sawDeadline {
		t.Error("search context had no deadline")
	}
}

type deadlineSearcher struct{ saw *bool }

func (d *deadlineSearcher) SearchThreads(ctx context.Context, _ []float32, _ int, _ semantic.SearchFilter) ([]semantic.SearchResult, error) {
	_, *d.saw = ctx.Deadline()
	return nil, nil
}

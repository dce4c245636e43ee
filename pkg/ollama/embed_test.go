package ollama

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embedServer(t *testing.T, embedding []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model == "" || req.Prompt == "" {
			t.Errorf("request missing fields: %+v", req)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: embedding})
	}))
}

func TestEmbedNormalizes(t *testing.T) {
	srv := embedServer(t, []float64{3, 4})
	defer srv.Close()

	c := New(srv.URL, "all-minilm")
	v, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 {
		t.Fatalf("got %d dims, want 2", len(v))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("vector = %v, want unit-length (0.6, 0.8)", v)
	}
}

func TestEmbedWithoutNormalization(t *testing.T) {
	srv := embedServer(t, []float64{3, 4})
	defer srv.Close()

	c := New(srv.URL, "all-minilm", WithoutNormalization())
	v, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("vector = %v, want raw (3, 4)", v)
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	srv := embedServer(t, nil)
	defer srv.Close()

	c := New(srv.URL, "all-minilm")
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestEmbedBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "nope")
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestEmbedRateLimiterHonorsContext(t *testing.T) {
	srv := embedServer(t, []float64{1})
	defer srv.Close()

	// Limiter with no burst blocks immediately; a cancelled context must
	// unblock it.
	c := New(srv.URL, "all-minilm", WithRateLimit(0.001, 1))
	if _, err := c.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Embed(ctx, "second"); err == nil {
		t.Fatal("expected context error from limiter")
	}
}

func TestL2NormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	l2Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("v[%d] = %v, want 0", i, x)
		}
	}
}

// Package main implements the tweetnest API server: import job management
// and semantic search over imported threads.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/embed"
	"github.com/tweetnest/tweetnest/engine/history"
	"github.com/tweetnest/tweetnest/engine/importer"
	"github.com/tweetnest/tweetnest/engine/search"
	"github.com/tweetnest/tweetnest/engine/semantic"
	"github.com/tweetnest/tweetnest/pkg/metrics"
	"github.com/tweetnest/tweetnest/pkg/mid"
	"github.com/tweetnest/tweetnest/pkg/ollama"
	"github.com/tweetnest/tweetnest/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	QdrantURL     string
	Collection    string
	OllamaURL     string
	EmbedModel    string
	LedgerPath    string
	NATSURL       string
	CORSOrigin    string
	SearchTimeout time.Duration
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "tweetnest"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:    envOr("EMBED_MODEL", "all-minilm"),
		LedgerPath:    envOr("LEDGER_PATH", "import-history.json"),
		NATSURL:       os.Getenv("NATS_URL"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		SearchTimeout: durationOr("SEARCH_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := embed.Guard(
		ollama.New(cfg.OllamaURL, cfg.EmbedModel),
		resilience.NewBreaker(resilience.DefaultBreakerOpts),
	)

	var events importer.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("tweetnest-api"))
		if err != nil {
			logger.Warn("nats connect failed, progress events disabled", "err", err)
		} else {
			defer nc.Drain()
			events = importer.NewNATSPublisher(nc, logger)
		}
	}

	imp := importer.New(importer.Deps{
		Index:    store,
		Embedder: embedder,
		Ledger:   history.New(cfg.LedgerPath),
		Jobs:     importer.NewMemoryJobStore(),
		Events:   events,
		Logger:   logger,
	}, importer.DefaultConfig())

	searchSvc := search.New(embedder, store, logger, cfg.SearchTimeout)

	reg := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/import", handleImportStart(imp, reg))
	mux.HandleFunc("GET /api/import/jobs", handleJobList(imp))
	mux.HandleFunc("GET /api/import/jobs/{id}", handleJobGet(imp))
	mux.HandleFunc("GET /api/search", handleSearch(searchSvc, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("tweetnest-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ImportRequest is the JSON body for POST /api/import. Path is an
// already-extracted export file reachable by the server.
type ImportRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force,omitempty"`
}

func handleImportStart(imp *importer.Importer, reg *metrics.Registry) http.HandlerFunc {
	started := reg.Counter("tweetnest_api_imports_started_total", "Import jobs accepted")
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}

		job := imp.Start(r.Context(), req.Path, req.Force)
		started.Inc()
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleJobList(imp *importer.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, imp.Jobs())
	}
}

func handleJobGet(imp *importer.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := imp.Job(r.PathValue("id"))
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// SearchResponse is the JSON response for GET /api/search.
type SearchResponse struct {
	Results []semantic.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

func handleSearch(svc *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := search.Request{
			Query:    q.Get("q"),
			Username: q.Get("username"),
		}
		if v := q.Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "top_k must be an integer")
				return
			}
			req.TopK = n
		}
		var err error
		if req.Since, err = parseTimeParam(q.Get("since")); err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339 or unix seconds")
			return
		}
		if req.Until, err = parseTimeParam(q.Get("until")); err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339 or unix seconds")
			return
		}

		results, err := svc.Query(r.Context(), req)
		if err != nil {
			if errors.Is(err, domain.ErrEmptyQuery) {
				writeError(w, http.StatusBadRequest, "q is required")
				return
			}
			logger.Error("search failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results, Count: len(results)})
	}
}

// parseTimeParam accepts RFC 3339 or unix seconds. Empty means unset.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

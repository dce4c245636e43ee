// Package main implements the tweetnest import CLI: parse a data-export
// file, rebuild threads, embed them, and load the vector index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/embed"
	"github.com/tweetnest/tweetnest/engine/history"
	"github.com/tweetnest/tweetnest/engine/importer"
	"github.com/tweetnest/tweetnest/engine/semantic"
	"github.com/tweetnest/tweetnest/pkg/metrics"
	"github.com/tweetnest/tweetnest/pkg/ollama"
	"github.com/tweetnest/tweetnest/pkg/resilience"
)

func main() {
	var (
		force       = flag.Bool("force", false, "import everything, ignoring the dedup cutoff")
		qdrantURL   = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "tweetnest"), "Qdrant collection name")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		model       = flag.String("model", envOr("EMBED_MODEL", "all-minilm"), "embedding model name")
		ledgerPath  = flag.String("ledger", envOr("LEDGER_PATH", "import-history.json"), "import-history ledger file")
		natsURL     = flag.String("nats", os.Getenv("NATS_URL"), "NATS URL for progress events (empty disables)")
		metricsPort = flag.Int("metrics-port", 0, "serve /metrics on this port (0 disables)")
		rps         = flag.Float64("embed-rps", 0, "embedding requests per second (0 disables pacing)")
		dims        = flag.Int("dims", 0, "vector dimensionality (0 uses the default)")
		chunkSize   = flag.Int("chunk-size", 0, "posts per processing chunk (0 uses the default)")
		batchSize   = flag.Int("batch-size", 0, "texts per embedding batch (0 uses the default)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import [flags] <export-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	job, err := run(flag.Arg(0), *force, config{
		qdrantURL:   *qdrantURL,
		collection:  *collection,
		ollamaURL:   *ollamaURL,
		model:       *model,
		ledgerPath:  *ledgerPath,
		natsURL:     *natsURL,
		metricsPort: *metricsPort,
		embedRPS:    *rps,
		dims:        *dims,
		chunkSize:   *chunkSize,
		batchSize:   *batchSize,
	}, logger)
	if err != nil {
		logger.Error("import failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("import %s: %d posts, %d threads written, %d skipped, %d chunk errors\n",
		job.Status, job.Total, job.Success, job.Skipped, job.Errors)
	if job.Status == domain.JobFailed {
		fmt.Fprintln(os.Stderr, job.Error)
		os.Exit(1)
	}
}

type config struct {
	qdrantURL   string
	collection  string
	ollamaURL   string
	model       string
	ledgerPath  string
	natsURL     string
	metricsPort int
	embedRPS    float64
	dims        int
	chunkSize   int
	batchSize   int
}

func run(path string, force bool, cfg config, logger *slog.Logger) (domain.ImportJob, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	if cfg.metricsPort > 0 {
		reg.ServeAsync(cfg.metricsPort)
	}

	store, err := semantic.New(cfg.qdrantURL, cfg.collection)
	if err != nil {
		return domain.ImportJob{}, err
	}
	defer store.Close()

	var embedOpts []ollama.Option
	if cfg.embedRPS > 0 {
		embedOpts = append(embedOpts, ollama.WithRateLimit(cfg.embedRPS, 4))
	}
	embedder := embed.Guard(
		ollama.New(cfg.ollamaURL, cfg.model, embedOpts...),
		resilience.NewBreaker(resilience.DefaultBreakerOpts),
	)

	var events importer.EventPublisher
	if cfg.natsURL != "" {
		nc, err := nats.Connect(cfg.natsURL, nats.Name("tweetnest-import"))
		if err != nil {
			logger.Warn("nats connect failed, progress events disabled", "err", err)
		} else {
			defer nc.Drain()
			events = importer.NewNATSPublisher(nc, logger)
		}
	}

	impCfg := importer.DefaultConfig()
	if cfg.dims > 0 {
		impCfg.VectorSize = cfg.dims
	}
	if cfg.chunkSize > 0 {
		impCfg.ChunkSize = cfg.chunkSize
	}
	if cfg.batchSize > 0 {
		impCfg.EmbedBatchSize = cfg.batchSize
	}

	imp := importer.New(importer.Deps{
		Index:    store,
		Embedder: embedder,
		Ledger:   history.New(cfg.ledgerPath),
		Jobs:     importer.NewMemoryJobStore(),
		Events:   events,
		Logger:   logger,
	}, impCfg)

	start := time.Now()
	job := imp.ImportFile(ctx, path, force)

	reg.Counter("tweetnest_import_posts_total", "Posts considered by the last import").Add(int64(job.Total))
	reg.Counter("tweetnest_import_threads_written_total", "Threads written to the index").Add(int64(job.Success))
	reg.Counter("tweetnest_import_threads_skipped_total", "Threads skipped by dedup").Add(int64(job.Skipped))
	reg.Counter("tweetnest_import_chunk_errors_total", "Chunks that failed embedding or upsert").Add(int64(job.Errors))
	reg.Histogram("tweetnest_import_duration_seconds", "Wall-clock import duration", nil).Since(start)

	return job, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Package importer sequences the import pipeline: load an export, filter
// and sort it, resolve the dedup cutoff, then run chunks through thread
// building, embedding, and index writes while tracking a client-visible job.
//
// Error taxonomy: failures before the chunk loop (unreadable source, no
// account, collection creation) fail the job; per-chunk embedding or upsert
// failures increment an error counter and the loop continues; ledger and
// sampling hiccups fall back to safe defaults. A job that finishes with
// errors is still completed; partial success is the norm for bulk imports.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tweetnest/tweetnest/engine/archive"
	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/embed"
	"github.com/tweetnest/tweetnest/engine/history"
	"github.com/tweetnest/tweetnest/engine/preprocess"
	"github.com/tweetnest/tweetnest/engine/semantic"
	"github.com/tweetnest/tweetnest/engine/thread"
	"github.com/tweetnest/tweetnest/pkg/fn"
)

// VectorIndex is the slice of the semantic store the importer needs.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.ThreadRecord) error
	EnableIndexing(ctx context.Context, threshold uint64) error
	Count(ctx context.Context) (uint64, error)
	MaxCreatedAt(ctx context.Context, username string, sample uint32) (time.Time, bool, error)
}

// Config tunes the pipeline.
type Config struct {
	// ChunkSize is the number of source posts per processing chunk.
	ChunkSize int
	// EmbedBatchSize is the number of texts per embedding batch.
	EmbedBatchSize int
	// VectorSize is the collection's vector dimensionality.
	VectorSize int
	// IndexingThreshold is restored after the bulk load completes.
	IndexingThreshold uint64
	// SampleLimit bounds the dedup fallback scroll.
	SampleLimit uint32
	// Preprocess is the resolved text-cleaning configuration.
	Preprocess preprocess.Options
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         500,
		EmbedBatchSize:    embed.DefaultBatchSize,
		VectorSize:        384,
		IndexingThreshold: semantic.DefaultIndexingThreshold,
		SampleLimit:       100,
		Preprocess:        preprocess.DefaultOptions(),
	}
}

// Deps holds the importer's injected collaborators.
type Deps struct {
	Index    VectorIndex
	Embedder embed.Embedder
	Ledger   *history.Ledger
	Jobs     JobStore
	Events   EventPublisher // optional
	Logger   *slog.Logger
}

// Importer runs import jobs. Safe for concurrent use; distinct usernames
// may import concurrently, sharing only the ledger (which merges on write).
type Importer struct {
	index  VectorIndex
	embed  embed.Embedder
	ledger *history.Ledger
	jobs   JobStore
	events EventPublisher
	log    *slog.Logger
	cfg    Config
	tracer trace.Tracer
}

// New creates an Importer.
func New(deps Deps, cfg Config) *Importer {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = embed.DefaultBatchSize
	}
	if cfg.SampleLimit == 0 {
		cfg.SampleLimit = 100
	}
	return &Importer{
		index:  deps.Index,
		embed:  deps.Embedder,
		ledger: deps.Ledger,
		jobs:   deps.Jobs,
		events: deps.Events,
		log:    log,
		cfg:    cfg,
		tracer: otel.Tracer("engine/importer"),
	}
}

// ImportFile loads the export at path and runs a full import. The returned
// job is terminal: completed or failed.
func (imp *Importer) ImportFile(ctx context.Context, path string, force bool) domain.ImportJob {
	job := imp.newJob("")
	ex, err := archive.LoadFile(path)
	if err != nil {
		return imp.fail(ctx, job, err)
	}
	return imp.run(ctx, job, ex, force)
}

// Start launches an import in the background and returns the pending job
// snapshot immediately. The job detaches from the caller's cancellation so
// an aborted HTTP request does not abandon a half-written import.
func (imp *Importer) Start(ctx context.Context, path string, force bool) domain.ImportJob {
	job := imp.newJob("")
	bg := context.WithoutCancel(ctx)
	go func() {
		ex, err := archive.LoadFile(path)
		if err != nil {
			imp.fail(bg, job, err)
			return
		}
		imp.run(bg, job, ex, force)
	}()
	return job
}

// ImportExport runs a full import over an already-parsed export.
func (imp *Importer) ImportExport(ctx context.Context, ex *archive.Export, force bool) domain.ImportJob {
	return imp.run(ctx, imp.newJob(ex.Account.Username), ex, force)
}

// Job returns the stored record for a job id.
func (imp *Importer) Job(id string) (domain.ImportJob, error) {
	job, ok := imp.jobs.Get(id)
	if !ok {
		return domain.ImportJob{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job, nil
}

// Jobs returns all stored jobs, newest first.
func (imp *Importer) Jobs() []domain.ImportJob {
	return imp.jobs.List()
}

func (imp *Importer) newJob(username string) domain.ImportJob {
	job := domain.ImportJob{
		ID:        uuid.NewString(),
		Username:  username,
		Status:    domain.JobPending,
		StartTime: time.Now().UTC(),
	}
	imp.publish(context.Background(), job)
	return job
}

// run drives a job from pending to a terminal state.
func (imp *Importer) run(ctx context.Context, job domain.ImportJob, ex *archive.Export, force bool) domain.ImportJob {
	if err := domain.ValidateAccount(ex.Account); err != nil {
		return imp.fail(ctx, job, err)
	}
	job.Username = ex.Account.Username
	job.Status = domain.JobProcessing
	imp.publish(ctx, job)

	if err := imp.index.EnsureCollection(ctx, imp.cfg.VectorSize); err != nil {
		return imp.fail(ctx, job, err)
	}

	posts := imp.filterPosts(ex)
	archive.SortPostsAscending(posts)
	job.Total = len(posts)
	imp.publish(ctx, job)

	cutoff := imp.resolveCutoff(ctx, job.Username, force)

	// Chunks are slices of the sorted post list; each chunk is threaded,
	// embedded, and written before the next starts, so one chunk's threads
	// and vectors are resident at a time. A chain crossing a chunk boundary
	// continues as an independent thread in the next chunk.
	var maxWritten time.Time
	seen := make(map[string]bool)

	for i, chunk := range fn.Chunk(posts, imp.cfg.ChunkSize) {
		written, latest := imp.processChunk(ctx, &job, i, chunk, cutoff, seen)
		if written > 0 && latest.After(maxWritten) {
			maxWritten = latest
		}
		job.Progress += len(chunk)
		imp.publish(ctx, job)
	}

	if job.Success > 0 {
		if err := imp.ledger.Apply(job.Username, time.Now().UTC(), maxWritten, job.Success); err != nil {
			imp.log.Error("importer: ledger update failed", "username", job.Username, "error", err)
		}
	}

	// Best-effort finalization: restore indexing even when chunks failed so
	// search latency recovers.
	if err := imp.index.EnableIndexing(ctx, imp.cfg.IndexingThreshold); err != nil {
		imp.log.Error("importer: re-enable indexing failed", "error", err)
	}
	if count, err := imp.index.Count(ctx); err == nil {
		imp.log.Info("importer: collection size after import", "points", count)
	}

	now := time.Now().UTC()
	job.Status = domain.JobCompleted
	job.EndTime = &now
	imp.publish(ctx, job)
	imp.log.Info("importer: job completed",
		"job_id", job.ID, "username", job.Username,
		"success", job.Success, "skipped", job.Skipped, "errors", job.Errors)
	return job
}

// filterPosts drops retweets and replies to other accounts before threading.
func (imp *Importer) filterPosts(ex *archive.Export) []domain.Post {
	accountID := ex.Account.AccountID
	return fn.Filter(ex.Posts, func(p domain.Post) bool {
		if preprocess.IsRetweet(p.EffectiveText()) {
			return false
		}
		if p.InReplyToAuthorID != "" && p.InReplyToAuthorID != accountID {
			return false
		}
		return true
	})
}

// processChunk runs one chunk of posts through threading, dedup, embedding,
// and upsert. Returns the number of threads written and the newest root
// timestamp among them. Chunk failures are absorbed into job.Errors.
func (imp *Importer) processChunk(ctx context.Context, job *domain.ImportJob, n int, chunk []domain.Post, cutoff time.Time, seen map[string]bool) (int, time.Time) {
	ctx, span := imp.tracer.Start(ctx, "import.chunk", trace.WithAttributes(
		attribute.Int("chunk", n),
		attribute.Int("posts", len(chunk)),
	))
	defer span.End()

	threads, err := thread.Build(chunk, job.Username, imp.cfg.Preprocess)
	if err != nil {
		job.Errors++
		imp.log.Error("importer: thread build failed", "chunk", n, "error", err)
		return 0, time.Time{}
	}

	var candidates []domain.EmbeddableThread
	for _, t := range threads {
		// Strict greater-than: a thread at exactly the cutoff was the last
		// one written by the previous import.
		if !cutoff.IsZero() && !t.CreatedAt.After(cutoff) {
			job.Skipped++
			continue
		}
		if seen[t.ID] {
			job.Skipped++
			continue
		}
		seen[t.ID] = true
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return 0, time.Time{}
	}

	texts := fn.Map(candidates, func(t domain.EmbeddableThread) string { return t.Text })
	vectors, err := embed.Batch(ctx, imp.embed, texts, imp.cfg.EmbedBatchSize)
	if err != nil {
		job.Errors++
		imp.log.Error("importer: embedding failed", "chunk", n, "threads", len(candidates), "error", err)
		return 0, time.Time{}
	}

	records := make([]semantic.ThreadRecord, len(candidates))
	var latest time.Time
	for i, t := range candidates {
		records[i] = semantic.ThreadRecord{
			ID:         surrogateID(),
			Vector:     vectors[i],
			Text:       t.Text,
			Username:   t.Username,
			CreatedAt:  t.CreatedAt,
			OriginalID: t.ID,
		}
		if t.CreatedAt.After(latest) {
			latest = t.CreatedAt
		}
	}

	result := fn.Retry(ctx, upsertRetry, func(ctx context.Context) fn.Result[int] {
		if err := imp.index.Upsert(ctx, records); err != nil {
			return fn.Err[int](err)
		}
		return fn.Ok(len(records))
	})
	if _, err := result.Unwrap(); err != nil {
		job.Errors++
		imp.log.Error("importer: upsert failed", "chunk", n, "points", len(records), "error", err)
		return 0, time.Time{}
	}

	job.Success += len(records)
	return len(records), latest
}

var upsertRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// fail marks a job failed with the error message captured verbatim.
func (imp *Importer) fail(ctx context.Context, job domain.ImportJob, err error) domain.ImportJob {
	now := time.Now().UTC()
	job.Status = domain.JobFailed
	job.Error = err.Error()
	job.EndTime = &now
	imp.publish(ctx, job)
	imp.log.Error("importer: job failed", "job_id", job.ID, "username", job.Username, "error", err)
	return job
}

// publish stores the job snapshot and emits a progress event.
func (imp *Importer) publish(ctx context.Context, job domain.ImportJob) {
	imp.jobs.Put(job)
	if imp.events != nil {
		imp.events.Publish(ctx, eventFromJob(job))
	}
}

// surrogateID returns a fresh time-sortable point id. Original post ids are
// payload, never point ids, to avoid id-format collisions with the backend.
func surrogateID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

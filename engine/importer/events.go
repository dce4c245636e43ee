package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/pkg/natsutil"
)

// ProgressSubject is the NATS subject import progress events are published on.
const ProgressSubject = "tweetnest.import.progress"

// Event is a structured import progress notification, published on every
// job transition and after every processed chunk.
type Event struct {
	JobID    string           `json:"job_id"`
	Username string           `json:"username"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Total    int              `json:"total"`
	Success  int              `json:"success"`
	Skipped  int              `json:"skipped"`
	Errors   int              `json:"errors"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

// EventPublisher receives progress events. A nil publisher disables
// publishing; failures must not affect the import.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

// NATSPublisher publishes events to NATS. Publish errors are logged and
// swallowed: progress is advisory.
type NATSPublisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSPublisher creates a publisher on the given connection.
func NewNATSPublisher(nc *nats.Conn, log *slog.Logger) *NATSPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &NATSPublisher{nc: nc, log: log}
}

// Publish implements EventPublisher.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) {
	if err := natsutil.Publish(ctx, p.nc, ProgressSubject, ev); err != nil {
		p.log.Warn("importer: progress publish failed", "job_id", ev.JobID, "error", err)
	}
}

// eventFromJob snapshots a job into an Event.
func eventFromJob(job domain.ImportJob) Event {
	return Event{
		JobID:    job.ID,
		Username: job.Username,
		Status:   job.Status,
		Progress: job.Progress,
		Total:    job.Total,
		Success:  job.Success,
		Skipped:  job.Skipped,
		Errors:   job.Errors,
		Error:    job.Error,
		At:       time.Now().UTC(),
	}
}

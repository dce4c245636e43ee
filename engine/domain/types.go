// Package domain defines the core types, constants, and validation for the
// tweetnest import pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import "time"

// Account identifies the source account an export belongs to.
type Account struct {
	AccountID   string `json:"account_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// URLEntity is a shortened URL with its expansion, carried from the export's
// entity list so the preprocessor can unfurl it.
type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url,omitempty"`
}

// Post is a single post as read from the source export. Immutable once
// parsed; the thread builder keeps its link state in a private side table.
type Post struct {
	ID                string      `json:"id"`
	Text              string      `json:"text"`
	FullText          string      `json:"full_text"`
	CreatedAt         time.Time   `json:"created_at"`
	AuthorID          string      `json:"author_id"`
	InReplyToID       string      `json:"in_reply_to_id,omitempty"`
	InReplyToAuthorID string      `json:"in_reply_to_author_id,omitempty"`
	URLs              []URLEntity `json:"urls,omitempty"`
}

// EffectiveText returns the full text when the export carries one, otherwise
// the truncated display text.
func (p Post) EffectiveText() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Text
}

// EmbeddableThread is a reply chain collapsed into one embeddable unit.
// ID is the root post's id; Text is already preprocessed.
type EmbeddableThread struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportHistoryEntry records the last successful import for one username.
// Keyed in the ledger by lowercased username.
type ImportHistoryEntry struct {
	Username       string    `json:"username"`
	LastImportDate time.Time `json:"last_import_date"`
	LastTweetDate  time.Time `json:"last_tweet_date"`
	TweetCount     int       `json:"tweet_count"`
}

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ImportJob is the client-visible record of one import run. Jobs live in a
// process-local store; they are re-triggerable after a restart.
type ImportJob struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Status    JobStatus  `json:"status"`
	Progress  int        `json:"progress"` // posts processed so far
	Total     int        `json:"total"`    // posts in the filtered export
	Success   int        `json:"success"`  // threads written
	Skipped   int        `json:"skipped"`  // threads dropped by dedup
	Errors    int        `json:"errors"`   // chunks that failed embed/upsert
	Error     string     `json:"error,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

package semantic

import "time"

// Payload field names of every thread point. Secondary indexes exist for
// username, created_at, and original_id.
const (
	FieldText       = "text"
	FieldUsername   = "username"
	FieldCreatedAt  = "created_at" // unix seconds
	FieldOriginalID = "original_id"
)

// ThreadRecord is a single thread ready to store: a surrogate point id, the
// embedding, and the payload the search side filters on. Records are written
// once and only ever replaced by a re-import under a fresh surrogate id.
type ThreadRecord struct {
	ID         string // surrogate UUID, not the source post id
	Vector     []float32
	Text       string
	Username   string
	CreatedAt  time.Time
	OriginalID string // root post id in the source export
}

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID         string    `json:"id"`
	Score      float32   `json:"score"`
	Text       string    `json:"text"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	OriginalID string    `json:"original_id"`
}

// SearchFilter restricts a search to one username and/or a time window.
// Zero values mean unconstrained.
type SearchFilter struct {
	Username string
	Since    time.Time
	Until    time.Time
}

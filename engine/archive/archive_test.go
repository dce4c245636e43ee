package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tweetnest/tweetnest/engine/domain"
)

const combinedDoc = `{
  "account": {
    "accountId": "12345",
    "username": "alice",
    "accountDisplayName": "Alice Example"
  },
  "tweets": [
    {"tweet": {"id_str": "100", "full_text": "hello world", "created_at": "Mon Jan 01 10:00:00 +0000 2024", "user_id_str": "12345"}},
    {"tweet": {"id_str": "101", "full_text": "second post", "created_at": "Mon Jan 01 11:00:00 +0000 2024", "user_id_str": "12345", "in_reply_to_status_id_str": "100", "in_reply_to_user_id_str": "12345"}}
  ]
}`

func TestParseCombinedDocument(t *testing.T) {
	ex, err := Parse([]byte(combinedDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ex.Account.Username != "alice" || ex.Account.AccountID != "12345" {
		t.Errorf("account = %+v", ex.Account)
	}
	if len(ex.Posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(ex.Posts))
	}
	p := ex.Posts[1]
	if p.ID != "101" || p.InReplyToID != "100" || p.InReplyToAuthorID != "12345" {
		t.Errorf("post = %+v", p)
	}
	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if !p.CreatedAt.Equal(want) {
		t.Errorf("created_at = %v, want %v", p.CreatedAt, want)
	}
}

func TestParseWrapperArray(t *testing.T) {
	data := `[
	  {"tweet": {"id_str": "1", "full_text": "a", "created_at": "Mon Jan 01 10:00:00 +0000 2024"}},
	  {"tweet": {"id_str": "2", "full_text": "b", "created_at": "Mon Jan 01 10:01:00 +0000 2024"}}
	]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ex.Posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(ex.Posts))
	}
	if ex.Account.Username != "" {
		t.Errorf("bare array should have no account, got %q", ex.Account.Username)
	}
}

func TestParseBareTweetArray(t *testing.T) {
	data := `[{"id_str": "1", "full_text": "no wrapper", "created_at": "2024-01-01T10:00:00Z"}]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ex.Posts) != 1 || ex.Posts[0].FullText != "no wrapper" {
		t.Fatalf("posts = %+v", ex.Posts)
	}
}

func TestParseAssignmentPrefix(t *testing.T) {
	data := `window.YTD.tweets.part0 = [
	  {"tweet": {"id_str": "1", "full_text": "a", "created_at": "Mon Jan 01 10:00:00 +0000 2024"}}
	]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ex.Posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(ex.Posts))
	}
}

func TestParseRFC3339Fallback(t *testing.T) {
	data := `[{"id_str": "1", "full_text": "a", "created_at": "2024-06-15T08:30:00Z"}]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	if !ex.Posts[0].CreatedAt.Equal(want) {
		t.Errorf("created_at = %v, want %v", ex.Posts[0].CreatedAt, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty array", `[]`, domain.ErrEmptyArchive},
		{"missing id", `[{"full_text": "a", "created_at": "2024-01-01T10:00:00Z"}]`, domain.ErrMissingPostID},
		{"bad timestamp", `[{"id_str": "1", "full_text": "a", "created_at": "not a date"}]`, domain.ErrBadTimestamp},
		{"missing timestamp", `[{"id_str": "1", "full_text": "a"}]`, domain.ErrBadTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseNotJSON(t *testing.T) {
	if _, err := Parse([]byte("definitely not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseIDFallback(t *testing.T) {
	data := `[{"id": "42", "full_text": "id without _str", "created_at": "2024-01-01T10:00:00Z"}]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ex.Posts[0].ID != "42" {
		t.Errorf("id = %q, want 42", ex.Posts[0].ID)
	}
}

func TestParseURLEntities(t *testing.T) {
	data := `[{"id_str": "1", "full_text": "link https://t.co/x", "created_at": "2024-01-01T10:00:00Z",
	  "entities": {"urls": [{"url": "https://t.co/x", "expanded_url": "https://example.com/page", "display_url": "example.com/page"}]}}]`
	ex, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	urls := ex.Posts[0].URLs
	if len(urls) != 1 || urls[0].ExpandedURL != "https://example.com/page" {
		t.Errorf("urls = %+v", urls)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(combinedDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	ex, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(ex.Posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(ex.Posts))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSortPostsAscending(t *testing.T) {
	ts := func(min int) time.Time { return time.Date(2024, 1, 1, 0, min, 0, 0, time.UTC) }
	posts := []domain.Post{
		{ID: "3", CreatedAt: ts(2)},
		{ID: "1", CreatedAt: ts(0)},
		{ID: "2b", CreatedAt: ts(1)},
		{ID: "2a", CreatedAt: ts(1)}, // tie broken by id
	}
	SortPostsAscending(posts)
	want := []string{"1", "2a", "2b", "3"}
	for i, id := range want {
		if posts[i].ID != id {
			t.Errorf("posts[%d].ID = %q, want %q", i, posts[i].ID, id)
		}
	}
}

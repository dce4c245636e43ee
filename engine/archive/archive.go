// Package archive parses Twitter/X data-export files into domain posts.
// It accepts the combined {account, tweets} document, the export's bare
// array of {"tweet": {...}} wrappers, or a bare array of tweets, with or
// without the "window.YTD.<name>.part0 =" JS assignment prefix the official
// export ships with. Zip extraction is out of scope; callers hand over the
// already-extracted JSON.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tweetnest/tweetnest/engine/domain"
)

// twitterTimeLayout is the ruby-style timestamp the export uses.
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Export is a parsed source export: the owning account plus its posts.
type Export struct {
	Account domain.Account
	Posts   []domain.Post
}

// LoadFile reads and parses an export file.
func LoadFile(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	ex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("archive: parse %s: %w", path, err)
	}
	return ex, nil
}

// Parse decodes export bytes in any of the accepted shapes.
func Parse(data []byte) (*Export, error) {
	data = stripAssignmentPrefix(data)

	// Combined document first: {"account": ..., "tweets": [...]}.
	var combined rawExport
	if err := json.Unmarshal(data, &combined); err == nil && len(combined.Tweets) > 0 {
		return buildExport(combined.Account, combined.Tweets)
	}

	// Bare array of wrappers or tweets.
	var items []rawWrapper
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("archive: decode: %w", err)
	}
	return buildExport(nil, items)
}

func buildExport(acct *rawAccount, items []rawWrapper) (*Export, error) {
	ex := &Export{}
	if acct != nil {
		ex.Account = domain.Account{
			AccountID:   acct.AccountID,
			Username:    acct.Username,
			DisplayName: acct.DisplayName,
		}
	}

	for _, item := range items {
		raw := item.rawTweet
		if item.Tweet != nil {
			raw = *item.Tweet
		}
		post, err := toPost(raw)
		if err != nil {
			return nil, err
		}
		ex.Posts = append(ex.Posts, post)
	}
	if len(ex.Posts) == 0 {
		return nil, domain.ErrEmptyArchive
	}
	return ex, nil
}

func toPost(raw rawTweet) (domain.Post, error) {
	id := raw.IDStr
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		return domain.Post{}, domain.ErrMissingPostID
	}

	created, err := parseTime(raw.CreatedAt)
	if err != nil {
		return domain.Post{}, fmt.Errorf("archive: post %s: %w", id, err)
	}

	urls := make([]domain.URLEntity, 0, len(raw.Entities.URLs))
	for _, u := range raw.Entities.URLs {
		urls = append(urls, domain.URLEntity{
			URL:         u.URL,
			ExpandedURL: u.ExpandedURL,
			DisplayURL:  u.DisplayURL,
		})
	}

	return domain.Post{
		ID:                id,
		Text:              raw.Text,
		FullText:          raw.FullText,
		CreatedAt:         created,
		AuthorID:          raw.UserIDStr,
		InReplyToID:       raw.InReplyToStatusIDStr,
		InReplyToAuthorID: raw.InReplyToUserIDStr,
		URLs:              urls,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, domain.ErrBadTimestamp
	}
	if t, err := time.Parse(twitterTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrBadTimestamp, s)
}

// stripAssignmentPrefix removes the "window.YTD.tweets.part0 =" prefix the
// official export prepends to make each file loadable as a script.
func stripAssignmentPrefix(data []byte) []byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("window.YTD.")) {
		return data
	}
	if idx := bytes.IndexByte(trimmed, '='); idx >= 0 {
		return bytes.TrimLeft(trimmed[idx+1:], " \t\r\n")
	}
	return data
}

// SortPostsAscending orders posts oldest-first, the precondition for thread
// construction (parents before children). Ties fall back to id order, which
// is itself chronological for snowflake ids.
func SortPostsAscending(posts []domain.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
}

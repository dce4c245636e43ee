// Package thread reconstructs self-reply chains from a flat post set and
// collapses each chain into one embeddable text blob.
package thread

import (
	"strings"

	"github.com/tweetnest/tweetnest/engine/domain"
	"github.com/tweetnest/tweetnest/engine/preprocess"
)

// link is the derived parent/next relation for one post. Kept in a side
// table so the caller's posts are never mutated.
type link struct {
	parentID string
	nextID   string
}

// Build links reply chains in posts into ordered threads and returns one
// EmbeddableThread per root. Posts must be sorted ascending by CreatedAt so
// parents precede children. Threads whose text cleans to empty are dropped.
//
// Threading semantics: a parent holds at most one successor. The first
// reply processed keeps the chain; any further reply to the same parent is
// detached and becomes its own thread root. Every post therefore lands in
// exactly one thread. (A post can legitimately have several reply branches
// in source data; fanning those out as independent threads is the preserved
// behavior, not an accident.)
func Build(posts []domain.Post, username string, opts preprocess.Options) ([]domain.EmbeddableThread, error) {
	byID := make(map[string]domain.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	links := make(map[string]*link, len(posts))
	at := func(id string) *link {
		l, ok := links[id]
		if !ok {
			l = &link{}
			links[id] = l
		}
		return l
	}

	for _, p := range posts {
		if p.InReplyToID == "" {
			continue
		}
		if _, ok := byID[p.InReplyToID]; !ok {
			continue // parent outside the batch, post stays a root
		}
		parent := at(p.InReplyToID)
		if parent.nextID != "" {
			continue // parent already linked, this reply becomes its own root
		}
		parent.nextID = p.ID
		at(p.ID).parentID = p.InReplyToID
	}

	var threads []domain.EmbeddableThread
	for _, root := range posts {
		if at(root.ID).parentID != "" {
			continue
		}
		text, err := collapse(root, byID, links, opts)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		threads = append(threads, domain.EmbeddableThread{
			ID:        root.ID,
			Text:      text,
			Username:  username,
			CreatedAt: root.CreatedAt,
		})
	}
	return threads, nil
}

// collapse walks the successor chain from root and joins the cleaned member
// texts with single spaces. Parent ids chronologically precede children in
// real exports so cycles are impossible; the visited set aborts on corrupt
// input anyway.
func collapse(root domain.Post, byID map[string]domain.Post, links map[string]*link, opts preprocess.Options) (string, error) {
	var parts []string
	visited := make(map[string]bool)

	p := root
	for {
		if visited[p.ID] {
			return "", domain.NewValidationError("id", p.ID, domain.ErrThreadCycle)
		}
		visited[p.ID] = true

		if cleaned := preprocess.Clean(p.EffectiveText(), p.URLs, opts); cleaned != "" {
			parts = append(parts, cleaned)
		}
		if !opts.CombineThread {
			break
		}

		l := links[p.ID]
		if l == nil || l.nextID == "" {
			break
		}
		next, ok := byID[l.nextID]
		if !ok {
			break
		}
		p = next
	}
	return strings.Join(parts, " "), nil
}

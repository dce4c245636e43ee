// Package history persists the import-history ledger: one entry per source
// username recording the last successful import. The ledger is the dedup
// fast path; losing it is safe (the importer falls back to sampling the
// index), so every failure mode here degrades to "empty ledger" instead of
// aborting an import.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tweetnest/tweetnest/engine/domain"
)

// Ledger is a JSON file mapping lowercase(username) to its history entry.
// Writes are read-modify-write against the file under a process-local mutex
// so concurrent importers for different usernames don't clobber each other's
// entries.
type Ledger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New creates a ledger backed by the file at path. The file need not exist.
func New(path string) *Ledger {
	return &Ledger{path: path, now: time.Now}
}

// Get returns the entry for username, loading the file fresh.
func (l *Ledger) Get(username string) (domain.ImportHistoryEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.load()
	e, ok := entries[Key(username)]
	return e, ok
}

// All returns every entry in the ledger.
func (l *Ledger) All() map[string]domain.ImportHistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Apply merges one successful import into the ledger: lastImportDate is
// overwritten, lastTweetDate only advances (monotonic), tweetCount
// accumulates. The full file is re-read immediately before writing so
// entries for other usernames written meanwhile survive.
func (l *Ledger) Apply(username string, importDate, lastTweetDate time.Time, added int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	key := Key(username)
	e := entries[key]
	e.Username = username
	e.LastImportDate = importDate
	if lastTweetDate.After(e.LastTweetDate) {
		e.LastTweetDate = lastTweetDate
	}
	e.TweetCount += added
	entries[key] = e

	return l.save(entries)
}

// Key normalizes a username to its ledger key.
func Key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// load reads the ledger file. A missing file is an empty ledger; a corrupt
// file is moved aside with a timestamp suffix and treated as empty.
func (l *Ledger) load() map[string]domain.ImportHistoryEntry {
	entries := make(map[string]domain.ImportHistoryEntry)

	data, err := os.ReadFile(l.path)
	if err != nil {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", l.path, l.now().UTC().Format("20060102T150405"))
		_ = os.Rename(l.path, backup)
		return make(map[string]domain.ImportHistoryEntry)
	}
	return entries
}

// save writes the full map atomically (temp file + rename).
func (l *Ledger) save(entries map[string]domain.ImportHistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("history: mkdir %s: %w", dir, err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}

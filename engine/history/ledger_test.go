package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "history.json"))
}

func TestGetMissing(t *testing.T) {
	l := tempLedger(t)
	if _, ok := l.Get("nobody"); ok {
		t.Fatal("expected no entry in fresh ledger")
	}
}

func TestApplyAndGet(t *testing.T) {
	l := tempLedger(t)
	importDate := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tweetDate := time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)

	if err := l.Apply("Alice", importDate, tweetDate, 42); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	e, ok := l.Get("alice") // lookup is case-insensitive
	if !ok {
		t.Fatal("entry not found")
	}
	if e.Username != "Alice" || e.TweetCount != 42 {
		t.Errorf("entry = %+v", e)
	}
	if !e.LastTweetDate.Equal(tweetDate) || !e.LastImportDate.Equal(importDate) {
		t.Errorf("dates = %v / %v", e.LastImportDate, e.LastTweetDate)
	}
}

func TestApplyMergesMonotonically(t *testing.T) {
	l := tempLedger(t)
	d1 := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := l.Apply("alice", d2, d2, 10); err != nil {
		t.Fatal(err)
	}
	// A later import of an older batch: lastImportDate moves forward,
	// lastTweetDate must not move back, counts accumulate.
	d3 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := l.Apply("alice", d3, d1, 5); err != nil {
		t.Fatal(err)
	}

	e, _ := l.Get("alice")
	if !e.LastTweetDate.Equal(d2) {
		t.Errorf("lastTweetDate = %v, want %v (monotonic)", e.LastTweetDate, d2)
	}
	if !e.LastImportDate.Equal(d3) {
		t.Errorf("lastImportDate = %v, want %v", e.LastImportDate, d3)
	}
	if e.TweetCount != 15 {
		t.Errorf("tweetCount = %d, want 15", e.TweetCount)
	}
}

func TestApplyKeepsOtherEntries(t *testing.T) {
	l := tempLedger(t)
	now := time.Now().UTC()
	if err := l.Apply("alice", now, now, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Apply("bob", now, now, 2); err != nil {
		t.Fatal(err)
	}

	all := l.All()
	if len(all) != 2 {
		t.Fatalf("got %d entries, want 2", len(all))
	}
	if _, ok := all["alice"]; !ok {
		t.Error("alice entry lost")
	}
}

func TestKey(t *testing.T) {
	if Key("  Alice ") != "alice" {
		t.Errorf("Key = %q", Key("  Alice "))
	}
}

func TestCorruptFileMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(path)
	l.now = func() time.Time { return time.Date(2024, 7, 1, 10, 30, 0, 0, time.UTC) }

	if _, ok := l.Get("alice"); ok {
		t.Fatal("corrupt ledger should read as empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			backup = e.Name()
		}
	}
	if backup == "" {
		t.Fatal("corrupt file was not moved aside")
	}
	if !strings.Contains(backup, "20240701T103000") {
		t.Errorf("backup name %q missing timestamp", backup)
	}

	// The ledger is usable again after the move.
	now := time.Now().UTC()
	if err := l.Apply("alice", now, now, 1); err != nil {
		t.Fatalf("Apply after corruption: %v", err)
	}
	if _, ok := l.Get("alice"); !ok {
		t.Fatal("entry missing after recovery")
	}
}

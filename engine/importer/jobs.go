package importer

import (
	"sort"
	"sync"

	"github.com/tweetnest/tweetnest/engine/domain"
)

// JobStore holds client-visible import jobs. Injected into the Importer so
// tests can swap it and a persistent implementation can follow later.
type JobStore interface {
	Put(job domain.ImportJob)
	Get(id string) (domain.ImportJob, bool)
	List() []domain.ImportJob
}

// MemoryJobStore is the in-process JobStore. Jobs do not survive a restart;
// re-triggering the import is the documented recovery path.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.ImportJob
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.ImportJob)}
}

// Put stores or replaces a job record.
func (s *MemoryJobStore) Put(job domain.ImportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns the job with the given id.
func (s *MemoryJobStore) Get(id string) (domain.ImportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// List returns all jobs, newest first.
func (s *MemoryJobStore) List() []domain.ImportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ImportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

package runner

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/reactmesh/engine"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run record.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is the stored view of a run.
type Record struct {
	ID         string            `json:"id"`
	Agent      string            `json:"agent"`
	Request    string            `json:"request"`
	Status     Status            `json:"status"`
	Result     *engine.RunResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Done reports whether the run has finished.
func (r *Record) Done() bool { return r.Status != StatusRunning }

func (r *Record) clone() *Record {
	cp := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Store persists run records.
type Store interface {
	Save(r *Record) error
	Get(id string) (*Record, error)
	List() ([]*Record, error)
}

// InMemoryStore is a volatile Store keeping records in a process local map.
// Records are cloned on the way in and out. When MaxRecords is reached the
// oldest finished record is evicted.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[string]*Record
	maxRecords int
}

// NewInMemoryStore constructs an empty store. maxRecords <= 0 keeps every
// record.
func NewInMemoryStore(maxRecords int) *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record), maxRecords: maxRecords}
}

// Save inserts or replaces a record.
func (s *InMemoryStore) Save(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ID]; !exists && s.maxRecords > 0 && len(s.records) >= s.maxRecords {
		s.evictLocked()
	}

	s.records[r.ID] = r.clone()

	return nil
}

// Get returns a copy of the record or ErrNotFound.
func (s *InMemoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	return r.clone(), nil
}

// List returns copies of all records, newest first.
func (s *InMemoryStore) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

// evictLocked drops the oldest finished record; caller holds the write lock.
func (s *InMemoryStore) evictLocked() {
	var oldest *Record
	for _, r := range s.records {
		if r.Done() && (oldest == nil || r.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = r
		}
	}

	if oldest != nil {
		delete(s.records, oldest.ID)
	}
}

// Package memory is an in-process JobStore for the CLI and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
)

type statTotal struct {
	amount   int64
	duration time.Duration
}

// Store keeps jobs in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]store.Job
	stats map[string]statTotal
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:  make(map[string]store.Job),
		stats: make(map[string]statTotal),
		now:   time.Now,
	}
}

func (s *Store) CreateJob(ctx context.Context, job store.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = store.JobPending
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, update store.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	update.Apply(&job, s.now())
	s.jobs[id] = job
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.Job{}, store.ErrNotFound
	}
	return job, nil
}

// ListJobs returns the newest jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]store.Job, error) {
	s.mu.RLock()
	jobs := make([]store.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b store.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) AddProcessingTime(ctx context.Context, amount int, duration time.Duration, statType string) error {
	if amount <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.stats[statType]
	t.amount += int64(amount)
	t.duration += duration
	s.stats[statType] = t
	return nil
}

func (s *Store) PredictProcessingTime(ctx context.Context, amount int, statType string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.stats[statType]
	return store.Predict(t.amount, t.duration, amount), nil
}

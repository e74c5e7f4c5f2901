// Package storage provides the process-wide clone job registry.
package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/imitor/internal/models"
)

// ErrJobNotFound is returned when a job ID has no entry in the store
var ErrJobNotFound = fmt.Errorf("job not found")

// SnapshotWriter persists job snapshots out of band. Persistence failures are
// logged and never surfaced to callers; the in-memory map is authoritative.
type SnapshotWriter interface {
	Save(job *models.Job) error
	Delete(jobID string) error
}

// JobStore is the in-memory job registry. All mutations go through Update so
// concurrent writers to the same job serialize and readers only ever observe
// fully applied mutations.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.Job
	snapshots SnapshotWriter
	logger    arbor.ILogger
}

// NewJobStore creates an empty store. snapshots may be nil to disable
// write-through persistence.
func NewJobStore(snapshots SnapshotWriter, logger arbor.ILogger) *JobStore {
	return &JobStore{
		jobs:      make(map[string]*models.Job),
		snapshots: snapshots,
		logger:    logger,
	}
}

// Insert registers a new job. The store keeps its own copy.
func (s *JobStore) Insert(job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s already exists", job.ID)
	}
	stored := job.Clone()
	s.jobs[job.ID] = stored
	snapshot := stored.Clone()
	s.mu.Unlock()

	s.persist(snapshot)
	return nil
}

// Get returns a copy of the job, or ErrJobNotFound
func (s *JobStore) Get(jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

// Update applies mutate to the job under the store lock and returns a copy of
// the result. UpdatedAt is refreshed on every call.
func (s *JobStore) Update(jobID string, mutate func(*models.Job)) (*models.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	snapshot := job.Clone()
	s.mu.Unlock()

	s.persist(snapshot)
	return snapshot.Clone(), nil
}

// Delete removes a job from the store and its persisted snapshot
func (s *JobStore) Delete(jobID string) error {
	s.mu.Lock()
	if _, ok := s.jobs[jobID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	delete(s.jobs, jobID)
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Delete(jobID); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job snapshot")
		}
	}
	return nil
}

// List returns copies of all jobs, newest first
func (s *JobStore) List() []*models.Job {
	s.mu.RLock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (s *JobStore) persist(snapshot *models.Job) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(snapshot); err != nil && s.logger != nil {
		s.logger.Warn().Err(err).Str("job_id", snapshot.ID).Msg("Failed to persist job snapshot")
	}
}

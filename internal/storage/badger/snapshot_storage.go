package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/imitor/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SnapshotStorage persists job snapshots so completed clone records survive
// restarts. The in-memory store remains authoritative while the process runs;
// this is write-through only.
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a SnapshotStorage backed by the given connection
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) *SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

// Save upserts a job snapshot
func (s *SnapshotStorage) Save(job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job snapshot: %w", err)
	}
	return nil
}

// Get retrieves a persisted job snapshot by ID
func (s *SnapshotStorage) Get(jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job snapshot: %w", err)
	}
	return &job, nil
}

// List returns all persisted snapshots, newest first
func (s *SnapshotStorage) List() ([]*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list job snapshots: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// Delete removes a persisted snapshot. Missing snapshots are not an error.
func (s *SnapshotStorage) Delete(jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job snapshot: %w", err)
	}
	return nil
}

package interfaces

import (
	"context"

	"github.com/ternarybob/imitor/internal/models"
)

// JobStore is the process-wide registry of clone jobs.
// Update applies the mutator under the store's lock; concurrent updates to the
// same job serialize, and readers only ever see fully applied mutations.
type JobStore interface {
	Insert(job *models.Job) error
	Get(jobID string) (*models.Job, error)
	Update(jobID string, mutate func(*models.Job)) (*models.Job, error)
	Delete(jobID string) error
	List() []*models.Job
}

// JobOrchestrator owns the clone pipeline: it validates requests, registers
// jobs, and drives each job through its stages asynchronously.
type JobOrchestrator interface {
	CreateJob(ctx context.Context, req *models.CloneRequest) (*models.Job, error)
	GetJob(jobID string) (*models.Job, error)
	ListJobs() []*models.Job
}

package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/imitor/internal/models"
)

func newTestJob(id string) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:        id,
		URL:       "https://example.com",
		Model:     "agentic",
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestJobStore_InsertAndGet(t *testing.T) {
	store := NewJobStore(nil, nil)

	require.NoError(t, store.Insert(newTestJob("job_1")))

	job, err := store.Get("job_1")
	require.NoError(t, err)
	assert.Equal(t, "job_1", job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestJobStore_InsertDuplicateFails(t *testing.T) {
	store := NewJobStore(nil, nil)

	require.NoError(t, store.Insert(newTestJob("job_1")))
	assert.Error(t, store.Insert(newTestJob("job_1")))
}

func TestJobStore_GetUnknownReturnsNotFound(t *testing.T) {
	store := NewJobStore(nil, nil)

	_, err := store.Get("job_missing")
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestJobStore_GetReturnsCopy(t *testing.T) {
	store := NewJobStore(nil, nil)
	require.NoError(t, store.Insert(newTestJob("job_1")))

	first, err := store.Get("job_1")
	require.NoError(t, err)
	first.Status = models.JobStatusFailed
	first.Error = "mutated by caller"

	second, err := store.Get("job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, second.Status)
	assert.Empty(t, second.Error)
}

func TestJobStore_UpdateAppliesMutatorAtomically(t *testing.T) {
	store := NewJobStore(nil, nil)
	require.NoError(t, store.Insert(newTestJob("job_1")))

	updated, err := store.Update("job_1", func(j *models.Job) {
		j.Status = models.JobStatusScraping
		j.Progress = "Scraping 3 pages"
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScraping, updated.Status)
	assert.Equal(t, "Scraping 3 pages", updated.Progress)

	stored, err := store.Get("job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScraping, stored.Status)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestJobStore_UpdateUnknownReturnsNotFound(t *testing.T) {
	store := NewJobStore(nil, nil)

	_, err := store.Update("job_missing", func(j *models.Job) {})
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestJobStore_ConcurrentUpdatesSerialize(t *testing.T) {
	store := NewJobStore(nil, nil)
	job := newTestJob("job_1")
	job.MaxPages = 0
	require.NoError(t, store.Insert(job))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Update("job_1", func(j *models.Job) {
				j.MaxPages++
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := store.Get("job_1")
	require.NoError(t, err)
	assert.Equal(t, workers, final.MaxPages)
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	store := NewJobStore(nil, nil)

	older := newTestJob("job_old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newTestJob("job_new")

	require.NoError(t, store.Insert(older))
	require.NoError(t, store.Insert(newer))

	jobs := store.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "job_new", jobs[0].ID)
	assert.Equal(t, "job_old", jobs[1].ID)
}

func TestJobStore_Delete(t *testing.T) {
	store := NewJobStore(nil, nil)
	require.NoError(t, store.Insert(newTestJob("job_1")))

	require.NoError(t, store.Delete("job_1"))

	_, err := store.Get("job_1")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.True(t, errors.Is(store.Delete("job_1"), ErrJobNotFound))
}

type recordingSnapshotWriter struct {
	mu     sync.Mutex
	saved  []string
	erased []string
}

func (r *recordingSnapshotWriter) Save(job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, job.ID)
	return nil
}

func (r *recordingSnapshotWriter) Delete(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.erased = append(r.erased, jobID)
	return nil
}

func TestJobStore_WritesThroughToSnapshots(t *testing.T) {
	writer := &recordingSnapshotWriter{}
	store := NewJobStore(writer, nil)

	require.NoError(t, store.Insert(newTestJob("job_1")))
	_, err := store.Update("job_1", func(j *models.Job) { j.Status = models.JobStatusCompleted })
	require.NoError(t, err)
	require.NoError(t, store.Delete("job_1"))

	assert.Equal(t, []string{"job_1", "job_1"}, writer.saved)
	assert.Equal(t, []string{"job_1"}, writer.erased)
}

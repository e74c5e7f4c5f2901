package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a clone job
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDiscovering JobStatus = "discovering"
	JobStatusScraping    JobStatus = "scraping"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// IsTerminal returns true when the status admits no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// statusRank orders the forward progression of the pipeline.
// failed is reachable from any non-terminal state and is not ranked.
var statusRank = map[JobStatus]int{
	JobStatusPending:     0,
	JobStatusDiscovering: 1,
	JobStatusScraping:    2,
	JobStatusProcessing:  3,
	JobStatusCompleted:   4,
}

// CanTransition reports whether moving from one status to another is legal.
// Forward-only: a job never re-enters an earlier state, and terminal states
// admit no exit. Stages may be skipped (single-page jobs never discover).
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobStatusFailed {
		return true
	}

	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}

	return toRank > fromRank
}

// Job is the record tracked for every clone request. Snapshots of it are what
// the API returns; the authoritative copy lives in the job store and is only
// mutated through the store's atomic update.
type Job struct {
	ID             string          `json:"job_id" badgerhold:"key"`
	URL            string          `json:"url"`
	Model          string          `json:"model"`
	FullSite       bool            `json:"full_site"`
	MaxPages       int             `json:"max_pages"`
	IncludeAssets  bool            `json:"include_assets"`
	Status         JobStatus       `json:"status"`
	Progress       string          `json:"progress,omitempty"`
	Error          string          `json:"error,omitempty"`
	Result         *CloneResult    `json:"result,omitempty"`
	FullSiteResult *FullSiteResult `json:"full_site_result,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers never observe partial writes
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	copied := *j
	if j.Result != nil {
		result := *j.Result
		copied.Result = &result
	}
	if j.FullSiteResult != nil {
		copied.FullSiteResult = j.FullSiteResult.Clone()
	}
	return &copied
}

// CloneRequest is the payload accepted by the job-creation endpoint
type CloneRequest struct {
	URL           string `json:"url" validate:"required,url"`
	Model         string `json:"model,omitempty"`
	FullSite      bool   `json:"full_site,omitempty"`
	MaxPages      int    `json:"max_pages,omitempty" validate:"omitempty,gt=0,lte=100"`
	IncludeAssets bool   `json:"include_assets,omitempty"`
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_ForwardOnly(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"pending to discovering", JobStatusPending, JobStatusDiscovering, true},
		{"pending to scraping skips discovery", JobStatusPending, JobStatusScraping, true},
		{"discovering to scraping", JobStatusDiscovering, JobStatusScraping, true},
		{"scraping to processing", JobStatusScraping, JobStatusProcessing, true},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, true},
		{"scraping back to discovering", JobStatusScraping, JobStatusDiscovering, false},
		{"processing back to pending", JobStatusProcessing, JobStatusPending, false},
		{"completed to processing", JobStatusCompleted, JobStatusProcessing, false},
		{"same status is not a transition", JobStatusScraping, JobStatusScraping, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransition_FailedFromAnyNonTerminal(t *testing.T) {
	for _, from := range []JobStatus{JobStatusPending, JobStatusDiscovering, JobStatusScraping, JobStatusProcessing} {
		assert.True(t, CanTransition(from, JobStatusFailed), "failed should be reachable from %s", from)
	}
	assert.False(t, CanTransition(JobStatusCompleted, JobStatusFailed))
	assert.False(t, CanTransition(JobStatusFailed, JobStatusFailed))
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
}

func TestJob_Clone_IsDeep(t *testing.T) {
	job := &Job{
		ID:     "job_abc",
		Status: JobStatusCompleted,
		Result: &CloneResult{HTML: "<html></html>", ModelUsed: "agentic"},
		FullSiteResult: &FullSiteResult{
			BaseURL: "https://example.com",
			Pages:   []PageResult{{URL: "https://example.com/", Path: "index.html"}},
			Sitemap: []string{"https://example.com/"},
		},
	}

	copied := job.Clone()
	require.NotNil(t, copied)

	copied.Result.HTML = "mutated"
	copied.FullSiteResult.Pages[0].Path = "other.html"
	copied.FullSiteResult.Sitemap[0] = "mutated"

	assert.Equal(t, "<html></html>", job.Result.HTML)
	assert.Equal(t, "index.html", job.FullSiteResult.Pages[0].Path)
	assert.Equal(t, "https://example.com/", job.FullSiteResult.Sitemap[0])
}

// Package retention implements the optional eviction sweep for terminal
// clone jobs. Disabled by default: jobs and their log histories live for the
// process lifetime unless a retention schedule is configured.
package retention

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
)

// Sweeper evicts completed and failed jobs older than the configured TTL,
// along with their log streams.
type Sweeper struct {
	store  interfaces.JobStore
	hub    interfaces.LogHub
	ttl    time.Duration
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewSweeper builds a sweeper from configuration. Returns nil when retention
// is disabled.
func NewSweeper(config *common.RetentionConfig, store interfaces.JobStore, hub interfaces.LogHub, logger arbor.ILogger) (*Sweeper, error) {
	if !config.Enabled {
		return nil, nil
	}

	ttl, err := time.ParseDuration(config.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid retention ttl %q: %w", config.TTL, err)
	}

	s := &Sweeper{
		store:  store,
		hub:    hub,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger,
	}

	if _, err := s.cron.AddFunc(config.Schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", config.Schedule, err)
	}

	return s, nil
}

// Start begins the scheduled sweeps
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info().Dur("ttl", s.ttl).Msg("Retention sweep scheduled")
}

// Stop halts the schedule, waiting for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep evicts terminal jobs whose last update is older than the TTL
func (s *Sweeper) Sweep() {
	cutoff := time.Now().UTC().Add(-s.ttl)
	evicted := 0

	for _, job := range s.store.List() {
		if !job.Status.IsTerminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to evict job")
			continue
		}
		s.hub.Drop(job.ID)
		evicted++
	}

	if evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Msg("Retention sweep evicted terminal jobs")
	}
}

// Package orchestrator drives clone jobs through their pipeline stages and
// streams progress to the log hub.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/models"
	"github.com/ternarybob/imitor/internal/services/archive"
	"github.com/ternarybob/imitor/internal/services/generator"
)

// Service implements interfaces.JobOrchestrator
type Service struct {
	store      interfaces.JobStore
	hub        interfaces.LogHub
	discoverer interfaces.PageDiscoverer
	scraper    interfaces.PageScraper
	generator  interfaces.CloneGenerator
	embedder   interfaces.AssetEmbedder
	config     *common.CloneConfig
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewService wires the pipeline collaborators together
func NewService(
	store interfaces.JobStore,
	hub interfaces.LogHub,
	discoverer interfaces.PageDiscoverer,
	scraper interfaces.PageScraper,
	gen interfaces.CloneGenerator,
	embedder interfaces.AssetEmbedder,
	config *common.CloneConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		store:      store,
		hub:        hub,
		discoverer: discoverer,
		scraper:    scraper,
		generator:  gen,
		embedder:   embedder,
		config:     config,
		validate:   validator.New(),
		logger:     logger,
	}
}

// CreateJob validates the request, registers the job, and launches its
// pipeline asynchronously. The returned snapshot has status pending.
func (s *Service) CreateJob(ctx context.Context, req *models.CloneRequest) (*models.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid clone request: %w", err)
	}

	url, err := common.NormalizeURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid clone request: %w", err)
	}

	model := req.Model
	if model == "" {
		model = s.config.DefaultModel
	}
	if !generator.KnownModel(model) {
		return nil, fmt.Errorf("invalid clone request: unknown model %q", model)
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 0 // discovery applies its configured default
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:            common.NewJobID(),
		URL:           url,
		Model:         model,
		FullSite:      req.FullSite,
		MaxPages:      maxPages,
		IncludeAssets: req.IncludeAssets,
		Status:        models.JobStatusPending,
		Progress:      "Job queued",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Insert(job); err != nil {
		return nil, fmt.Errorf("failed to register job: %w", err)
	}
	s.hub.Open(job.ID)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("url", url).
		Str("model", model).
		Bool("full_site", req.FullSite).
		Msg("Clone job created")

	common.SafeGo(s.logger, "cloneJob:"+job.ID, func() {
		s.run(job.ID)
	})

	return job.Clone(), nil
}

// GetJob returns a snapshot of the job
func (s *Service) GetJob(jobID string) (*models.Job, error) {
	return s.store.Get(jobID)
}

// ListJobs returns snapshots of all jobs, newest first
func (s *Service) ListJobs() []*models.Job {
	return s.store.List()
}

// run executes the full pipeline for one job. The log stream is closed with
// its terminal sentinel on every exit path, panics included (SafeGo logs the
// panic, the deferred close still runs before it unwinds).
func (s *Service) run(jobID string) {
	defer s.hub.Close(jobID)

	job, err := s.store.Get(jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Job vanished before pipeline start")
		return
	}

	ctx := context.Background()

	if job.FullSite {
		s.runFullSite(ctx, job)
	} else {
		s.runSinglePage(ctx, job)
	}
}

// advance writes the status to the store, then publishes the narrative line.
// Store write strictly precedes the log signal so a subscriber that reacts to
// the line always reads the new status.
func (s *Service) advance(jobID string, status models.JobStatus, progress string) bool {
	_, err := s.store.Update(jobID, func(j *models.Job) {
		if !models.CanTransition(j.Status, status) {
			return
		}
		j.Status = status
		j.Progress = progress
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to advance job status")
		return false
	}
	s.hub.Publish(jobID, progress)
	return true
}

// fail marks the job failed and publishes the error before the stream closes
func (s *Service) fail(jobID string, cause error) {
	message := cause.Error()
	_, err := s.store.Update(jobID, func(j *models.Job) {
		if !models.CanTransition(j.Status, models.JobStatusFailed) {
			return
		}
		j.Status = models.JobStatusFailed
		j.Error = message
		j.Progress = "Clone failed"
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job failed")
	}
	s.hub.Publish(jobID, fmt.Sprintf("Error: %s", message))

	s.logger.Warn().Str("job_id", jobID).Str("error", message).Msg("Clone job failed")
}

// progress updates the progress text without a status change
func (s *Service) progress(jobID, text string) {
	_, err := s.store.Update(jobID, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		j.Progress = text
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to update job progress")
		return
	}
	s.hub.Publish(jobID, text)
}

func (s *Service) runSinglePage(ctx context.Context, job *models.Job) {
	if !s.advance(job.ID, models.JobStatusScraping, fmt.Sprintf("Scraping %s", job.URL)) {
		return
	}

	scrape, err := s.scrapePage(ctx, job.URL)
	if err != nil {
		s.fail(job.ID, fmt.Errorf("failed to scrape page: %w", err))
		return
	}
	s.progress(job.ID, fmt.Sprintf("Captured page (%d assets, %.1fs load)", scrape.Metadata.AssetCount, scrape.Metadata.LoadTime))

	if !s.advance(job.ID, models.JobStatusProcessing, fmt.Sprintf("Generating clone with model %s", job.Model)) {
		return
	}

	result, err := s.generatePage(ctx, job.ID, scrape, job.Model)
	if err != nil {
		s.fail(job.ID, fmt.Errorf("failed to generate clone: %w", err))
		return
	}

	if job.IncludeAssets {
		s.progress(job.ID, "Embedding page assets")
		result.HTML = s.embedAssets(ctx, job.ID, result.HTML, job.URL)
	}

	_, err = s.store.Update(job.ID, func(j *models.Job) {
		if !models.CanTransition(j.Status, models.JobStatusCompleted) {
			return
		}
		j.Status = models.JobStatusCompleted
		j.Progress = "Clone complete"
		j.Result = result
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to complete job")
		return
	}
	s.hub.Publish(job.ID, "Clone complete")

	s.logger.Info().
		Str("job_id", job.ID).
		Float64("processing_seconds", result.ProcessingTime).
		Msg("Single-page clone completed")
}

func (s *Service) runFullSite(ctx context.Context, job *models.Job) {
	startTime := time.Now()

	// Stage: discovery
	if !s.advance(job.ID, models.JobStatusDiscovering, fmt.Sprintf("Discovering pages on %s", job.URL)) {
		return
	}

	pages, err := s.discoverPages(ctx, job)
	if err != nil {
		s.fail(job.ID, fmt.Errorf("site discovery failed: %w", err))
		return
	}
	s.progress(job.ID, fmt.Sprintf("Discovered %d pages", len(pages)))

	// Stage: scraping
	if !s.advance(job.ID, models.JobStatusScraping, fmt.Sprintf("Scraping %d pages", len(pages))) {
		return
	}

	scrapes := s.scrapePages(ctx, job.ID, pages)
	if len(scrapes) == 0 {
		s.fail(job.ID, fmt.Errorf("all %d pages failed to scrape", len(pages)))
		return
	}
	s.progress(job.ID, fmt.Sprintf("Scraped %d of %d pages", len(scrapes), len(pages)))

	// Stage: generation
	if !s.advance(job.ID, models.JobStatusProcessing, fmt.Sprintf("Generating %d pages with model %s", len(scrapes), job.Model)) {
		return
	}

	pagePaths := make(map[string]string, len(scrapes))
	for _, scrape := range scrapes {
		pagePaths[scrape.URL] = common.PagePath(scrape.URL)
	}

	var (
		results     []models.PageResult
		totalAssets int
	)
	for i, scrape := range scrapes {
		s.progress(job.ID, fmt.Sprintf("Generating page %d of %d: %s", i+1, len(scrapes), scrape.URL))

		generated, err := s.generatePage(ctx, job.ID, scrape, job.Model)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", scrape.URL).Msg("Page generation failed, skipping page")
			s.hub.Publish(job.ID, fmt.Sprintf("Warning: skipping %s (%s)", scrape.URL, err))
			continue
		}

		html, err := archive.RewriteLinks(generated.HTML, scrape.URL, pagePaths)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", scrape.URL).Msg("Link rewriting failed, keeping original links")
			html = generated.HTML
		}

		if job.IncludeAssets {
			html = s.embedAssets(ctx, job.ID, html, scrape.URL)
		}

		results = append(results, models.PageResult{
			URL:        scrape.URL,
			Path:       pagePaths[scrape.URL],
			HTML:       html,
			Screenshot: scrape.Screenshot,
			Metadata:   scrape.Metadata,
		})
		totalAssets += scrape.Metadata.AssetCount
	}

	if len(results) == 0 {
		s.fail(job.ID, fmt.Errorf("all %d pages failed to generate", len(scrapes)))
		return
	}

	// Sitemap lists every discovered page; comparing its length against
	// len(Pages) exposes how many pages were dropped along the way.
	sitemap := make([]string, len(pages))
	copy(sitemap, pages)

	siteResult := &models.FullSiteResult{
		BaseURL:     job.URL,
		Pages:       results,
		Sitemap:     sitemap,
		TotalPages:  len(results),
		TotalAssets: totalAssets,
		CloneTime:   time.Since(startTime).Seconds(),
		ModelUsed:   job.Model,
	}

	_, err = s.store.Update(job.ID, func(j *models.Job) {
		if !models.CanTransition(j.Status, models.JobStatusCompleted) {
			return
		}
		j.Status = models.JobStatusCompleted
		j.Progress = fmt.Sprintf("Cloned %d pages", len(results))
		j.FullSiteResult = siteResult
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to complete job")
		return
	}
	s.hub.Publish(job.ID, fmt.Sprintf("Clone complete: %d of %d pages", len(results), len(pages)))

	s.logger.Info().
		Str("job_id", job.ID).
		Int("pages", len(results)).
		Float64("clone_seconds", siteResult.CloneTime).
		Msg("Full-site clone completed")
}

func (s *Service) discoverPages(ctx context.Context, job *models.Job) ([]string, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, s.timeout(s.config.DiscoverTimeout, 2*time.Minute))
	defer cancel()
	return s.discoverer.Discover(discoverCtx, job.URL, job.MaxPages)
}

func (s *Service) scrapePage(ctx context.Context, url string) (*models.ScrapeResult, error) {
	scrapeCtx, cancel := context.WithTimeout(ctx, s.timeout(s.config.ScrapeTimeout, time.Minute))
	defer cancel()
	return s.scraper.Scrape(scrapeCtx, url)
}

// embedAssets inlines external assets into generated HTML. Embedding failure
// keeps the unembedded HTML; like other per-unit failures it never fails the
// job.
func (s *Service) embedAssets(ctx context.Context, jobID, html, pageURL string) string {
	embedCtx, cancel := context.WithTimeout(ctx, s.timeout(s.config.AssetTimeout, 2*time.Minute))
	defer cancel()

	embedded, count, err := s.embedder.Embed(embedCtx, html, pageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Str("url", pageURL).Msg("Asset embedding failed, keeping original references")
		s.hub.Publish(jobID, fmt.Sprintf("Warning: could not embed assets for %s", pageURL))
		return html
	}
	s.hub.Publish(jobID, fmt.Sprintf("Embedded %d assets for %s", count, pageURL))
	return embedded
}

func (s *Service) generatePage(ctx context.Context, jobID string, scrape *models.ScrapeResult, model string) (*models.CloneResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout(s.config.GenerateTimeout, 3*time.Minute))
	defer cancel()

	emit := func(fragment string) {
		s.hub.PublishCode(jobID, fragment)
	}
	return s.generator.Generate(genCtx, scrape, model, emit)
}

// scrapePages fans page scraping out to a bounded worker pool. Failed pages
// are logged and dropped; the returned slice preserves discovery order.
func (s *Service) scrapePages(ctx context.Context, jobID string, pages []string) []*models.ScrapeResult {
	workers := s.config.ScrapeWorkers
	if workers <= 0 {
		workers = 3
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	type indexed struct {
		index int
		url   string
	}

	work := make(chan indexed)
	slots := make([]*models.ScrapeResult, len(pages))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		common.SafeGo(s.logger, fmt.Sprintf("scrapeWorker:%s", jobID), func() {
			defer wg.Done()
			for item := range work {
				scrape, err := s.scrapePage(ctx, item.url)
				if err != nil {
					s.logger.Warn().Err(err).Str("job_id", jobID).Str("url", item.url).Msg("Page scrape failed, skipping page")
					s.hub.Publish(jobID, fmt.Sprintf("Warning: failed to scrape %s", item.url))
					continue
				}
				slots[item.index] = scrape
				s.hub.Publish(jobID, fmt.Sprintf("Scraped %s", item.url))
			}
		})
	}

	for i, url := range pages {
		work <- indexed{index: i, url: url}
	}
	close(work)
	wg.Wait()

	results := make([]*models.ScrapeResult, 0, len(pages))
	for _, scrape := range slots {
		if scrape != nil {
			results = append(results, scrape)
		}
	}
	return results
}

func (s *Service) timeout(configured, fallback time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return fallback
}

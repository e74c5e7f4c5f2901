package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/logs"
	"github.com/ternarybob/imitor/internal/models"
	"github.com/ternarybob/imitor/internal/storage"
)

type fakeDiscoverer struct {
	pages []string
	err   error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) > 0 {
		return f.pages, nil
	}
	return []string{baseURL}, nil
}

type fakeScraper struct {
	mu      sync.Mutex
	failing map[string]bool
	scraped []string
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.scraped = append(f.scraped, url)
	failing := f.failing[url]
	f.mu.Unlock()

	if failing {
		return nil, fmt.Errorf("render timed out")
	}
	return &models.ScrapeResult{
		URL:  url,
		HTML: "<html><body>" + url + "</body></html>",
		Metadata: models.ScrapeMetadata{
			Title:      "Page " + url,
			AssetCount: 2,
		},
	}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	failing map[string]bool
	failAll bool
}

func (f *fakeGenerator) Generate(ctx context.Context, scrape *models.ScrapeResult, model string, emit interfaces.EmitFunc) (*models.CloneResult, error) {
	f.mu.Lock()
	failing := f.failAll || f.failing[scrape.URL]
	f.mu.Unlock()

	if failing {
		return nil, fmt.Errorf("model refused")
	}
	if emit != nil {
		emit("<html>")
		emit("</html>")
	}
	return &models.CloneResult{
		HTML:           "<html><body>clone of " + scrape.URL + "</body></html>",
		ModelUsed:      model,
		ProcessingTime: 0.1,
	}, nil
}

// fakeEmbedder marks the body tag so tests can tell embedded output apart
type fakeEmbedder struct {
	mu    sync.Mutex
	pages []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, html, baseURL string) (string, int, error) {
	f.mu.Lock()
	f.pages = append(f.pages, baseURL)
	f.mu.Unlock()

	if f.err != nil {
		return "", 0, f.err
	}
	return strings.Replace(html, "<body>", `<body data-assets="inline">`, 1), 1, nil
}

func (f *fakeEmbedder) embeddedPages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pages...)
}

type env struct {
	service  *Service
	store    *storage.JobStore
	hub      *logs.Hub
	embedder *fakeEmbedder
}

func newEnv(t *testing.T, discoverer *fakeDiscoverer, scraper *fakeScraper, gen *fakeGenerator) *env {
	t.Helper()

	store := storage.NewJobStore(nil, nil)
	hub := logs.NewHub(nil)
	embedder := &fakeEmbedder{}
	config := &common.CloneConfig{
		DefaultModel:  "agentic",
		ScrapeWorkers: 3,
	}

	return &env{
		service:  NewService(store, hub, discoverer, scraper, gen, embedder, config, common.GetLogger()),
		store:    store,
		hub:      hub,
		embedder: embedder,
	}
}

// drainStream reads the job's log stream to its sentinel, returning all lines
func drainStream(t *testing.T, hub *logs.Hub, jobID string) []string {
	t.Helper()

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	var lines []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return lines
			}
			lines = append(lines, line)
			if line == interfaces.LogSentinel {
				return lines
			}
		case <-timeout:
			t.Fatalf("log stream did not terminate, got %d lines", len(lines))
		}
	}
}

func waitForTerminal(t *testing.T, store *storage.JobStore, jobID string) *models.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(jobID)
		require.NoError(t, err)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	tests := []struct {
		name string
		req  *models.CloneRequest
	}{
		{"empty url", &models.CloneRequest{URL: ""}},
		{"not a url", &models.CloneRequest{URL: "not a url"}},
		{"ftp scheme", &models.CloneRequest{URL: "ftp://example.com"}},
		{"unknown model", &models.CloneRequest{URL: "https://example.com", Model: "gpt-4"}},
		{"negative max pages", &models.CloneRequest{URL: "https://example.com", MaxPages: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.service.CreateJob(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}

	assert.Empty(t, e.service.ListJobs(), "no job should be registered on validation failure")
}

func TestCreateJob_ReturnsPendingSnapshotImmediately(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(job.ID, "job_"))
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, "agentic", job.Model, "default model applied")

	waitForTerminal(t, e.store, job.ID)
}

func TestSinglePage_Success(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Empty(t, final.Error)
	require.NotNil(t, final.Result)
	assert.Nil(t, final.FullSiteResult, "single-page job must not carry a site result")
	assert.Contains(t, final.Result.HTML, "clone of")

	lines := drainStream(t, e.hub, job.ID)
	assert.Equal(t, interfaces.LogSentinel, lines[len(lines)-1])
}

func TestSinglePage_ScrapeFailureFailsJob(t *testing.T) {
	scraper := &fakeScraper{failing: map[string]bool{"https://example.com/": true}}
	e := newEnv(t, &fakeDiscoverer{}, scraper, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
	assert.Nil(t, final.Result)

	lines := drainStream(t, e.hub, job.ID)
	assert.Equal(t, interfaces.LogSentinel, lines[len(lines)-1], "stream must end with sentinel even on failure")
}

func TestFullSite_PartialPageFailuresAreSkipped(t *testing.T) {
	pages := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	}
	scraper := &fakeScraper{failing: map[string]bool{"https://example.com/b": true}}
	gen := &fakeGenerator{failing: map[string]bool{"https://example.com/d": true}}
	e := newEnv(t, &fakeDiscoverer{pages: pages}, scraper, gen)

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", FullSite: true, MaxPages: 5})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	assert.Empty(t, final.Error)
	assert.Nil(t, final.Result)
	require.NotNil(t, final.FullSiteResult)

	assert.Equal(t, 3, final.FullSiteResult.TotalPages, "one scrape failure and one generation failure skipped")
	assert.Len(t, final.FullSiteResult.Sitemap, 5, "sitemap keeps every discovered page")
	for _, page := range final.FullSiteResult.Pages {
		assert.NotEqual(t, "https://example.com/b", page.URL)
		assert.NotEqual(t, "https://example.com/d", page.URL)
	}
}

func TestSinglePage_IncludeAssetsEmbedsGeneratedPage(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", IncludeAssets: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.Contains(t, final.Result.HTML, `data-assets="inline"`)
	assert.Equal(t, []string{"https://example.com/"}, e.embedder.embeddedPages())
}

func TestSinglePage_AssetsSkippedWhenNotRequested(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.NotContains(t, final.Result.HTML, "data-assets")
	assert.Empty(t, e.embedder.embeddedPages(), "embedder must not run without the flag")
}

func TestSinglePage_EmbeddingFailureKeepsUnembeddedClone(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})
	e.embedder.err = fmt.Errorf("cdn unreachable")

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", IncludeAssets: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status, "embedding failure must not fail the job")
	require.NotNil(t, final.Result)
	assert.Contains(t, final.Result.HTML, "clone of")
	assert.NotContains(t, final.Result.HTML, "data-assets")
}

func TestFullSite_IncludeAssetsEmbedsEveryPage(t *testing.T) {
	pages := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
	}
	e := newEnv(t, &fakeDiscoverer{pages: pages}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", FullSite: true, IncludeAssets: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.FullSiteResult)
	require.Len(t, final.FullSiteResult.Pages, 3)
	for _, page := range final.FullSiteResult.Pages {
		assert.Contains(t, page.HTML, `data-assets="inline"`, page.URL)
	}
	assert.Len(t, e.embedder.embeddedPages(), 3)
}

func TestFullSite_AllScrapesFailFailsJob(t *testing.T) {
	pages := []string{"https://example.com/", "https://example.com/a"}
	scraper := &fakeScraper{failing: map[string]bool{
		"https://example.com/":  true,
		"https://example.com/a": true,
	}}
	e := newEnv(t, &fakeDiscoverer{pages: pages}, scraper, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", FullSite: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "failed to scrape")
}

func TestFullSite_AllGenerationsFailFailsJob(t *testing.T) {
	pages := []string{"https://example.com/", "https://example.com/a"}
	e := newEnv(t, &fakeDiscoverer{pages: pages}, &fakeScraper{}, &fakeGenerator{failAll: true})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", FullSite: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "failed to generate")
}

func TestFullSite_DiscoveryFailureFailsJob(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{err: fmt.Errorf("robots refused us")}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com", FullSite: true})
	require.NoError(t, err)

	final := waitForTerminal(t, e.store, job.ID)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Contains(t, final.Error, "site discovery failed")
}

func TestPipeline_CodeFragmentsCarryPrefix(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)
	waitForTerminal(t, e.store, job.ID)

	lines := drainStream(t, e.hub, job.ID)
	var codeLines int
	for _, line := range lines {
		if strings.HasPrefix(line, interfaces.CodePrefix) {
			codeLines++
		}
	}
	assert.Greater(t, codeLines, 0, "generation fragments should be published with the code prefix")
}

func TestPipeline_SentinelAppearsExactlyOnce(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)
	waitForTerminal(t, e.store, job.ID)

	// Give the pipeline goroutine time to close the stream.
	lines := drainStream(t, e.hub, job.ID)

	count := 0
	for _, line := range lines {
		if line == interfaces.LogSentinel {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPipeline_StatusWrittenBeforeSignal(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	job, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	ch, cancel := e.hub.Subscribe(job.ID)
	defer cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return
			}
			if strings.HasPrefix(line, "Scraping ") {
				current, err := e.store.Get(job.ID)
				require.NoError(t, err)
				// Once the scraping line is visible the status must already
				// have left pending.
				assert.NotEqual(t, models.JobStatusPending, current.Status)
			}
			if line == interfaces.LogSentinel {
				return
			}
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
	}
}

func TestCreateJob_ErrorSetOnlyWhenFailed(t *testing.T) {
	e := newEnv(t, &fakeDiscoverer{}, &fakeScraper{}, &fakeGenerator{})

	ok, err := e.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	scraperFail := &fakeScraper{failing: map[string]bool{"https://example.com/": true}}
	e2 := newEnv(t, &fakeDiscoverer{}, scraperFail, &fakeGenerator{})
	bad, err := e2.service.CreateJob(context.Background(), &models.CloneRequest{URL: "https://example.com"})
	require.NoError(t, err)

	okFinal := waitForTerminal(t, e.store, ok.ID)
	badFinal := waitForTerminal(t, e2.store, bad.ID)

	assert.Empty(t, okFinal.Error)
	assert.NotEmpty(t, badFinal.Error)
}

// Package generator turns scraped pages into standalone generated clones
// using vision-capable models behind a common provider interface.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/models"
)

// provider is a single model backend. Implementations complete a prompt,
// optionally grounded on a page screenshot.
type provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, screenshotPNG string) (string, error)
}

// Model aliases accepted on clone requests
const (
	ModelAgentic  = "agentic"
	ModelPrecise  = "precise"
	ModelFast     = "fast"
	ModelEconomic = "economic"
)

// KnownModel reports whether the alias maps to a configured backend
func KnownModel(alias string) bool {
	switch alias {
	case ModelAgentic, ModelPrecise, ModelFast, ModelEconomic:
		return true
	}
	return false
}

// Service routes generation requests to providers by model alias.
// Implements interfaces.CloneGenerator.
type Service struct {
	claude     provider
	gemini     provider
	geminiFast provider
	logger     arbor.ILogger
}

// NewService builds the provider set from configuration. A provider whose API
// key is missing is left nil; requesting it fails at generation time.
func NewService(claudeCfg *common.ClaudeConfig, geminiCfg *common.GeminiConfig, logger arbor.ILogger) (*Service, error) {
	s := &Service{logger: logger}

	if claudeCfg.APIKey != "" {
		s.claude = newClaudeProvider(claudeCfg, logger)
	}
	if geminiCfg.APIKey != "" {
		gemini, err := newGeminiProvider(geminiCfg, geminiCfg.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
		}
		s.gemini = gemini

		fastModel := geminiCfg.FastModel
		if fastModel == "" {
			fastModel = geminiCfg.Model
		}
		fast, err := newGeminiProvider(geminiCfg, fastModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini fast provider: %w", err)
		}
		s.geminiFast = fast
	}

	if s.claude == nil && s.gemini == nil {
		logger.Warn().Msg("No generation provider configured, clone jobs will fail at the processing stage")
	}

	return s, nil
}

// resolve maps a model alias to its backend
func (s *Service) resolve(alias string) (provider, error) {
	var p provider
	switch alias {
	case ModelAgentic:
		p = s.claude
	case ModelPrecise:
		p = s.gemini
	case ModelFast, ModelEconomic:
		p = s.geminiFast
	default:
		return nil, fmt.Errorf("unknown model alias: %s", alias)
	}
	if p == nil {
		return nil, fmt.Errorf("model %s is not configured (missing API key)", alias)
	}
	return p, nil
}

// Generate produces a clone of the scraped page. Fragments of the cleaned
// output are pushed through emit as they are produced.
func (s *Service) Generate(ctx context.Context, scrape *models.ScrapeResult, model string, emit interfaces.EmitFunc) (*models.CloneResult, error) {
	p, err := s.resolve(model)
	if err != nil {
		return nil, err
	}

	prompt, err := buildPrompt(scrape)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	startTime := time.Now()
	s.logger.Debug().
		Str("url", scrape.URL).
		Str("model", model).
		Str("provider", p.Name()).
		Int("prompt_length", len(prompt)).
		Msg("Starting clone generation")

	raw, err := p.Complete(ctx, prompt, scrape.Screenshot)
	if err != nil {
		return nil, fmt.Errorf("generation failed for %s: %w", scrape.URL, err)
	}

	html := CleanOutput(raw)
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("model returned empty output for %s", scrape.URL)
	}

	emitFragments(html, emit)

	elapsed := time.Since(startTime).Seconds()
	s.logger.Debug().
		Str("url", scrape.URL).
		Int("output_length", len(html)).
		Float64("seconds", elapsed).
		Msg("Clone generation complete")

	return &models.CloneResult{
		HTML:           html,
		ModelUsed:      model,
		ProcessingTime: elapsed,
	}, nil
}

// emitFragments pushes the generated document line by line so subscribers see
// code arriving incrementally.
func emitFragments(html string, emit interfaces.EmitFunc) {
	if emit == nil {
		return
	}
	for _, line := range strings.Split(html, "\n") {
		emit(line)
	}
}

package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
)

// claudeProvider completes prompts against the Anthropic Claude API
type claudeProvider struct {
	client    anthropic.Client
	config    *common.ClaudeConfig
	maxTokens int
	logger    arbor.ILogger
}

func newClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) *claudeProvider {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Msg("Claude provider initialized")

	return &claudeProvider{
		client:    client,
		config:    config,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (p *claudeProvider) Name() string {
	return "claude"
}

// Complete sends the prompt with the page screenshot attached as an image
// block and returns the concatenated text response.
func (p *claudeProvider) Complete(ctx context.Context, prompt string, screenshotPNG string) (string, error) {
	blocks := []anthropic.ContentBlockParamUnion{}
	if screenshotPNG != "" {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", screenshotPNG))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}

	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.config.Temperature))
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}

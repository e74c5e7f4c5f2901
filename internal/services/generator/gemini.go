package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/imitor/internal/common"
)

// geminiProvider completes prompts against the Google Gemini API
type geminiProvider struct {
	client *genai.Client
	config *common.GeminiConfig
	model  string
	logger arbor.ILogger
}

func newGeminiProvider(config *common.GeminiConfig, model string, logger arbor.ILogger) (*geminiProvider, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", model).
		Msg("Gemini provider initialized")

	return &geminiProvider{
		client: client,
		config: config,
		model:  model,
		logger: logger,
	}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

// Complete sends the prompt with the page screenshot attached as an inline
// image part and returns the response text.
func (p *geminiProvider) Complete(ctx context.Context, prompt string, screenshotPNG string) (string, error) {
	parts := []*genai.Part{}
	if screenshotPNG != "" {
		imageData, err := base64.StdEncoding.DecodeString(screenshotPNG)
		if err != nil {
			return "", fmt.Errorf("invalid screenshot encoding: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(imageData, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: parts,
		},
	}

	config := &genai.GenerateContentConfig{}
	if p.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	// Iterate candidates until non-empty text is found
	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Gemini API")
	}

	return response.String(), nil
}

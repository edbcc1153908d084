package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const googleBaseURL = "https://generativelanguage.googleapis.com"

// GoogleProvider calls the Gemini generateContent endpoint
type GoogleProvider struct {
	apiKey string
	model  string
	client *resty.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGoogleProvider creates a new Gemini provider
func NewGoogleProvider(cfg Config) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleBaseURL
	}

	return &GoogleProvider{
		apiKey: cfg.APIKey,
		model:  model,
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout),
	}, nil
}

func (g *GoogleProvider) Name() string {
	return ProviderGoogle
}

// Generate prepends the system prompt since the endpoint takes a single content stream
func (g *GoogleProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	full := prompt
	if systemPrompt != "" {
		full = systemPrompt + "\n\n" + prompt
	}

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(geminiRequest{
			Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: full}}}},
		}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return "", fmt.Errorf("google request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("google API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var text strings.Builder
	for _, candidate := range out.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return text.String(), nil
}

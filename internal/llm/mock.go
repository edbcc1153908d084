package llm

import (
	"context"
	"strings"
)

const mockExtraction = `{
  "sentiment": "negative",
  "summary": "Customer is threatening to cancel due to price.",
  "signals": ["churn_risk", "pricing_complaint"],
  "commitments": [{"description": "Send updated contract", "due_date": "2025-12-25"}],
  "action_items": ["Schedule renewal review", "Discuss discount options"]
}`

const mockAssessment = "This account is at risk due to recent churn signals. Sentiment is negative despite engagement. Immediate intervention required."

// MockProvider returns canned answers and never calls out
type MockProvider struct{}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string {
	return ProviderMock
}

// Generate answers extraction prompts with JSON and everything else with an assessment
func (m *MockProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if strings.Contains(prompt, "Return a JSON object") || strings.Contains(systemPrompt, "extract structured signals") {
		return mockExtraction, nil
	}

	return mockAssessment, nil
}

package intelligence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Fallback summaries recorded when deep analysis cannot produce a result
const (
	SummaryParseFailed = "Failed to parse analysis results."
	SummaryUnavailable = "AI analysis unavailable (No active LLM provider)."
	SummaryFailed      = "AI analysis failed due to technical error."
)

const dueDateLayout = "2006-01-02"

// Commitment is an explicit follow-up found by the analyzer
type Commitment struct {
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
}

// Analysis is the structured answer expected from the analyzer
type Analysis struct {
	Sentiment   string       `json:"sentiment"`
	Summary     string       `json:"summary"`
	Signals     []string     `json:"signals"`
	Commitments []Commitment `json:"commitments"`
	ActionItems []string     `json:"action_items"`
}

func fallbackAnalysis(summary string) Analysis {
	return Analysis{
		Sentiment:   "neutral",
		Summary:     summary,
		Signals:     []string{},
		Commitments: []Commitment{},
		ActionItems: []string{},
	}
}

// ParseAnalysis decodes analyzer output, tolerating markdown code fences
func ParseAnalysis(text string) (Analysis, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var a Analysis
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return Analysis{}, fmt.Errorf("failed to decode analysis: %w", err)
	}

	if a.Sentiment == "" {
		a.Sentiment = "neutral"
	}
	a.Sentiment = strings.ToLower(a.Sentiment)
	if a.Signals == nil {
		a.Signals = []string{}
	}
	if a.Commitments == nil {
		a.Commitments = []Commitment{}
	}
	if a.ActionItems == nil {
		a.ActionItems = []string{}
	}
	return a, nil
}

// ParseDueDate accepts only YYYY-MM-DD; anything else means no due date
func ParseDueDate(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(dueDateLayout, *raw)
	if err != nil {
		return nil
	}
	return &t
}

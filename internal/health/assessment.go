package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/llm"
)

// Fallback explanations recorded when no assessment could be generated
const (
	AssessmentUnavailable = "AI Analysis unavailable (No active LLM provider)."
	AssessmentFailed      = "AI Analysis failed due to technical error."
)

const maxAssessmentSignals = 5

const assessmentSystemPrompt = `You are an expert Customer Success Manager AI.
Your goal is to explain the Health Score of a customer account in 2-3 concise sentences.
Be direct. Highlight the main reason for the score (good or bad).
Refer to specific recent signals if available.`

const assessmentUserPromptTemplate = `Analyze the health of account "%s".
Overall Score: %d/100 (Status: %s)
Sentiment Score: %d/100
Engagement Score: %d/100

Recent Signals:
%s

Explain why the score is what it is and what should be done.`

// AssessmentInput is what the explanation is built from
type AssessmentInput struct {
	AccountName string
	Score       int
	Status      string
	Sentiment   int
	Engagement  int
	Signals     []string
}

// Assessor explains a health score in natural language
type Assessor interface {
	Assess(ctx context.Context, in AssessmentInput) llm.Result[string]
}

// Generator produces assessments with the active text analyzer
type Generator struct {
	analyzers llm.Source
}

// NewGenerator creates a new assessment generator
func NewGenerator(analyzers llm.Source) *Generator {
	return &Generator{analyzers: analyzers}
}

func (g *Generator) Assess(ctx context.Context, in AssessmentInput) llm.Result[string] {
	provider, err := g.analyzers.Resolve(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrNoActiveProvider) {
			return llm.Degraded(AssessmentUnavailable, err.Error())
		}
		logrus.WithError(err).Warn("Failed to resolve provider for health assessment")
		return llm.Degraded(AssessmentFailed, err.Error())
	}

	text, err := provider.Generate(ctx, assessmentPrompt(in), assessmentSystemPrompt)
	if err != nil {
		logrus.WithError(err).WithField("provider", provider.Name()).Warn("Health assessment generation failed")
		return llm.Degraded(AssessmentFailed, err.Error())
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return llm.Degraded(AssessmentFailed, llm.ErrEmptyResponse.Error())
	}
	return llm.Ok(text)
}

func assessmentPrompt(in AssessmentInput) string {
	signalsText := "No specific signals found."
	if len(in.Signals) > 0 {
		lines := make([]string, len(in.Signals))
		for i, s := range in.Signals {
			lines[i] = "- " + s
		}
		signalsText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(assessmentUserPromptTemplate, in.AccountName, in.Score, in.Status, in.Sentiment, in.Engagement, signalsText)
}

// uniqueSignals keeps first occurrences in order, up to max
func uniqueSignals(signals []string, max int) []string {
	seen := make(map[string]bool, len(signals))
	out := make([]string, 0, max)
	for _, s := range signals {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

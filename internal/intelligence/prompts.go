package intelligence

import (
	"context"
	"fmt"
	"time"

	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/models"
)

const extractionSystemPrompt = `You are an expert Customer Success AI Analyst.
Your goal is to extract structured signals from customer communications (emails, call notes, chats).
Focus on:
1. Sentiment (Positive, Neutral, Negative)
2. Risky topics (Budget cuts, Competitors, Technical issues)
3. Opportunities (Expansion, Upsell)
4. Key Action Items`

const extractionUserPromptTemplate = `Analyze the following customer input from account "%s":

CONTENT:
%s

CONTEXT:
Date: %s
Sender: %s

Return a JSON object with the following fields:
- sentiment: "positive", "neutral", or "negative"
- summary: A brief 1-sentence summary of the input.
- signals: A list of specific risk/opportunity topics found (e.g. "budget_risk", "feature_request").
- commitments: A list of explicit commitments or follow-ups detected. Each item should have:
    - description: What needs to be done.
    - due_date: YYYY-MM-DD format if explicitly mentioned or inferred (e.g. "next Friday"), otherwise null.
- action_items: A list of general recommended actions for the CSM (separate from explicit commitments).`

func extractionPrompt(accountName, content string, date time.Time, sender string) string {
	if accountName == "" {
		accountName = "Unknown"
	}
	return fmt.Sprintf(extractionUserPromptTemplate, accountName, content, date.Format("2006-01-02 15:04:05"), sender)
}

// RequestAnalysis asks p for the structured extraction of one communication
// and returns the raw reply for ParseAnalysis.
func RequestAnalysis(ctx context.Context, p llm.Provider, accountName string, c models.Communication) (string, error) {
	return p.Generate(ctx, extractionPrompt(accountName, c.Content, c.ContentDate, c.Sender), extractionSystemPrompt)
}

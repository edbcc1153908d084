package intelligence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/store"
)

// MockProvider is a mock implementation of llm.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "mock-test"
}

func (m *MockProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	args := m.Called(ctx, prompt, systemPrompt)
	return args.String(0), args.Error(1)
}

// MockRecalculator is a mock implementation of Recalculator
type MockRecalculator struct {
	mock.Mock
}

func (m *MockRecalculator) Calculate(ctx context.Context, accountID uuid.UUID, trigger string) (*models.HealthScore, error) {
	args := m.Called(ctx, accountID, trigger)
	if score, ok := args.Get(0).(*models.HealthScore); ok {
		return score, args.Error(1)
	}
	return nil, args.Error(1)
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T, provider llm.Provider, health Recalculator) (*Service, *store.Memory, models.Account) {
	t.Helper()
	st := store.NewMemory()
	account := models.Account{Name: "Acme Federal", CheckInIntervalDays: 14, IsActive: true}
	require.NoError(t, st.CreateAccount(context.Background(), &account))

	svc := NewService(st, llm.Fixed(provider), health)
	svc.now = func() time.Time { return fixedNow }
	return svc, st, account
}

const analyzerReply = "```json\n" + `{
  "sentiment": "negative",
  "summary": "Customer may cancel over pricing.",
  "signals": ["churn_risk", "pricing_complaint"],
  "commitments": [
    {"description": "Send updated contract", "due_date": "2025-12-25"},
    {"description": "Follow up with procurement", "due_date": "next Friday"},
    {"description": "", "due_date": "2025-07-01"}
  ],
  "action_items": ["Schedule renewal review"]
}` + "\n```"

func TestProcessCommunicationDeepAnalysis(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `account "Acme Federal"`) &&
			strings.Contains(p, "We are evaluating alternatives") &&
			strings.Contains(p, "Sender: jane@acme.gov")
	}), extractionSystemPrompt).Return(analyzerReply, nil)

	health := new(MockRecalculator)
	health.On("Calculate", mock.Anything, mock.Anything, models.TriggerInputAdded).
		Return(&models.HealthScore{OverallScore: 42}, nil)

	svc, st, account := setup(t, provider, health)
	ctx := context.Background()

	out, err := svc.ProcessCommunication(ctx, models.Communication{
		AccountID: account.ID,
		Type:      models.CommunicationEmail,
		Content:   "We are evaluating alternatives and might terminate the contract.",
		Sender:    "jane@acme.gov",
	})
	require.NoError(t, err)

	assert.True(t, out.DeepAnalyzed)
	assert.False(t, out.Degraded)
	require.NotNil(t, out.Extraction)
	assert.Equal(t, models.AnalysisCompleted, out.Extraction.AnalysisStatus)
	assert.True(t, out.Extraction.LLMAnalyzed)
	assert.Equal(t, "negative", out.Extraction.Sentiment)
	assert.Equal(t, "critical", out.Extraction.KeywordSeverity)
	assert.Equal(t, []string{"churn_risk", "pricing_complaint"}, out.Extraction.Signals)
	assert.Equal(t, 42, out.HealthScore.OverallScore)

	require.Len(t, out.Reminders, 2, "commitments without a description are dropped")
	require.NotNil(t, out.Reminders[0].DueDate)
	assert.Equal(t, "2025-12-25", out.Reminders[0].DueDate.Format("2006-01-02"))
	assert.Nil(t, out.Reminders[1].DueDate, "non-ISO due date yields an undated reminder")

	stored, err := st.GetCommunication(ctx, out.Communication.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
	assert.Equal(t, fixedNow, stored.ContentDate)

	extraction, err := st.GetExtractionByCommunication(ctx, out.Communication.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Extraction.ID, extraction.ID)

	reminders, err := st.ListReminders(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 2)

	provider.AssertExpectations(t)
	health.AssertExpectations(t)
}

func TestProcessCommunicationKeywordOnly(t *testing.T) {
	provider := new(MockProvider)
	svc, st, account := setup(t, provider, nil)
	ctx := context.Background()

	out, err := svc.ProcessCommunication(ctx, models.Communication{
		AccountID: account.ID,
		Content:   "I love this product, it is amazing!",
	})
	require.NoError(t, err)

	assert.False(t, out.DeepAnalyzed)
	require.NotNil(t, out.Extraction)
	assert.Equal(t, models.AnalysisSkipped, out.Extraction.AnalysisStatus)
	assert.False(t, out.Extraction.LLMAnalyzed)
	assert.Equal(t, "low", out.Extraction.KeywordSeverity)
	assert.Empty(t, out.Reminders)
	assert.Nil(t, out.HealthScore)

	stored, err := st.GetCommunication(ctx, out.Communication.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)

	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessCommunicationNoMatches(t *testing.T) {
	svc, st, account := setup(t, new(MockProvider), nil)
	ctx := context.Background()

	out, err := svc.ProcessCommunication(ctx, models.Communication{
		AccountID: account.ID,
		Content:   "See attached.",
	})
	require.NoError(t, err)

	assert.False(t, out.DeepAnalyzed)
	assert.Nil(t, out.Extraction)

	_, err = st.GetExtractionByCommunication(ctx, out.Communication.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stored, err := st.GetCommunication(ctx, out.Communication.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed)
}

func TestProcessCommunicationDegradedPaths(t *testing.T) {
	tests := []struct {
		name         string
		provider     llm.Provider
		wantSummary  string
		wantStatus   string
		wantAnalyzed bool
	}{
		{
			name:         "no active provider",
			provider:     nil,
			wantSummary:  SummaryUnavailable,
			wantStatus:   models.AnalysisFailed,
			wantAnalyzed: false,
		},
		{
			name: "provider error",
			provider: func() llm.Provider {
				p := new(MockProvider)
				p.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout"))
				return p
			}(),
			wantSummary:  SummaryFailed,
			wantStatus:   models.AnalysisFailed,
			wantAnalyzed: false,
		},
		{
			name: "malformed reply",
			provider: func() llm.Provider {
				p := new(MockProvider)
				p.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Sure! Here is my analysis.", nil)
				return p
			}(),
			wantSummary:  SummaryParseFailed,
			wantStatus:   models.AnalysisCompleted,
			wantAnalyzed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := new(MockRecalculator)
			health.On("Calculate", mock.Anything, mock.Anything, models.TriggerInputAdded).
				Return(nil, errors.New("calculator down"))

			svc, _, account := setup(t, tt.provider, health)

			out, err := svc.ProcessCommunication(context.Background(), models.Communication{
				AccountID: account.ID,
				Content:   "Our FedRAMP ATO package is due next quarter.",
			})
			require.NoError(t, err, "analyzer and recalculation failures never fail the submission")

			assert.True(t, out.DeepAnalyzed)
			assert.True(t, out.Degraded)
			assert.NotEmpty(t, out.DegradeReason)
			require.NotNil(t, out.Extraction)
			assert.Equal(t, "neutral", out.Extraction.Sentiment)
			assert.Equal(t, tt.wantSummary, out.Extraction.Summary)
			assert.Equal(t, tt.wantStatus, out.Extraction.AnalysisStatus)
			assert.Equal(t, tt.wantAnalyzed, out.Extraction.LLMAnalyzed)
			assert.Empty(t, out.Extraction.Signals)
			assert.Empty(t, out.Reminders)
			assert.Nil(t, out.HealthScore)
			assert.True(t, out.Communication.IsProcessed)
		})
	}
}

// brokenWrites fails extraction or reminder inserts made inside a transaction
type brokenWrites struct {
	store.Store
	extraction bool
	reminder   bool
}

func (b *brokenWrites) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return b.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(&brokenWrites{Store: tx, extraction: b.extraction, reminder: b.reminder})
	})
}

func (b *brokenWrites) CreateExtraction(ctx context.Context, e *models.SignalExtraction) error {
	if b.extraction {
		return errors.New("connection reset")
	}
	return b.Store.CreateExtraction(ctx, e)
}

func (b *brokenWrites) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if b.reminder {
		return errors.New("connection reset")
	}
	return b.Store.CreateReminder(ctx, r)
}

func TestProcessCommunicationKeepsInputWhenAnalysisWriteFails(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		extraction bool
		reminder   bool
		wantReason string
	}{
		{
			name:       "extraction insert fails",
			content:    "I love this product, it is amazing!",
			extraction: true,
			wantReason: "failed to store extraction",
		},
		{
			name:       "reminder insert fails",
			content:    "We might cancel, the price is too expensive.",
			reminder:   true,
			wantReason: "failed to store reminder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := store.NewMemory()
			account := models.Account{Name: "Acme Federal", CheckInIntervalDays: 14, IsActive: true}
			require.NoError(t, mem.CreateAccount(ctx, &account))

			health := new(MockRecalculator)
			health.On("Calculate", mock.Anything, account.ID, models.TriggerInputAdded).
				Return(&models.HealthScore{OverallScore: 55}, nil)

			st := &brokenWrites{Store: mem, extraction: tt.extraction, reminder: tt.reminder}
			svc := NewService(st, llm.Fixed(llm.NewMockProvider()), health)
			svc.now = func() time.Time { return fixedNow }

			out, err := svc.ProcessCommunication(ctx, models.Communication{
				AccountID: account.ID,
				Content:   tt.content,
			})
			require.NoError(t, err)

			assert.True(t, out.Degraded)
			assert.Contains(t, out.DegradeReason, tt.wantReason)
			assert.Nil(t, out.Extraction)
			assert.Empty(t, out.Reminders)
			assert.False(t, out.Communication.IsProcessed)
			require.NotNil(t, out.HealthScore)
			assert.Equal(t, 55, out.HealthScore.OverallScore)

			stored, err := mem.GetCommunication(ctx, out.Communication.ID)
			require.NoError(t, err)
			assert.False(t, stored.IsProcessed)
			assert.Equal(t, tt.content, stored.Content)

			_, err = mem.GetExtractionByCommunication(ctx, out.Communication.ID)
			assert.ErrorIs(t, err, store.ErrNotFound, "a failed transaction leaves no extraction")

			reminders, err := mem.ListReminders(ctx, account.ID)
			require.NoError(t, err)
			assert.Empty(t, reminders)

			health.AssertExpectations(t)
		})
	}
}

func TestProcessCommunicationUnknownAccount(t *testing.T) {
	svc, _, _ := setup(t, new(MockProvider), nil)

	_, err := svc.ProcessCommunication(context.Background(), models.Communication{
		AccountID: uuid.New(),
		Content:   "hello",
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessCommunicationWithMockProvider(t *testing.T) {
	svc, _, account := setup(t, llm.NewMockProvider(), nil)

	out, err := svc.ProcessCommunication(context.Background(), models.Communication{
		AccountID: account.ID,
		Content:   "We might cancel, the price is too expensive.",
	})
	require.NoError(t, err)

	require.True(t, out.DeepAnalyzed)
	assert.Equal(t, "Customer is threatening to cancel due to price.", out.Extraction.Summary)
	require.Len(t, out.Reminders, 1)
	assert.Equal(t, "Send updated contract", out.Reminders[0].Description)
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantErr       bool
		wantSentiment string
		wantSignals   int
	}{
		{"plain json", `{"sentiment":"positive","signals":["expansion"]}`, false, "positive", 1},
		{"fenced json", "```json\n{\"sentiment\":\"Negative\"}\n```", false, "negative", 0},
		{"bare fence", "```\n{\"summary\":\"ok\"}\n```", false, "neutral", 0},
		{"prose", "I think the customer is upset.", true, "", 0},
		{"truncated", `{"sentiment": "neg`, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnalysis(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSentiment, got.Sentiment)
			assert.Len(t, got.Signals, tt.wantSignals)
			assert.NotNil(t, got.Commitments)
			assert.NotNil(t, got.ActionItems)
		})
	}
}

func TestParseDueDate(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name  string
		input *string
		want  string
	}{
		{"iso date", str("2025-12-25"), "2025-12-25"},
		{"natural language", str("next Friday"), ""},
		{"us format", str("12/25/2025"), ""},
		{"with time", str("2025-12-25T10:00:00Z"), ""},
		{"empty", str(""), ""},
		{"null", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDueDate(tt.input)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestExtractionPromptUnknownAccount(t *testing.T) {
	prompt := extractionPrompt("", "hello", fixedNow, "bob")
	assert.Contains(t, prompt, `account "Unknown"`)
	assert.Contains(t, prompt, "Date: 2025-06-01 09:00:00")
}

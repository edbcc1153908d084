package models

import (
	"time"

	"github.com/google/uuid"
)

// Communication types accepted for ingestion
const (
	CommunicationEmail   = "email"
	CommunicationCall    = "call"
	CommunicationMeeting = "meeting"
	CommunicationChat    = "chat"
)

// Analysis status recorded on a signal extraction
const (
	AnalysisCompleted = "completed"
	AnalysisSkipped   = "skipped"
	AnalysisFailed    = "failed"
)

// Health status derived from the overall score
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
	StatusAtRisk  = "at_risk"
)

// Trend directions recorded on a health snapshot
const (
	TrendNew    = "new"
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Trigger sources recorded on every health snapshot
const (
	TriggerManual     = "manual"
	TriggerInputAdded = "input_added"
	TriggerDailyJob   = "daily_job"
	TriggerDecay      = "decay"
)

// Alert types
const (
	AlertInfo    = "info"
	AlertWarning = "warning"
	AlertError   = "error"
	AlertSuccess = "success"
)

// Alert categories produced by the daily job
const (
	CategoryHealthRisk  = "health-risk"
	CategoryRenewalDue  = "renewal-due"
	CategoryATOExpiring = "ato-expiring"
)

// Account is a customer account whose health is tracked
type Account struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Tier                string    `json:"tier"`
	Industry            string    `json:"industry,omitempty"`
	CheckInIntervalDays int       `json:"check_in_interval_days"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// Contact is a person at an account; only the count feeds scoring
type Contact struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	RoleType  string    `json:"role_type,omitempty"` // champion, economic_buyer, etc
	IsPrimary bool      `json:"is_primary"`
}

// Communication is a single piece of unstructured input (email, call notes, meeting notes, chat)
type Communication struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Type        string    `json:"input_type"`
	Content     string    `json:"content"`
	ContentDate time.Time `json:"content_date"`
	Sender      string    `json:"sender,omitempty"`
	IsProcessed bool      `json:"is_processed"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignalExtraction is the append-only record of what was observed in a communication
type SignalExtraction struct {
	ID                uuid.UUID `json:"id"`
	CommunicationID   uuid.UUID `json:"input_id"`
	ChurnSignals      []string  `json:"churn_signals"`
	PositiveSignals   []string  `json:"positive_signals"`
	ActionSignals     []string  `json:"action_signals"`
	ComplianceSignals []string  `json:"compliance_signals"`
	KeywordSeverity   string    `json:"keyword_severity"`

	LLMAnalyzed    bool     `json:"llm_analyzed"`
	AnalysisStatus string   `json:"llm_analysis_status"`
	Sentiment      string   `json:"sentiment,omitempty"` // positive, neutral, negative
	Summary        string   `json:"summary,omitempty"`
	Signals        []string `json:"signals"`
	ActionItems    []string `json:"action_items"`

	CreatedAt time.Time `json:"created_at"`
}

// Reminder tracks a commitment made in a communication
type Reminder struct {
	ID                    uuid.UUID  `json:"id"`
	AccountID             uuid.UUID  `json:"account_id"`
	SourceCommunicationID *uuid.UUID `json:"source_input_id,omitempty"`
	Description           string     `json:"description"`
	DueDate               *time.Time `json:"due_date"`
	IsCompleted           bool       `json:"is_completed"`
	CreatedAt             time.Time  `json:"created_at"`
}

// HealthScore is an immutable scored snapshot; every recalculation appends a new one
type HealthScore struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	OverallScore  int       `json:"overall_score"`
	OverallStatus string    `json:"overall_status"`

	SentimentScore    int `json:"sentiment_score"`
	EngagementScore   int `json:"engagement_score"`
	RequestScore      int `json:"request_score"`
	RelationshipScore int `json:"relationship_score"`
	SatisfactionScore int `json:"satisfaction_score"`
	ExpansionScore    int `json:"expansion_score"`

	AISummary string `json:"ai_summary"`

	PreviousScore  *int   `json:"previous_score"`
	ScoreChange    *int   `json:"score_change"`
	TrendDirection string `json:"trend_direction"`
	TriggeredBy    string `json:"triggered_by"`
	DecayApplied   bool   `json:"decay_applied"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// Contract carries the renewal window and the federal compliance fields used by alerting
type Contract struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Name          string    `json:"contract_name"`
	ContractType  string    `json:"contract_type"`
	Status        string    `json:"status"` // active, draft, expired
	EffectiveDate time.Time `json:"effective_date"`
	EndDate       time.Time `json:"end_date"`
	AutoRenewal   bool      `json:"auto_renewal"`
	NoticeDays    int       `json:"notice_period_days"`
	ARR           float64   `json:"arr"`

	FedRAMPRequired    bool       `json:"fedramp_required"`
	FISMALevel         string     `json:"fisma_level"`
	HIPAARequired      bool       `json:"hipaa_required"`
	Section508Required bool       `json:"section_508_required"`
	ATOStatus          string     `json:"ato_status"`
	ATOExpiryDate      *time.Time `json:"ato_expiry_date"`
}

// Alert is produced by the daily job and only ever mutated by marking it read
type Alert struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// LLMConfig selects the text analyzer provider; the API key is stored encrypted
type LLMConfig struct {
	ID              uuid.UUID `json:"id"`
	Provider        string    `json:"provider"`
	ModelName       string    `json:"model_name"`
	APIKeyEncrypted string    `json:"-"`
	IsActive        bool      `json:"is_active"`
}

// RunReport summarizes one pass of the daily health job
type RunReport struct {
	StartedAt         time.Time      `json:"started_at"`
	Duration          string         `json:"duration"`
	Trigger           string         `json:"trigger"` // scheduled or manual
	AccountsProcessed int            `json:"accounts_processed"`
	AccountsFailed    int            `json:"accounts_failed"`
	FailedAccounts    []string       `json:"failed_accounts,omitempty"`
	AlertsCreated     map[string]int `json:"alerts_created"`
	Alerts            []Alert        `json:"alerts"`
}

// Package intelligence turns a raw customer communication into a signal
// extraction, reminders and a refreshed health score.
package intelligence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/scanner"
	"github.com/customerpulse/pulse/internal/store"
)

// ErrAccountNotFound is returned when a communication references an unknown account
var ErrAccountNotFound = fmt.Errorf("account %w", store.ErrNotFound)

// Recalculator refreshes an account's health score
type Recalculator interface {
	Calculate(ctx context.Context, accountID uuid.UUID, trigger string) (*models.HealthScore, error)
}

// Outcome describes what happened to one communication
type Outcome struct {
	Communication models.Communication     `json:"communication"`
	Scan          scanner.ScanResult       `json:"scan"`
	DeepAnalyzed  bool                     `json:"deep_analyzed"`
	Extraction    *models.SignalExtraction `json:"extraction,omitempty"`
	Reminders     []models.Reminder        `json:"reminders"`
	Degraded      bool                     `json:"degraded"`
	DegradeReason string                   `json:"degrade_reason,omitempty"`
	HealthScore   *models.HealthScore      `json:"health_score,omitempty"`
}

// Service runs the intelligence pipeline
type Service struct {
	store     store.Store
	analyzers llm.Source
	health    Recalculator
	now       func() time.Time
}

// NewService creates a new intelligence service. health may be nil to skip recalculation.
func NewService(st store.Store, analyzers llm.Source, health Recalculator) *Service {
	return &Service{
		store:     st,
		analyzers: analyzers,
		health:    health,
		now:       time.Now,
	}
}

// ProcessCommunication persists the communication, scans it, runs deep analysis
// when the gate allows, derives reminders and recalculates health. Analyzer and
// recalculation failures never fail the call once the communication is stored.
func (s *Service) ProcessCommunication(ctx context.Context, c models.Communication) (*Outcome, error) {
	account, err := s.store.GetAccount(ctx, c.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if c.ContentDate.IsZero() {
		c.ContentDate = s.now().UTC()
	}
	if c.Type == "" {
		c.Type = models.CommunicationEmail
	}
	c.ID = uuid.Nil
	c.IsProcessed = false
	c.CreatedAt = s.now().UTC()

	// Stored before any fallible work so the input is never lost.
	if err := s.store.CreateCommunication(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to store communication: %w", err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"account_id":       account.ID,
		"communication_id": c.ID,
	})

	out := &Outcome{
		Communication: c,
		Scan:          scanner.Scan(c.Content),
		Reminders:     []models.Reminder{},
	}
	out.DeepAnalyzed = scanner.ShouldDeepAnalyze(out.Scan)

	var (
		analysis llm.Result[Analysis]
		status   string
	)
	if out.DeepAnalyzed {
		logger.WithField("severity", out.Scan.KeywordSeverity).Info("Running deep analysis")
		analysis, status = s.analyze(ctx, account, c)
		out.Degraded = analysis.Degraded
		out.DegradeReason = analysis.Reason
	} else {
		logger.WithField("severity", out.Scan.KeywordSeverity).Debug("Skipping deep analysis")
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		switch {
		case out.DeepAnalyzed:
			out.Extraction = deepExtraction(c.ID, out.Scan, analysis.Value, status)
		case out.Scan.HasMatches():
			out.Extraction = keywordExtraction(c.ID, out.Scan, models.AnalysisSkipped)
		}

		if out.Extraction != nil {
			out.Extraction.CreatedAt = s.now().UTC()
			if err := tx.CreateExtraction(ctx, out.Extraction); err != nil {
				return fmt.Errorf("failed to store extraction: %w", err)
			}
		}

		if out.DeepAnalyzed {
			for _, r := range RemindersFromCommitments(c.AccountID, c.ID, analysis.Value.Commitments) {
				r.CreatedAt = s.now().UTC()
				if err := tx.CreateReminder(ctx, &r); err != nil {
					return fmt.Errorf("failed to store reminder: %w", err)
				}
				out.Reminders = append(out.Reminders, r)
			}
		}

		return tx.MarkCommunicationProcessed(ctx, c.ID)
	})
	if err != nil {
		// The communication is already stored and stays unprocessed.
		logger.WithError(err).Error("Failed to store analysis, communication kept unprocessed")
		out.Extraction = nil
		out.Reminders = []models.Reminder{}
		out.Degraded = true
		out.DegradeReason = err.Error()
	} else {
		out.Communication.IsProcessed = true
	}

	logger.WithFields(logrus.Fields{
		"deep_analyzed": out.DeepAnalyzed,
		"reminders":     len(out.Reminders),
		"degraded":      out.Degraded,
	}).Info("Communication processed")

	if s.health != nil {
		score, err := s.health.Calculate(ctx, c.AccountID, models.TriggerInputAdded)
		if err != nil {
			logger.WithError(err).Warn("Health recalculation failed after communication was processed")
		} else {
			out.HealthScore = score
		}
	}

	return out, nil
}

// analyze asks the active provider for a structured analysis, degrading to a
// neutral fallback on any provider or decoding failure. A reply that could not
// be decoded still counts as completed; an unreachable analyzer counts as failed.
func (s *Service) analyze(ctx context.Context, account *models.Account, c models.Communication) (llm.Result[Analysis], string) {
	logger := logrus.WithField("communication_id", c.ID)

	provider, err := s.analyzers.Resolve(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrNoActiveProvider) {
			logger.Warn("No active LLM provider, recording neutral analysis")
			return llm.Degraded(fallbackAnalysis(SummaryUnavailable), err.Error()), models.AnalysisFailed
		}
		logger.WithError(err).Error("Failed to resolve LLM provider")
		return llm.Degraded(fallbackAnalysis(SummaryFailed), err.Error()), models.AnalysisFailed
	}

	text, err := RequestAnalysis(ctx, provider, account.Name, c)
	if err != nil {
		logger.WithError(err).WithField("provider", provider.Name()).Error("Text analyzer call failed")
		return llm.Degraded(fallbackAnalysis(SummaryFailed), err.Error()), models.AnalysisFailed
	}

	analysis, err := ParseAnalysis(text)
	if err != nil {
		logger.WithError(err).WithField("response", text).Warn("Failed to parse analyzer response")
		return llm.Degraded(fallbackAnalysis(SummaryParseFailed), err.Error()), models.AnalysisCompleted
	}

	return llm.Ok(analysis), models.AnalysisCompleted
}

func keywordExtraction(communicationID uuid.UUID, scan scanner.ScanResult, status string) *models.SignalExtraction {
	return &models.SignalExtraction{
		CommunicationID:   communicationID,
		ChurnSignals:      scan.ChurnSignals,
		PositiveSignals:   scan.PositiveSignals,
		ActionSignals:     scan.ActionSignals,
		ComplianceSignals: scan.ComplianceSignals,
		KeywordSeverity:   string(scan.KeywordSeverity),
		AnalysisStatus:    status,
		Signals:           []string{},
		ActionItems:       []string{},
	}
}

// deepExtraction combines keyword and analyzer fields
func deepExtraction(communicationID uuid.UUID, scan scanner.ScanResult, analysis Analysis, status string) *models.SignalExtraction {
	e := keywordExtraction(communicationID, scan, status)
	e.LLMAnalyzed = status == models.AnalysisCompleted
	e.Sentiment = analysis.Sentiment
	e.Summary = analysis.Summary
	e.Signals = analysis.Signals
	e.ActionItems = analysis.ActionItems
	return e
}

// RemindersFromCommitments creates one reminder per commitment with a description.
// Due dates outside YYYY-MM-DD are dropped rather than rejected.
func RemindersFromCommitments(accountID, communicationID uuid.UUID, commitments []Commitment) []models.Reminder {
	reminders := make([]models.Reminder, 0, len(commitments))
	for _, commitment := range commitments {
		if commitment.Description == "" {
			continue
		}
		source := communicationID
		reminders = append(reminders, models.Reminder{
			AccountID:             accountID,
			SourceCommunicationID: &source,
			Description:           commitment.Description,
			DueDate:               ParseDueDate(commitment.DueDate),
		})
	}
	return reminders
}

// Package health computes account health snapshots from recent communications,
// contacts and the previous snapshot.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/store"
)

// RecentCommunications is how many processed communications feed a calculation
const RecentCommunications = 10

// ErrAccountNotFound is returned when calculating health for an unknown account
var ErrAccountNotFound = fmt.Errorf("account %w", store.ErrNotFound)

// Calculator appends a new health snapshot on every call
type Calculator struct {
	store    store.Store
	assessor Assessor
	now      func() time.Time
}

// NewCalculator creates a new health calculator
func NewCalculator(st store.Store, assessor Assessor) *Calculator {
	return &Calculator{
		store:    st,
		assessor: assessor,
		now:      time.Now,
	}
}

// WithStore returns a calculator bound to st, typically a transaction
func (c *Calculator) WithStore(st store.Store) *Calculator {
	clone := *c
	clone.store = st
	return &clone
}

// WithClock returns a calculator that reads the time from now
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	clone := *c
	clone.now = now
	return &clone
}

// Calculate scores the account, applies decay and trend, stores the snapshot
// and returns it. An assessment failure never fails the calculation.
func (c *Calculator) Calculate(ctx context.Context, accountID uuid.UUID, trigger string) (*models.HealthScore, error) {
	account, err := c.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	communications, err := c.store.ListRecentCommunications(ctx, accountID, RecentCommunications)
	if err != nil {
		return nil, fmt.Errorf("failed to load communications: %w", err)
	}

	ids := make([]uuid.UUID, len(communications))
	for i, comm := range communications {
		ids[i] = comm.ID
	}

	var extractions []models.SignalExtraction
	if len(ids) > 0 {
		extractions, err = c.store.ListExtractionsByCommunications(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load extractions: %w", err)
		}
	}

	contacts, err := c.store.CountContacts(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}

	now := c.now().UTC()
	var daysSince *int
	if len(communications) > 0 {
		d := DaysSince(communications[0].ContentDate, now)
		daysSince = &d
	}

	pillars := Pillars{
		Sentiment:    SentimentScore(extractions),
		Engagement:   EngagementScore(daysSince, account.CheckInIntervalDays),
		Request:      RequestScore(extractions),
		Relationship: RelationshipScore(contacts),
		Satisfaction: SatisfactionScore(extractions),
		Expansion:    ExpansionScore(extractions),
	}

	score, decayed := ApplyDecay(pillars.Overall(), daysSince, account.CheckInIntervalDays)
	if decayed && trigger == models.TriggerDailyJob {
		trigger = models.TriggerDecay
	}
	status := StatusFor(score)

	var previous *int
	prior, err := c.store.LatestHealthScore(ctx, accountID)
	switch {
	case err == nil:
		prev := prior.OverallScore
		previous = &prev
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to load previous health score: %w", err)
	}
	change, direction := Trend(score, previous)

	var signals []string
	for _, e := range extractions {
		signals = append(signals, e.Signals...)
	}

	summary := AssessmentUnavailable
	if c.assessor != nil {
		assessment := c.assessor.Assess(ctx, AssessmentInput{
			AccountName: account.Name,
			Score:       score,
			Status:      status,
			Sentiment:   pillars.Sentiment,
			Engagement:  pillars.Engagement,
			Signals:     uniqueSignals(signals, maxAssessmentSignals),
		})
		if assessment.Degraded {
			logrus.WithField("account_id", accountID).WithField("reason", assessment.Reason).Debug("Using fallback health assessment")
		}
		summary = assessment.Value
	}

	snapshot := &models.HealthScore{
		AccountID:         accountID,
		OverallScore:      score,
		OverallStatus:     status,
		SentimentScore:    pillars.Sentiment,
		EngagementScore:   pillars.Engagement,
		RequestScore:      pillars.Request,
		RelationshipScore: pillars.Relationship,
		SatisfactionScore: pillars.Satisfaction,
		ExpansionScore:    pillars.Expansion,
		AISummary:         summary,
		PreviousScore:     previous,
		ScoreChange:       change,
		TrendDirection:    direction,
		TriggeredBy:       trigger,
		DecayApplied:      decayed,
		CalculatedAt:      now,
	}

	if err := c.store.CreateHealthScore(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to store health score: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"score":      score,
		"status":     status,
		"trend":      direction,
		"trigger":    trigger,
		"decay":      decayed,
	}).Info("Health score calculated")

	return snapshot, nil
}

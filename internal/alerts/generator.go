// Package alerts runs the daily health pass over active accounts and raises
// deduplicated health-risk, renewal-due and ATO-expiring alerts.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/store"
)

const (
	// HealthRiskThreshold is the overall score below which a health-risk alert is raised
	HealthRiskThreshold = 50
	// RenewalWindowDays is how far ahead contract end dates are checked
	RenewalWindowDays = 30
	// ATOWindowDays is how far ahead ATO expiry dates are checked
	ATOWindowDays = 60
)

const atoActive = "active"
const contractActive = "active"

// Generator evaluates one account after its daily recalculation
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a new alert generator
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// WithClock returns a generator that reads the time from now
func (g *Generator) WithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Evaluate creates the alerts the account qualifies for and returns the ones
// it created. Existing unread alerts suppress duplicates; nothing is ever
// marked read or removed here. st should be the account's transaction.
func (g *Generator) Evaluate(ctx context.Context, st store.Store, account models.Account, score *models.HealthScore) ([]models.Alert, error) {
	var created []models.Alert
	link := accountLink(account)

	if score != nil && score.OverallScore < HealthRiskThreshold {
		alert := models.Alert{
			Type:     models.AlertError,
			Category: models.CategoryHealthRisk,
			Title:    fmt.Sprintf("Health Risk: %s", account.Name),
			Message:  healthRiskMessage(score),
			Link:     link,
		}
		ok, err := g.createUnlessExists(ctx, st, &alert, "")
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, alert)
		}
	}

	contracts, err := st.ListContracts(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	today := truncateDay(g.now())
	for _, contract := range contracts {
		if !strings.EqualFold(contract.Status, contractActive) {
			continue
		}

		if days, ok := daysUntil(today, contract.EndDate, RenewalWindowDays); ok {
			alert := models.Alert{
				Type:     models.AlertWarning,
				Category: models.CategoryRenewalDue,
				Title:    fmt.Sprintf("Renewal Due: %s", account.Name),
				Message:  fmt.Sprintf("Contract '%s' expires in %d days.", contract.Name, days),
				Link:     link,
			}
			ok, err := g.createUnlessExists(ctx, st, &alert, contract.Name)
			if err != nil {
				return nil, err
			}
			if ok {
				created = append(created, alert)
			}
		}

		if !strings.EqualFold(contract.ATOStatus, atoActive) || contract.ATOExpiryDate == nil {
			continue
		}
		if days, ok := daysUntil(today, *contract.ATOExpiryDate, ATOWindowDays); ok {
			alert := models.Alert{
				Type:     models.AlertError,
				Category: models.CategoryATOExpiring,
				Title:    fmt.Sprintf("ATO Expiring: %s", account.Name),
				Message: fmt.Sprintf("ATO for contract '%s' expires in %d days. Renewal review typically takes 3-6 months; start the reauthorization package now.",
					contract.Name, days),
				Link: link,
			}
			ok, err := g.createUnlessExists(ctx, st, &alert, "")
			if err != nil {
				return nil, err
			}
			if ok {
				created = append(created, alert)
			}
		}
	}

	return created, nil
}

func (g *Generator) createUnlessExists(ctx context.Context, st store.Store, alert *models.Alert, messageContains string) (bool, error) {
	exists, err := st.HasUnreadAlert(ctx, alert.Title, messageContains)
	if err != nil {
		return false, fmt.Errorf("failed to check existing alerts: %w", err)
	}
	if exists {
		logrus.WithFields(logrus.Fields{
			"title":    alert.Title,
			"category": alert.Category,
		}).Debug("Unread alert already exists, skipping")
		return false, nil
	}

	if err := st.CreateAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("failed to create %s alert: %w", alert.Category, err)
	}

	logrus.WithFields(logrus.Fields{
		"title":    alert.Title,
		"category": alert.Category,
	}).Info("Created alert")
	return true, nil
}

func healthRiskMessage(score *models.HealthScore) string {
	if score.ScoreChange != nil && *score.ScoreChange < 0 {
		return fmt.Sprintf("Health score dropped to %d (down %d points). Immediate attention required.",
			score.OverallScore, -*score.ScoreChange)
	}
	return fmt.Sprintf("Health score dropped to %d. Immediate attention required.", score.OverallScore)
}

func accountLink(account models.Account) string {
	return fmt.Sprintf("/accounts/%s", account.ID)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysUntil reports the whole days from today to date when date falls in [today, today+window]
func daysUntil(today, date time.Time, window int) (int, bool) {
	days := int(truncateDay(date).Sub(today).Hours() / 24)
	if days < 0 || days > window {
		return 0, false
	}
	return days, true
}

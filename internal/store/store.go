// Package store persists accounts, communications, extractions, health
// snapshots, reminders, contracts, alerts and provider configuration.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/customerpulse/pulse/internal/models"
)

// ErrNotFound is returned by point lookups that match nothing
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary used by the pipeline and the HTTP surface.
// Health snapshots and signal extractions are insert-only.
type Store interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListAccounts(ctx context.Context, activeOnly bool) ([]models.Account, error)

	CreateContact(ctx context.Context, c *models.Contact) error
	ListContacts(ctx context.Context, accountID uuid.UUID) ([]models.Contact, error)
	CountContacts(ctx context.Context, accountID uuid.UUID) (int, error)

	CreateCommunication(ctx context.Context, c *models.Communication) error
	GetCommunication(ctx context.Context, id uuid.UUID) (*models.Communication, error)
	MarkCommunicationProcessed(ctx context.Context, id uuid.UUID) error
	// ListRecentCommunications returns processed communications, most recent content date first
	ListRecentCommunications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Communication, error)

	CreateExtraction(ctx context.Context, e *models.SignalExtraction) error
	GetExtractionByCommunication(ctx context.Context, communicationID uuid.UUID) (*models.SignalExtraction, error)
	ListExtractionsByCommunications(ctx context.Context, communicationIDs []uuid.UUID) ([]models.SignalExtraction, error)

	CreateReminder(ctx context.Context, r *models.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	UpdateReminder(ctx context.Context, r *models.Reminder) error
	// ListReminders orders by due date ascending with undated reminders last
	ListReminders(ctx context.Context, accountID uuid.UUID) ([]models.Reminder, error)

	CreateHealthScore(ctx context.Context, h *models.HealthScore) error
	LatestHealthScore(ctx context.Context, accountID uuid.UUID) (*models.HealthScore, error)
	ListHealthScores(ctx context.Context, accountID uuid.UUID, limit int) ([]models.HealthScore, error)

	CreateContract(ctx context.Context, c *models.Contract) error
	ListContracts(ctx context.Context, accountID uuid.UUID) ([]models.Contract, error)
	// ListContractsEndingBetween returns active contracts whose end date falls in [from, to], soonest first
	ListContractsEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Contract, error)

	CreateAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, id uuid.UUID) error
	MarkAllAlertsRead(ctx context.Context) (int, error)
	// HasUnreadAlert reports whether an unread alert with the title exists whose
	// message contains messageContains (ignored when empty)
	HasUnreadAlert(ctx context.Context, title, messageContains string) (bool, error)

	SaveLLMConfig(ctx context.Context, c *models.LLMConfig) error
	ActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error)
	ListLLMConfigs(ctx context.Context) ([]models.LLMConfig, error)

	// WithTx runs fn against a transactional view of the store. Writes made
	// through that view are discarded when fn returns an error.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
	Close()
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

const defaultListLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customerpulse/pulse/internal/models"
)

func newAccount(t *testing.T, s Store, name string, active bool) models.Account {
	t.Helper()
	a := models.Account{Name: name, Tier: "enterprise", CheckInIntervalDays: 14, IsActive: active}
	require.NoError(t, s.CreateAccount(context.Background(), &a))
	return a
}

func TestMemoryAccounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	acme := newAccount(t, s, "Acme", true)
	newAccount(t, s, "Dormant", false)
	newAccount(t, s, "Beta", true)

	got, err := s.GetAccount(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := s.ListAccounts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Acme", active[0].Name)
	assert.Equal(t, "Beta", active[1].Name)

	all, err := s.ListAccounts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryRecentCommunications(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		c := models.Communication{
			AccountID:   account.ID,
			Type:        models.CommunicationEmail,
			Content:     "note",
			ContentDate: base.AddDate(0, 0, i),
			IsProcessed: i != 11,
		}
		require.NoError(t, s.CreateCommunication(ctx, &c))
	}

	recent, err := s.ListRecentCommunications(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, base.AddDate(0, 0, 10), recent[0].ContentDate, "unprocessed communication is excluded")
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].ContentDate.After(recent[i].ContentDate))
	}
}

func TestMemoryHealthScoresNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LatestHealthScore(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, score := range []int{50, 60, 70} {
		h := models.HealthScore{AccountID: account.ID, OverallScore: score, CalculatedAt: at}
		require.NoError(t, s.CreateHealthScore(ctx, &h))
	}

	latest, err := s.LatestHealthScore(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, latest.OverallScore, "ties on timestamp resolve to the latest insert")

	history, err := s.ListHealthScores(ctx, account.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 70, history[0].OverallScore)
	assert.Equal(t, 60, history[1].OverallScore)
}

func TestMemoryRemindersOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)

	late := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	early := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []models.Reminder{
		{AccountID: account.ID, Description: "undated"},
		{AccountID: account.ID, Description: "late", DueDate: &late},
		{AccountID: account.ID, Description: "early", DueDate: &early},
	} {
		r := r
		require.NoError(t, s.CreateReminder(ctx, &r))
	}

	reminders, err := s.ListReminders(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 3)
	assert.Equal(t, "early", reminders[0].Description)
	assert.Equal(t, "late", reminders[1].Description)
	assert.Equal(t, "undated", reminders[2].Description)

	updated := reminders[0]
	updated.IsCompleted = true
	require.NoError(t, s.UpdateReminder(ctx, &updated))

	got, err := s.GetReminder(ctx, updated.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	assert.ErrorIs(t, s.UpdateReminder(ctx, &models.Reminder{ID: uuid.New()}), ErrNotFound)
}

func TestMemoryAlerts(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	first := models.Alert{Title: "Renewal Due: Acme", Message: "Contract 'Platform' expires in 10 days."}
	second := models.Alert{Title: "Health Risk: Acme", Message: "Health score dropped to 42."}
	require.NoError(t, s.CreateAlert(ctx, &first))
	require.NoError(t, s.CreateAlert(ctx, &second))

	tests := []struct {
		name     string
		title    string
		contains string
		want     bool
	}{
		{"title only", "Health Risk: Acme", "", true},
		{"title and contract", "Renewal Due: Acme", "Platform", true},
		{"other contract", "Renewal Due: Acme", "Support", false},
		{"unknown title", "Health Risk: Beta", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasUnreadAlert(ctx, tt.title, tt.contains)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, s.MarkAlertRead(ctx, second.ID))
	exists, err := s.HasUnreadAlert(ctx, "Health Risk: Acme", "")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, s.MarkAlertRead(ctx, uuid.New()), ErrNotFound)

	unread, err := s.ListAlerts(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, first.ID, unread[0].ID)

	count, err := s.MarkAllAlertsRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	all, err := s.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryWithTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)

	existing := models.Alert{Title: "Kept"}
	require.NoError(t, s.CreateAlert(ctx, &existing))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		h := models.HealthScore{AccountID: account.ID, OverallScore: 20}
		require.NoError(t, tx.CreateHealthScore(ctx, &h))
		a := models.Alert{Title: "Discarded"}
		require.NoError(t, tx.CreateAlert(ctx, &a))
		require.NoError(t, tx.MarkAlertRead(ctx, existing.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.LatestHealthScore(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	alerts, err := s.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Kept", alerts[0].Title)
	assert.False(t, alerts[0].IsRead)
}

func TestMemoryWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.WithTx(ctx, func(tx Store) error {
			h := models.HealthScore{AccountID: account.ID, OverallScore: 20}
			require.NoError(t, tx.CreateHealthScore(ctx, &h))
			panic("boom")
		})
	})

	_, err := s.LatestHealthScore(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// the transaction lock was released
	err = s.WithTx(ctx, func(tx Store) error {
		a := models.Alert{Title: "After"}
		return tx.CreateAlert(ctx, &a)
	})
	require.NoError(t, err)
}

func TestMemoryWithTxRollsBackOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemory()

	err := s.WithTx(ctx, func(tx Store) error {
		a := models.Account{Name: "Late", IsActive: true}
		require.NoError(t, tx.CreateAccount(ctx, &a))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	accounts, err := s.ListAccounts(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMemoryWithTxCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)

	err := s.WithTx(ctx, func(tx Store) error {
		h := models.HealthScore{AccountID: account.ID, OverallScore: 80}
		if err := tx.CreateHealthScore(ctx, &h); err != nil {
			return err
		}
		return tx.WithTx(ctx, func(inner Store) error {
			a := models.Alert{Title: "Nested"}
			return inner.CreateAlert(ctx, &a)
		})
	})
	require.NoError(t, err)

	latest, err := s.LatestHealthScore(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, latest.OverallScore)

	exists, err := s.HasUnreadAlert(ctx, "Nested", "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryLLMConfigSingleActive(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.ActiveLLMConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := models.LLMConfig{Provider: "openai", IsActive: true}
	require.NoError(t, s.SaveLLMConfig(ctx, &first))
	second := models.LLMConfig{Provider: "anthropic", IsActive: true}
	require.NoError(t, s.SaveLLMConfig(ctx, &second))

	active, err := s.ActiveLLMConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", active.Provider)

	configs, err := s.ListLLMConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.False(t, configs[0].IsActive)
}

func TestMemoryContractsEndingBetween(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	account := newAccount(t, s, "Acme", true)
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, c := range []models.Contract{
		{AccountID: account.ID, Name: "Soon", Status: "active", EndDate: today.AddDate(0, 0, 10)},
		{AccountID: account.ID, Name: "Later", Status: "active", EndDate: today.AddDate(0, 0, 80)},
		{AccountID: account.ID, Name: "Far", Status: "active", EndDate: today.AddDate(1, 0, 0)},
		{AccountID: account.ID, Name: "Expired", Status: "expired", EndDate: today.AddDate(0, 0, 5)},
	} {
		c := c
		require.NoError(t, s.CreateContract(ctx, &c))
	}

	contracts, err := s.ListContractsEndingBetween(ctx, today, today.AddDate(0, 0, 90), 5)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, "Soon", contracts[0].Name)
	assert.Equal(t, "Later", contracts[1].Name)
}

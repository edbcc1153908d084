package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/store"
)

const (
	renewalHorizonDays = 90
	dashboardListSize  = 5
)

type renewalSummary struct {
	ID           uuid.UUID `json:"id"`
	AccountName  string    `json:"account_name"`
	ContractName string    `json:"contract_name"`
	EndDate      time.Time `json:"end_date"`
	ARR          float64   `json:"arr"`
}

type riskyAccount struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Tier        string    `json:"tier"`
	Score       int       `json:"score"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

type statsResponse struct {
	TotalAccounts      int              `json:"total_accounts"`
	HealthDistribution map[string]int   `json:"health_distribution"`
	AverageScore       int              `json:"average_score"`
	UpcomingRenewals   []renewalSummary `json:"upcoming_renewals"`
	ARRAtRisk          float64          `json:"arr_at_risk"`
	RiskyAccounts      []riskyAccount   `json:"risky_accounts"`
}

// dashboardStats summarizes the latest snapshot of every active account.
// Accounts that were never scored are counted but left out of the distribution.
func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.Store.ListAccounts(ctx, true)
	if err != nil {
		writeInternal(w, err)
		return
	}

	stats := statsResponse{
		TotalAccounts: len(accounts),
		HealthDistribution: map[string]int{
			models.StatusHealthy: 0,
			models.StatusWarning: 0,
			models.StatusAtRisk:  0,
		},
		UpcomingRenewals: []renewalSummary{},
		RiskyAccounts:    []riskyAccount{},
	}

	names := make(map[uuid.UUID]string, len(accounts))
	total, scored := 0, 0
	for _, account := range accounts {
		names[account.ID] = account.Name

		latest, err := h.Store.LatestHealthScore(ctx, account.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			writeInternal(w, err)
			return
		}

		stats.HealthDistribution[latest.OverallStatus]++
		total += latest.OverallScore
		scored++

		if latest.OverallScore < 70 {
			stats.RiskyAccounts = append(stats.RiskyAccounts, riskyAccount{
				ID:          account.ID,
				Name:        account.Name,
				Tier:        account.Tier,
				Score:       latest.OverallScore,
				Status:      latest.OverallStatus,
				LastUpdated: latest.CalculatedAt,
			})
		}
	}
	if scored > 0 {
		stats.AverageScore = total / scored
	}

	sort.SliceStable(stats.RiskyAccounts, func(i, j int) bool {
		return stats.RiskyAccounts[i].Score < stats.RiskyAccounts[j].Score
	})
	if len(stats.RiskyAccounts) > dashboardListSize {
		stats.RiskyAccounts = stats.RiskyAccounts[:dashboardListSize]
	}

	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	contracts, err := h.Store.ListContractsEndingBetween(ctx, today, today.AddDate(0, 0, renewalHorizonDays), dashboardListSize)
	if err != nil {
		writeInternal(w, err)
		return
	}
	for _, c := range contracts {
		name, ok := names[c.AccountID]
		if !ok {
			continue
		}
		stats.UpcomingRenewals = append(stats.UpcomingRenewals, renewalSummary{
			ID:           c.ID,
			AccountName:  name,
			ContractName: c.Name,
			EndDate:      c.EndDate,
			ARR:          c.ARR,
		})
		stats.ARRAtRisk += c.ARR
	}

	writeJSON(w, http.StatusOK, stats)
}

// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/intelligence"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/secrets"
	"github.com/customerpulse/pulse/internal/storage"
	"github.com/customerpulse/pulse/internal/store"
)

// Processor ingests communications
type Processor interface {
	ProcessCommunication(ctx context.Context, c models.Communication) (*intelligence.Outcome, error)
}

// Calculator recalculates health on demand
type Calculator interface {
	Calculate(ctx context.Context, accountID uuid.UUID, trigger string) (*models.HealthScore, error)
}

// JobTrigger starts the daily job outside its schedule
type JobTrigger interface {
	Run(trigger string)
}

// MetricsSource reports metrics of the last daily run as JSON
type MetricsSource interface {
	GetMetrics() string
}

// Handler serves the HTTP surface. Storage and Cipher are optional; the
// endpoints that need them answer 503 when they are missing.
type Handler struct {
	Store      store.Store
	Processor  Processor
	Calculator Calculator
	Jobs       JobTrigger
	Metrics    MetricsSource
	Storage    storage.StorageInterface
	Cipher     secrets.Cipher

	validate *validator.Validate
	now      func() time.Time
}

// NewRouter wires every route onto a gorilla/mux router
func NewRouter(h *Handler) *mux.Router {
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
		h.validate.RegisterTagNameFunc(jsonFieldName)
	}
	if h.now == nil {
		h.now = time.Now
	}

	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/health", h.healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.metrics).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/accounts", h.listAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", h.createAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}", h.getAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/contacts", h.listContacts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/contacts", h.createContact).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/contracts", h.listContracts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/contracts", h.createContract).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/reminders", h.listReminders).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/health", h.healthHistory).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/health/calculate", h.calculateHealth).Methods(http.MethodPost)

	api.HandleFunc("/communications", h.submitCommunication).Methods(http.MethodPost)

	api.HandleFunc("/reminders/{id}", h.updateReminder).Methods(http.MethodPatch)

	api.HandleFunc("/alerts", h.listAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/read-all", h.markAllAlertsRead).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}/read", h.markAlertRead).Methods(http.MethodPost)

	api.HandleFunc("/dashboard/stats", h.dashboardStats).Methods(http.MethodGet)

	api.HandleFunc("/jobs/daily", h.triggerDailyJob).Methods(http.MethodPost)
	api.HandleFunc("/reports", h.listReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{name}", h.getReport).Methods(http.MethodGet)

	api.HandleFunc("/llm/configs", h.listLLMConfigs).Methods(http.MethodGet)
	api.HandleFunc("/llm/configs", h.saveLLMConfig).Methods(http.MethodPost)

	return router
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

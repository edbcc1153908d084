package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/alerts"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/storage"
	"github.com/customerpulse/pulse/internal/store"
)

const (
	defaultCheckInInterval = 14
	defaultHistoryLimit    = 30
	defaultAlertLimit      = 50
)

type accountRequest struct {
	Name                string `json:"name" validate:"required,max=255"`
	Tier                string `json:"tier" validate:"omitempty,max=50"`
	Industry            string `json:"industry" validate:"omitempty,max=100"`
	CheckInIntervalDays int    `json:"check_in_interval_days" validate:"omitempty,min=1,max=365"`
	IsActive            *bool  `json:"is_active"`
}

type contactRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Email     string `json:"email" validate:"omitempty,email"`
	RoleType  string `json:"role_type" validate:"omitempty,max=50"`
	IsPrimary bool   `json:"is_primary"`
}

type contractRequest struct {
	Name               string     `json:"contract_name" validate:"required,max=255"`
	ContractType       string     `json:"contract_type" validate:"required"`
	Status             string     `json:"status" validate:"required,oneof=active draft expired"`
	EffectiveDate      time.Time  `json:"effective_date" validate:"required"`
	EndDate            time.Time  `json:"end_date" validate:"required,gtfield=EffectiveDate"`
	AutoRenewal        bool       `json:"auto_renewal"`
	NoticeDays         int        `json:"notice_period_days" validate:"omitempty,min=0"`
	ARR                float64    `json:"arr" validate:"omitempty,min=0"`
	FedRAMPRequired    bool       `json:"fedramp_required"`
	FISMALevel         string     `json:"fisma_level" validate:"omitempty,oneof=low moderate high"`
	HIPAARequired      bool       `json:"hipaa_required"`
	Section508Required bool       `json:"section_508_required"`
	ATOStatus          string     `json:"ato_status" validate:"omitempty,oneof=active pending expired none"`
	ATOExpiryDate      *time.Time `json:"ato_expiry_date"`
}

type communicationRequest struct {
	AccountID   string     `json:"account_id" validate:"required,uuid"`
	Type        string     `json:"input_type" validate:"omitempty,oneof=email call meeting chat"`
	Content     string     `json:"content" validate:"required"`
	ContentDate *time.Time `json:"content_date"`
	Sender      string     `json:"sender" validate:"omitempty,max=255"`
}

type reminderUpdateRequest struct {
	Description *string    `json:"description" validate:"omitempty,min=1"`
	DueDate     *time.Time `json:"due_date"`
	IsCompleted *bool      `json:"is_completed"`
}

type llmConfigRequest struct {
	Provider  string `json:"provider" validate:"required,oneof=anthropic openai google mock"`
	ModelName string `json:"model_name" validate:"omitempty,max=100"`
	APIKey    string `json:"api_key" validate:"required_unless=Provider mock"`
	IsActive  *bool  `json:"is_active"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
	}
	if err := h.Store.Ping(r.Context()); err != nil {
		logrus.WithError(err).Warn("Store ping failed")
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	writeJSON(w, status, body)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.Metrics.GetMetrics()))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := h.Store.ListAccounts(r.Context(), activeOnly)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account := models.Account{
		Name:                req.Name,
		Tier:                req.Tier,
		Industry:            req.Industry,
		CheckInIntervalDays: req.CheckInIntervalDays,
		IsActive:            true,
	}
	if account.CheckInIntervalDays == 0 {
		account.CheckInIntervalDays = defaultCheckInInterval
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	if err := h.Store.CreateAccount(r.Context(), &account); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// loadAccount resolves the {id} path variable, writing the error response itself
func (h *Handler) loadAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return nil, false
		}
		writeInternal(w, err)
		return nil, false
	}
	return account, true
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) listContacts(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	contacts, err := h.Store.ListContacts(r.Context(), account.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) createContact(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	var req contactRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contact := models.Contact{
		AccountID: account.ID,
		Name:      req.Name,
		Email:     req.Email,
		RoleType:  req.RoleType,
		IsPrimary: req.IsPrimary,
	}
	if err := h.Store.CreateContact(r.Context(), &contact); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	contracts, err := h.Store.ListContracts(r.Context(), account.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	var req contractRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contract := models.Contract{
		AccountID:          account.ID,
		Name:               req.Name,
		ContractType:       req.ContractType,
		Status:             req.Status,
		EffectiveDate:      req.EffectiveDate,
		EndDate:            req.EndDate,
		AutoRenewal:        req.AutoRenewal,
		NoticeDays:         req.NoticeDays,
		ARR:                req.ARR,
		FedRAMPRequired:    req.FedRAMPRequired,
		FISMALevel:         req.FISMALevel,
		HIPAARequired:      req.HIPAARequired,
		Section508Required: req.Section508Required,
		ATOStatus:          req.ATOStatus,
		ATOExpiryDate:      req.ATOExpiryDate,
	}
	if err := h.Store.CreateContract(r.Context(), &contract); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contract)
}

func (h *Handler) submitCommunication(w http.ResponseWriter, r *http.Request) {
	var req communicationRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comm := models.Communication{
		AccountID: uuid.MustParse(req.AccountID),
		Type:      req.Type,
		Content:   req.Content,
		Sender:    req.Sender,
	}
	if req.ContentDate != nil {
		comm.ContentDate = *req.ContentDate
	}

	outcome, err := h.Processor.ProcessCommunication(r.Context(), comm)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (h *Handler) calculateHealth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	score, err := h.Calculator.Calculate(r.Context(), id, models.TriggerManual)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

func (h *Handler) healthHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	scores, err := h.Store.ListHealthScores(r.Context(), account.ID, queryLimit(r, defaultHistoryLimit))
	if err != nil {
		writeInternal(w, err)
		return
	}
	if scores == nil {
		scores = []models.HealthScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	reminders, err := h.Store.ListReminders(r.Context(), account.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *Handler) updateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req reminderUpdateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminder, err := h.Store.GetReminder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		writeInternal(w, err)
		return
	}

	if req.Description != nil {
		reminder.Description = *req.Description
	}
	if req.DueDate != nil {
		reminder.DueDate = req.DueDate
	}
	if req.IsCompleted != nil {
		reminder.IsCompleted = *req.IsCompleted
	}

	if err := h.Store.UpdateReminder(r.Context(), reminder); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	list, err := h.Store.ListAlerts(r.Context(), unreadOnly, queryLimit(r, defaultAlertLimit))
	if err != nil {
		writeInternal(w, err)
		return
	}
	if list == nil {
		list = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) markAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Store.MarkAlertRead(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) markAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.MarkAllAlertsRead(r.Context())
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "updated": n})
}

func (h *Handler) triggerDailyJob(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "daily job is not configured")
		return
	}

	go h.Jobs.Run(alerts.RunManual)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "job_triggered"})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	}

	names, err := h.Storage.List(r.Context(), storage.ReportPrefix)
	if err != nil {
		writeInternal(w, err)
		return
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, strings.TrimPrefix(name, storage.ReportPrefix))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	}

	name := mux.Vars(r)["name"]
	if !strings.HasSuffix(name, ".json") || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid report name")
		return
	}

	data, err := h.Storage.Retrieve(r.Context(), storage.ReportPrefix+name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) listLLMConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Store.ListLLMConfigs(r.Context())
	if err != nil {
		writeInternal(w, err)
		return
	}
	if configs == nil {
		configs = []models.LLMConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (h *Handler) saveLLMConfig(w http.ResponseWriter, r *http.Request) {
	if h.Cipher == nil {
		writeError(w, http.StatusServiceUnavailable, "credential encryption is not configured")
		return
	}

	var req llmConfigRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	encrypted, err := h.Cipher.Encrypt(req.APIKey)
	if err != nil {
		writeInternal(w, err)
		return
	}

	cfg := models.LLMConfig{
		Provider:        req.Provider,
		ModelName:       req.ModelName,
		APIKeyEncrypted: encrypted,
		IsActive:        true,
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}

	if err := h.Store.SaveLLMConfig(r.Context(), &cfg); err != nil {
		writeInternal(w, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    cfg.ModelName,
		"active":   cfg.IsActive,
	}).Info("Saved text analyzer configuration")
	writeJSON(w, http.StatusCreated, cfg)
}

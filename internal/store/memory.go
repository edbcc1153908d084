package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/customerpulse/pulse/internal/models"
)

type memState struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	accounts       map[uuid.UUID]models.Account
	contacts       map[uuid.UUID]models.Contact
	communications map[uuid.UUID]models.Communication
	extractions    map[uuid.UUID]models.SignalExtraction
	reminders      map[uuid.UUID]models.Reminder
	contracts      map[uuid.UUID]models.Contract
	healthScores   []models.HealthScore
	alerts         []models.Alert
	llmConfigs     []models.LLMConfig
}

// Memory is an in-process Store used when no database is configured and in tests.
// Transactions are serialized. An error, a panic or a done context undoes the
// transaction's own writes.
type Memory struct {
	state *memState
	undo  *[]func()
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		state: &memState{
			accounts:       make(map[uuid.UUID]models.Account),
			contacts:       make(map[uuid.UUID]models.Contact),
			communications: make(map[uuid.UUID]models.Communication),
			extractions:    make(map[uuid.UUID]models.SignalExtraction),
			reminders:      make(map[uuid.UUID]models.Reminder),
			contracts:      make(map[uuid.UUID]models.Contract),
		},
	}
}

// record must be called with state.mu held for writing
func (m *Memory) record(fn func()) {
	if m.undo != nil {
		*m.undo = append(*m.undo, fn)
	}
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if m.undo != nil {
		return fn(m)
	}

	m.state.txMu.Lock()
	defer m.state.txMu.Unlock()

	var log []func()
	tx := &Memory{state: m.state, undo: &log}

	// Runs while a panic unwinds too, so only a clean commit keeps the writes.
	committed := false
	defer func() {
		if committed {
			return
		}
		m.state.mu.Lock()
		for i := len(log) - 1; i >= 0; i-- {
			log[i]()
		}
		m.state.mu.Unlock()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	committed = true
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() {}

// Accounts

func (m *Memory) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.accounts[a.ID] = *a
	id := a.ID
	m.record(func() { delete(m.state.accounts, id) })
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	a, ok := m.state.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) ListAccounts(ctx context.Context, activeOnly bool) ([]models.Account, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	out := make([]models.Account, 0, len(m.state.accounts))
	for _, a := range m.state.accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Contacts

func (m *Memory) CreateContact(ctx context.Context, c *models.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.contacts[c.ID] = *c
	id := c.ID
	m.record(func() { delete(m.state.contacts, id) })
	return nil
}

func (m *Memory) ListContacts(ctx context.Context, accountID uuid.UUID) ([]models.Contact, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Contact
	for _, c := range m.state.contacts {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) CountContacts(ctx context.Context, accountID uuid.UUID) (int, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	count := 0
	for _, c := range m.state.contacts {
		if c.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// Communications

func (m *Memory) CreateCommunication(ctx context.Context, c *models.Communication) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.communications[c.ID] = *c
	id := c.ID
	m.record(func() { delete(m.state.communications, id) })
	return nil
}

func (m *Memory) GetCommunication(ctx context.Context, id uuid.UUID) (*models.Communication, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	c, ok := m.state.communications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) MarkCommunicationProcessed(ctx context.Context, id uuid.UUID) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	c, ok := m.state.communications[id]
	if !ok {
		return ErrNotFound
	}
	prev := c
	c.IsProcessed = true
	m.state.communications[id] = c
	m.record(func() { m.state.communications[id] = prev })
	return nil
}

func (m *Memory) ListRecentCommunications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Communication, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Communication
	for _, c := range m.state.communications {
		if c.AccountID == accountID && c.IsProcessed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ContentDate.Equal(out[j].ContentDate) {
			return out[i].ContentDate.After(out[j].ContentDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Signal extractions

func (m *Memory) CreateExtraction(ctx context.Context, e *models.SignalExtraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.extractions[e.ID] = cloneExtraction(*e)
	id := e.ID
	m.record(func() { delete(m.state.extractions, id) })
	return nil
}

func (m *Memory) GetExtractionByCommunication(ctx context.Context, communicationID uuid.UUID) (*models.SignalExtraction, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	for _, e := range m.state.extractions {
		if e.CommunicationID == communicationID {
			out := cloneExtraction(e)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListExtractionsByCommunications(ctx context.Context, communicationIDs []uuid.UUID) ([]models.SignalExtraction, error) {
	wanted := make(map[uuid.UUID]bool, len(communicationIDs))
	for _, id := range communicationIDs {
		wanted[id] = true
	}

	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.SignalExtraction
	for _, e := range m.state.extractions {
		if wanted[e.CommunicationID] {
			out = append(out, cloneExtraction(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Reminders

func (m *Memory) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.reminders[r.ID] = *r
	id := r.ID
	m.record(func() { delete(m.state.reminders, id) })
	return nil
}

func (m *Memory) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	r, ok := m.state.reminders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	prev, ok := m.state.reminders[r.ID]
	if !ok {
		return ErrNotFound
	}
	m.state.reminders[r.ID] = *r
	id := r.ID
	m.record(func() { m.state.reminders[id] = prev })
	return nil
}

func (m *Memory) ListReminders(ctx context.Context, accountID uuid.UUID) ([]models.Reminder, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Reminder
	for _, r := range m.state.reminders {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Health scores

func (m *Memory) CreateHealthScore(ctx context.Context, h *models.HealthScore) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CalculatedAt.IsZero() {
		h.CalculatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.healthScores = append(m.state.healthScores, *h)
	id := h.ID
	m.record(func() {
		m.state.healthScores = removeByID(m.state.healthScores, id, func(s models.HealthScore) uuid.UUID { return s.ID })
	})
	return nil
}

// newest first; snapshots sharing a timestamp are ordered by insertion, latest first
func (m *Memory) scoresFor(accountID uuid.UUID) []models.HealthScore {
	var out []models.HealthScore
	for i := len(m.state.healthScores) - 1; i >= 0; i-- {
		if s := m.state.healthScores[i]; s.AccountID == accountID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CalculatedAt.After(out[j].CalculatedAt)
	})
	return out
}

func (m *Memory) LatestHealthScore(ctx context.Context, accountID uuid.UUID) (*models.HealthScore, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	scores := m.scoresFor(accountID)
	if len(scores) == 0 {
		return nil, ErrNotFound
	}
	return &scores[0], nil
}

func (m *Memory) ListHealthScores(ctx context.Context, accountID uuid.UUID, limit int) ([]models.HealthScore, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	scores := m.scoresFor(accountID)
	if limit = clampLimit(limit); len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// Contracts

func (m *Memory) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.contracts[c.ID] = *c
	id := c.ID
	m.record(func() { delete(m.state.contracts, id) })
	return nil
}

func (m *Memory) ListContracts(ctx context.Context, accountID uuid.UUID) ([]models.Contract, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Contract
	for _, c := range m.state.contracts {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sortContractsByEndDate(out)
	return out, nil
}

func (m *Memory) ListContractsEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Contract, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Contract
	for _, c := range m.state.contracts {
		if c.Status != "active" || c.EndDate.Before(from) || c.EndDate.After(to) {
			continue
		}
		out = append(out, c)
	}
	sortContractsByEndDate(out)

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortContractsByEndDate(contracts []models.Contract) {
	sort.Slice(contracts, func(i, j int) bool {
		if !contracts[i].EndDate.Equal(contracts[j].EndDate) {
			return contracts[i].EndDate.Before(contracts[j].EndDate)
		}
		return contracts[i].Name < contracts[j].Name
	})
}

// Alerts

func (m *Memory) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.alerts = append(m.state.alerts, *a)
	id := a.ID
	m.record(func() {
		m.state.alerts = removeByID(m.state.alerts, id, func(a models.Alert) uuid.UUID { return a.ID })
	})
	return nil
}

func (m *Memory) ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	var out []models.Alert
	for i := len(m.state.alerts) - 1; i >= 0; i-- {
		a := m.state.alerts[i]
		if unreadOnly && a.IsRead {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	for i := range m.state.alerts {
		if m.state.alerts[i].ID != id {
			continue
		}
		if !m.state.alerts[i].IsRead {
			m.state.alerts[i].IsRead = true
			m.record(func() { m.setAlertRead(id, false) })
		}
		return nil
	}
	return ErrNotFound
}

func (m *Memory) MarkAllAlertsRead(ctx context.Context) (int, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	count := 0
	for i := range m.state.alerts {
		if m.state.alerts[i].IsRead {
			continue
		}
		m.state.alerts[i].IsRead = true
		id := m.state.alerts[i].ID
		m.record(func() { m.setAlertRead(id, false) })
		count++
	}
	return count, nil
}

func (m *Memory) setAlertRead(id uuid.UUID, read bool) {
	for i := range m.state.alerts {
		if m.state.alerts[i].ID == id {
			m.state.alerts[i].IsRead = read
			return
		}
	}
}

func (m *Memory) HasUnreadAlert(ctx context.Context, title, messageContains string) (bool, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	for _, a := range m.state.alerts {
		if a.IsRead || a.Title != title {
			continue
		}
		if messageContains == "" || strings.Contains(a.Message, messageContains) {
			return true, nil
		}
	}
	return false, nil
}

// LLM configuration

func (m *Memory) SaveLLMConfig(ctx context.Context, c *models.LLMConfig) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	prev := append([]models.LLMConfig(nil), m.state.llmConfigs...)
	m.record(func() { m.state.llmConfigs = prev })

	replaced := false
	for i := range m.state.llmConfigs {
		if c.IsActive {
			m.state.llmConfigs[i].IsActive = false
		}
		if m.state.llmConfigs[i].ID == c.ID {
			m.state.llmConfigs[i] = *c
			replaced = true
		}
	}
	if !replaced {
		m.state.llmConfigs = append(m.state.llmConfigs, *c)
	}
	return nil
}

func (m *Memory) ActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	for i := len(m.state.llmConfigs) - 1; i >= 0; i-- {
		if c := m.state.llmConfigs[i]; c.IsActive {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListLLMConfigs(ctx context.Context) ([]models.LLMConfig, error) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	return append([]models.LLMConfig(nil), m.state.llmConfigs...), nil
}

func cloneExtraction(e models.SignalExtraction) models.SignalExtraction {
	e.ChurnSignals = cloneStrings(e.ChurnSignals)
	e.PositiveSignals = cloneStrings(e.PositiveSignals)
	e.ActionSignals = cloneStrings(e.ActionSignals)
	e.ComplianceSignals = cloneStrings(e.ComplianceSignals)
	e.Signals = cloneStrings(e.Signals)
	e.ActionItems = cloneStrings(e.ActionItems)
	return e
}

func cloneStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

func removeByID[T any](items []T, id uuid.UUID, idOf func(T) uuid.UUID) []T {
	out := items[:0]
	for _, item := range items {
		if idOf(item) != id {
			out = append(out, item)
		}
	}
	return out
}

package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/customerpulse/pulse/internal/models"
)

//go:embed schema.sql
var schema string

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the pgx-backed Store
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewPostgres connects to the database and verifies the connection
func NewPostgres(ctx context.Context, databaseURL string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool, q: pool}, nil
}

// Migrate creates the tables if they do not exist
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if !p.inTx {
		p.pool.Close()
	}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if p.inTx {
		return fn(p)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Postgres{pool: p.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Accounts

const accountColumns = `id, name, tier, industry, check_in_interval_days, is_active, created_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.Tier, &a.Industry, &a.CheckInIntervalDays, &a.IsActive, &a.CreatedAt)
	return a, err
}

func (p *Postgres) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Name, a.Tier, a.Industry, a.CheckInIntervalDays, a.IsActive, a.CreatedAt)
	return err
}

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	a, err := scanAccount(p.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (p *Postgres) ListAccounts(ctx context.Context, activeOnly bool) ([]models.Account, error) {
	rows, err := p.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE ($1 = false OR is_active) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Account, error) {
		return scanAccount(row)
	})
}

// Contacts

func (p *Postgres) CreateContact(ctx context.Context, c *models.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO contacts (id, account_id, name, email, role_type, is_primary) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.AccountID, c.Name, c.Email, c.RoleType, c.IsPrimary)
	return err
}

func (p *Postgres) ListContacts(ctx context.Context, accountID uuid.UUID) ([]models.Contact, error) {
	rows, err := p.q.Query(ctx, `SELECT id, account_id, name, email, role_type, is_primary FROM contacts
		WHERE account_id = $1 ORDER BY is_primary DESC, name`, accountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contact, error) {
		var c models.Contact
		err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Email, &c.RoleType, &c.IsPrimary)
		return c, err
	})
}

func (p *Postgres) CountContacts(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := p.q.QueryRow(ctx, `SELECT count(*) FROM contacts WHERE account_id = $1`, accountID).Scan(&count)
	return count, err
}

// Communications

const communicationColumns = `id, account_id, input_type, content, content_date, sender, is_processed, created_at`

func scanCommunication(row pgx.Row) (models.Communication, error) {
	var c models.Communication
	err := row.Scan(&c.ID, &c.AccountID, &c.Type, &c.Content, &c.ContentDate, &c.Sender, &c.IsProcessed, &c.CreatedAt)
	return c, err
}

func (p *Postgres) CreateCommunication(ctx context.Context, c *models.Communication) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO communications (`+communicationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.AccountID, c.Type, c.Content, c.ContentDate, c.Sender, c.IsProcessed, c.CreatedAt)
	return err
}

func (p *Postgres) GetCommunication(ctx context.Context, id uuid.UUID) (*models.Communication, error) {
	c, err := scanCommunication(p.q.QueryRow(ctx, `SELECT `+communicationColumns+` FROM communications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (p *Postgres) MarkCommunicationProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := p.q.Exec(ctx, `UPDATE communications SET is_processed = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListRecentCommunications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Communication, error) {
	rows, err := p.q.Query(ctx, `SELECT `+communicationColumns+` FROM communications
		WHERE account_id = $1 AND is_processed
		ORDER BY content_date DESC, created_at DESC LIMIT $2`, accountID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Communication, error) {
		return scanCommunication(row)
	})
}

// Signal extractions

const extractionColumns = `id, input_id, churn_signals, positive_signals, action_signals, compliance_signals,
	keyword_severity, llm_analyzed, llm_analysis_status, sentiment, summary, signals, action_items, created_at`

func scanExtraction(row pgx.Row) (models.SignalExtraction, error) {
	var e models.SignalExtraction
	err := row.Scan(&e.ID, &e.CommunicationID, &e.ChurnSignals, &e.PositiveSignals, &e.ActionSignals, &e.ComplianceSignals,
		&e.KeywordSeverity, &e.LLMAnalyzed, &e.AnalysisStatus, &e.Sentiment, &e.Summary, &e.Signals, &e.ActionItems, &e.CreatedAt)
	return e, err
}

func (p *Postgres) CreateExtraction(ctx context.Context, e *models.SignalExtraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO signal_extractions (`+extractionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.CommunicationID, cloneStrings(e.ChurnSignals), cloneStrings(e.PositiveSignals),
		cloneStrings(e.ActionSignals), cloneStrings(e.ComplianceSignals), e.KeywordSeverity, e.LLMAnalyzed,
		e.AnalysisStatus, e.Sentiment, e.Summary, cloneStrings(e.Signals), cloneStrings(e.ActionItems), e.CreatedAt)
	return err
}

func (p *Postgres) GetExtractionByCommunication(ctx context.Context, communicationID uuid.UUID) (*models.SignalExtraction, error) {
	e, err := scanExtraction(p.q.QueryRow(ctx, `SELECT `+extractionColumns+` FROM signal_extractions WHERE input_id = $1`, communicationID))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (p *Postgres) ListExtractionsByCommunications(ctx context.Context, communicationIDs []uuid.UUID) ([]models.SignalExtraction, error) {
	if len(communicationIDs) == 0 {
		return nil, nil
	}
	rows, err := p.q.Query(ctx, `SELECT `+extractionColumns+` FROM signal_extractions
		WHERE input_id = ANY($1) ORDER BY created_at DESC`, communicationIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SignalExtraction, error) {
		return scanExtraction(row)
	})
}

// Reminders

const reminderColumns = `id, account_id, source_input_id, description, due_date, is_completed, created_at`

func scanReminder(row pgx.Row) (models.Reminder, error) {
	var r models.Reminder
	err := row.Scan(&r.ID, &r.AccountID, &r.SourceCommunicationID, &r.Description, &r.DueDate, &r.IsCompleted, &r.CreatedAt)
	return r, err
}

func (p *Postgres) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO reminders (`+reminderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.AccountID, r.SourceCommunicationID, r.Description, r.DueDate, r.IsCompleted, r.CreatedAt)
	return err
}

func (p *Postgres) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	r, err := scanReminder(p.q.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (p *Postgres) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	tag, err := p.q.Exec(ctx, `UPDATE reminders SET description = $2, due_date = $3, is_completed = $4 WHERE id = $1`,
		r.ID, r.Description, r.DueDate, r.IsCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListReminders(ctx context.Context, accountID uuid.UUID) ([]models.Reminder, error) {
	rows, err := p.q.Query(ctx, `SELECT `+reminderColumns+` FROM reminders
		WHERE account_id = $1 ORDER BY due_date ASC NULLS LAST, created_at ASC`, accountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Reminder, error) {
		return scanReminder(row)
	})
}

// Health scores

const healthColumns = `id, account_id, overall_score, overall_status, sentiment_score, engagement_score, request_score,
	relationship_score, satisfaction_score, expansion_score, ai_summary, previous_score, score_change,
	trend_direction, triggered_by, decay_applied, calculated_at`

func scanHealthScore(row pgx.Row) (models.HealthScore, error) {
	var h models.HealthScore
	err := row.Scan(&h.ID, &h.AccountID, &h.OverallScore, &h.OverallStatus, &h.SentimentScore, &h.EngagementScore,
		&h.RequestScore, &h.RelationshipScore, &h.SatisfactionScore, &h.ExpansionScore, &h.AISummary,
		&h.PreviousScore, &h.ScoreChange, &h.TrendDirection, &h.TriggeredBy, &h.DecayApplied, &h.CalculatedAt)
	return h, err
}

func (p *Postgres) CreateHealthScore(ctx context.Context, h *models.HealthScore) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CalculatedAt.IsZero() {
		h.CalculatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO health_scores (`+healthColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		h.ID, h.AccountID, h.OverallScore, h.OverallStatus, h.SentimentScore, h.EngagementScore, h.RequestScore,
		h.RelationshipScore, h.SatisfactionScore, h.ExpansionScore, h.AISummary, h.PreviousScore, h.ScoreChange,
		h.TrendDirection, h.TriggeredBy, h.DecayApplied, h.CalculatedAt)
	return err
}

func (p *Postgres) LatestHealthScore(ctx context.Context, accountID uuid.UUID) (*models.HealthScore, error) {
	h, err := scanHealthScore(p.q.QueryRow(ctx, `SELECT `+healthColumns+` FROM health_scores
		WHERE account_id = $1 ORDER BY calculated_at DESC, seq DESC LIMIT 1`, accountID))
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (p *Postgres) ListHealthScores(ctx context.Context, accountID uuid.UUID, limit int) ([]models.HealthScore, error) {
	rows, err := p.q.Query(ctx, `SELECT `+healthColumns+` FROM health_scores
		WHERE account_id = $1 ORDER BY calculated_at DESC, seq DESC LIMIT $2`, accountID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.HealthScore, error) {
		return scanHealthScore(row)
	})
}

// Contracts

const contractColumns = `id, account_id, contract_name, contract_type, status, effective_date, end_date, auto_renewal,
	notice_period_days, arr, fedramp_required, fisma_level, hipaa_required, section_508_required, ato_status, ato_expiry_date`

func scanContract(row pgx.Row) (models.Contract, error) {
	var c models.Contract
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.ContractType, &c.Status, &c.EffectiveDate, &c.EndDate, &c.AutoRenewal,
		&c.NoticeDays, &c.ARR, &c.FedRAMPRequired, &c.FISMALevel, &c.HIPAARequired, &c.Section508Required,
		&c.ATOStatus, &c.ATOExpiryDate)
	return c, err
}

func (p *Postgres) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.AccountID, c.Name, c.ContractType, c.Status, c.EffectiveDate, c.EndDate, c.AutoRenewal,
		c.NoticeDays, c.ARR, c.FedRAMPRequired, c.FISMALevel, c.HIPAARequired, c.Section508Required,
		c.ATOStatus, c.ATOExpiryDate)
	return err
}

func (p *Postgres) ListContracts(ctx context.Context, accountID uuid.UUID) ([]models.Contract, error) {
	rows, err := p.q.Query(ctx, `SELECT `+contractColumns+` FROM contracts
		WHERE account_id = $1 ORDER BY end_date, contract_name`, accountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contract, error) {
		return scanContract(row)
	})
}

func (p *Postgres) ListContractsEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Contract, error) {
	rows, err := p.q.Query(ctx, `SELECT `+contractColumns+` FROM contracts
		WHERE status = 'active' AND end_date BETWEEN $1 AND $2
		ORDER BY end_date, contract_name LIMIT $3`, from, to, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contract, error) {
		return scanContract(row)
	})
}

// Alerts

const alertColumns = `id, type, category, title, message, link, is_read, created_at`

func (p *Postgres) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := p.q.Exec(ctx, `INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Type, a.Category, a.Title, a.Message, a.Link, a.IsRead, a.CreatedAt)
	return err
}

func (p *Postgres) ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	rows, err := p.q.Query(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE ($1 = false OR NOT is_read) ORDER BY created_at DESC LIMIT $2`, unreadOnly, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Alert, error) {
		var a models.Alert
		err := row.Scan(&a.ID, &a.Type, &a.Category, &a.Title, &a.Message, &a.Link, &a.IsRead, &a.CreatedAt)
		return a, err
	})
}

func (p *Postgres) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	tag, err := p.q.Exec(ctx, `UPDATE alerts SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MarkAllAlertsRead(ctx context.Context) (int, error) {
	tag, err := p.q.Exec(ctx, `UPDATE alerts SET is_read = true WHERE NOT is_read`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) HasUnreadAlert(ctx context.Context, title, messageContains string) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM alerts
		WHERE NOT is_read AND title = $1 AND ($2::text = '' OR strpos(message, $2::text) > 0)
	)`, title, messageContains).Scan(&exists)
	return exists, err
}

// LLM configuration

const llmConfigColumns = `id, provider, model_name, api_key_encrypted, is_active`

func (p *Postgres) SaveLLMConfig(ctx context.Context, c *models.LLMConfig) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	return p.WithTx(ctx, func(tx Store) error {
		q := tx.(*Postgres).q
		if c.IsActive {
			if _, err := q.Exec(ctx, `UPDATE llm_configs SET is_active = false WHERE is_active AND id <> $1`, c.ID); err != nil {
				return err
			}
		}
		_, err := q.Exec(ctx, `INSERT INTO llm_configs (`+llmConfigColumns+`) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET provider = EXCLUDED.provider, model_name = EXCLUDED.model_name,
				api_key_encrypted = EXCLUDED.api_key_encrypted, is_active = EXCLUDED.is_active`,
			c.ID, c.Provider, c.ModelName, c.APIKeyEncrypted, c.IsActive)
		return err
	})
}

func scanLLMConfig(row pgx.Row) (models.LLMConfig, error) {
	var c models.LLMConfig
	err := row.Scan(&c.ID, &c.Provider, &c.ModelName, &c.APIKeyEncrypted, &c.IsActive)
	return c, err
}

func (p *Postgres) ActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	c, err := scanLLMConfig(p.q.QueryRow(ctx, `SELECT `+llmConfigColumns+` FROM llm_configs
		WHERE is_active ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (p *Postgres) ListLLMConfigs(ctx context.Context) ([]models.LLMConfig, error) {
	rows, err := p.q.Query(ctx, `SELECT `+llmConfigColumns+` FROM llm_configs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LLMConfig, error) {
		return scanLLMConfig(row)
	})
}

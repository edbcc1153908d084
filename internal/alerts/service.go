package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/health"
	"github.com/customerpulse/pulse/internal/lock"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/notifications"
	"github.com/customerpulse/pulse/internal/storage"
	"github.com/customerpulse/pulse/internal/store"
)

// Run triggers recorded on the report
const (
	RunScheduled = "scheduled"
	RunManual    = "manual"
)

const (
	jobLockKey     = "daily-job"
	defaultLockTTL = 30 * time.Minute
	accountLockTTL = 5 * time.Minute
)

// ErrJobRunning is returned when another daily run holds the job lock
var ErrJobRunning = errors.New("daily job already running")

// Options tune the daily run. Zero values mean sequential processing and no
// archive or digest.
type Options struct {
	Workers  int
	LockTTL  time.Duration
	Storage  storage.StorageInterface
	Notifier notifications.NotificationInterface
}

// Service runs the daily health pass
type Service struct {
	store      store.Store
	calculator *health.Calculator
	generator  *Generator
	locker     lock.Locker
	opts       Options
	metrics    *Metrics
	mu         sync.RWMutex
	now        func() time.Time
}

// Metrics describes the most recent daily run
type Metrics struct {
	RunCount          int            `json:"run_count"`
	LastRun           time.Time      `json:"last_run"`
	LastRunDuration   string         `json:"last_run_duration"`
	LastTrigger       string         `json:"last_trigger"`
	AccountsProcessed int            `json:"accounts_processed"`
	AccountsFailed    int            `json:"accounts_failed"`
	AlertsCreated     map[string]int `json:"alerts_created"`
	ErrorCount        int            `json:"error_count"`
}

type accountResult struct {
	account models.Account
	alerts  []models.Alert
	err     error
}

// NewService creates a new daily job service
func NewService(st store.Store, calculator *health.Calculator, generator *Generator, locker lock.Locker, opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}

	return &Service{
		store:      st,
		calculator: calculator,
		generator:  generator,
		locker:     locker,
		opts:       opts,
		metrics: &Metrics{
			AlertsCreated: make(map[string]int),
		},
		now: time.Now,
	}
}

// WithClock sets the clock used for report timestamps
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunDailyJob recalculates every active account and raises alerts. Each
// account runs in its own transaction; a failing account is rolled back,
// recorded on the report and skipped. Only a failure to start the pass is
// returned as an error.
func (s *Service) RunDailyJob(ctx context.Context, trigger string) (*models.RunReport, error) {
	release, err := s.locker.Acquire(ctx, jobLockKey, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrJobRunning
		}
		return nil, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logrus.WithError(err).Warn("Failed to release daily job lock")
		}
	}()

	start := s.now()
	logrus.WithField("trigger", trigger).Info("Starting daily health run")

	accounts, err := s.store.ListAccounts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}

	results := s.processAll(ctx, accounts)

	report := &models.RunReport{
		StartedAt:     start,
		Trigger:       trigger,
		AlertsCreated: make(map[string]int),
		Alerts:        []models.Alert{},
	}
	for _, r := range results {
		if r.err != nil {
			report.AccountsFailed++
			report.FailedAccounts = append(report.FailedAccounts, r.account.Name)
			continue
		}
		report.AccountsProcessed++
		for _, alert := range r.alerts {
			report.AlertsCreated[alert.Category]++
			report.Alerts = append(report.Alerts, alert)
		}
	}
	sort.Strings(report.FailedAccounts)

	duration := s.now().Sub(start)
	report.Duration = duration.String()

	errorCount := s.publish(ctx, report)
	s.updateMetrics(report, errorCount)

	logrus.WithFields(logrus.Fields{
		"trigger":   trigger,
		"processed": report.AccountsProcessed,
		"failed":    report.AccountsFailed,
		"alerts":    len(report.Alerts),
		"duration":  report.Duration,
	}).Info("Daily health run completed")

	return report, nil
}

// processAll fans accounts out to the configured number of workers and
// returns results in account order
func (s *Service) processAll(ctx context.Context, accounts []models.Account) []accountResult {
	results := make([]accountResult, len(accounts))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = s.processAccount(ctx, accounts[i])
			}
		}()
	}

	for i := range accounts {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func (s *Service) processAccount(ctx context.Context, account models.Account) (result accountResult) {
	result.account = account
	log := logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"account":    account.Name,
	})

	defer func() {
		if p := recover(); p != nil {
			result.alerts = nil
			result.err = fmt.Errorf("panic: %v", p)
			log.WithField("panic", p).Error("Daily run panicked for account")
		}
	}()

	release, err := s.locker.Acquire(ctx, "account:"+account.ID.String(), accountLockTTL)
	if err != nil {
		log.WithError(err).Warn("Skipping account, lock not acquired")
		result.err = err
		return result
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to release account lock")
		}
	}()

	var created []models.Alert
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		score, err := s.calculator.WithStore(tx).Calculate(ctx, account.ID, models.TriggerDailyJob)
		if err != nil {
			return fmt.Errorf("failed to calculate health: %w", err)
		}

		created, err = s.generator.Evaluate(ctx, tx, account, score)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Daily run failed for account, changes rolled back")
		result.err = err
		return result
	}

	result.alerts = created
	return result
}

// publish archives the report and sends the digest, returning how many of
// those steps failed
func (s *Service) publish(ctx context.Context, report *models.RunReport) int {
	failures := 0

	if s.opts.Storage != nil {
		data, err := json.MarshalIndent(report, "", "  ")
		if err == nil {
			err = s.opts.Storage.Store(ctx, storage.ReportName(report.StartedAt), data)
		}
		if err != nil {
			logrus.WithError(err).Error("Failed to archive run report")
			failures++
		}
	}

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.SendReport(ctx, report); err != nil {
			logrus.WithError(err).Error("Failed to send run digest")
			failures++
		}
	}

	return failures
}

func (s *Service) updateMetrics(report *models.RunReport, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.RunCount++
	s.metrics.LastRun = report.StartedAt
	s.metrics.LastRunDuration = report.Duration
	s.metrics.LastTrigger = report.Trigger
	s.metrics.AccountsProcessed = report.AccountsProcessed
	s.metrics.AccountsFailed = report.AccountsFailed
	s.metrics.ErrorCount = errorCount

	s.metrics.AlertsCreated = make(map[string]int, len(report.AlertsCreated))
	for category, n := range report.AlertsCreated {
		s.metrics.AlertsCreated[category] = n
	}
}

// GetMetrics returns metrics of the last run as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

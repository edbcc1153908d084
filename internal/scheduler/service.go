package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/alerts"
	"github.com/customerpulse/pulse/internal/models"
)

// Runner is the daily job the scheduler invokes
type Runner interface {
	RunDailyJob(ctx context.Context, trigger string) (*models.RunReport, error)
}

// Service owns the cron lifecycle for the daily health job
type Service struct {
	schedule string
	timeout  time.Duration
	runner   Runner
	cron     *cron.Cron
	wg       sync.WaitGroup
}

// NewService creates a new scheduler service. schedule is a six-field cron
// expression with seconds first, evaluated in loc.
func NewService(schedule string, loc *time.Location, timeout time.Duration, runner Runner) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		schedule: schedule,
		timeout:  timeout,
		runner:   runner,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
	}
}

// Start registers the daily job and starts the cron loop
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		logrus.Info("Starting scheduled daily health run")
		s.Run(alerts.RunScheduled)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.schedule)
	return nil
}

// Run executes the daily job once with the configured timeout. Manual
// triggers go through here as well so both paths share the same limits.
func (s *Service) Run(trigger string) {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.RunDailyJob(ctx, trigger); err != nil {
		if errors.Is(err, alerts.ErrJobRunning) {
			logrus.Warn("Daily health run skipped, another run is in progress")
			return
		}
		logrus.Errorf("Daily health run failed: %v", err)
	}
}

// Stop stops the cron loop and waits for a running job to finish or ctx to expire
func (s *Service) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("Scheduler stopped")
	case <-ctx.Done():
		logrus.Warn("Scheduler stop timed out with a run still in progress")
	}
}

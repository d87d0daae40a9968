package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// Reporter renders the daily inventory summary.
type Reporter interface {
	DailySummary(ctx context.Context) (string, error)
}

// Notifier pushes a message to a WhatsApp number.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	notifier Notifier
	cfg      config.Config
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.Config, reporter Reporter, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reporter: reporter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the daily report and starts the scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.WhatsApp.ManagerID == "" {
		s.logger.Warn("no manager number configured, daily report disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.cfg.Reporting.CronSchedule, err)
	}

	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	s.logger.Info("generating daily inventory report")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
		return
	}
	s.logger.Info("daily report sent successfully")
}

// RunDailyReport builds the summary and sends it to the manager number.
func (s *Scheduler) RunDailyReport(ctx context.Context) error {
	report, err := s.reporter.DailySummary(ctx)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	req := models.OutboundMessageRequest{
		To:      s.cfg.WhatsApp.ManagerID,
		Message: report,
	}
	if err := s.notifier.SendOutbound(ctx, req); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

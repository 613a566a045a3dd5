package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs named daily jobs in a fixed location.
// A job still running when its next activation fires is skipped, and a panicking job is recovered.
type SchedulerService struct {
	cron   *cron.Cron
	logger *slog.Logger
	base   context.Context
	cancel context.CancelFunc
}

func NewSchedulerService(loc *time.Location, logger *slog.Logger) *SchedulerService {
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	base, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		base:   base,
		cancel: cancel,
	}
}

// ScheduleDaily registers job to run every day at the HH:MM time string.
// Each run gets a context bounded by timeout and cancelled by Stop.
func (s *SchedulerService) ScheduleDaily(name, timeStr string, timeout time.Duration, job func(context.Context)) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.base, timeout)
		defer cancel()
		start := time.Now()
		s.logger.Info("job started", "job", name)
		job(ctx)
		s.logger.Info("job finished", "job", name, "duration", time.Since(start))
	})
}

// Next returns the next activation time of the entry, or the zero time if unknown.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func buildDailySpec(timeStr string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(timeStr))
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

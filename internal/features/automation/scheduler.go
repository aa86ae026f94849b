package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crmflow/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// scheduleWindowMinutes is how far past the scheduled minute a sweep may
// still fire, so a sweep interval of up to a few minutes never skips a
// slot.
const scheduleWindowMinutes = 5

type SchedulerResult struct {
	Scheduled int      `json:"scheduled"`
	Errors    []string `json:"errors"`
}

// Scheduler sweeps scheduled automations and runs the ones whose
// calendar gate opens at "now".
type Scheduler interface {
	Tick(ctx context.Context, now time.Time) (*SchedulerResult, error)
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type SchedulerImpl struct {
	repo   AutomationRepository
	runner Runner
	logger *zap.Logger

	spec string
	cron *cron.Cron
}

func NewScheduler(repo AutomationRepository, runner Runner, cfg *config.Config, logger *zap.Logger) Scheduler {
	return &SchedulerImpl{
		repo:   repo,
		runner: runner,
		logger: logger,
		spec:   cfg.SchedulerSpec,
	}
}

func (s *SchedulerImpl) InitializeScheduler(_ context.Context) error {
	if s.cron != nil {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := s.Tick(ctx, time.Now()); err != nil {
			s.logger.Error("scheduler sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		s.cron = nil
		return fmt.Errorf("invalid scheduler spec %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("automation scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *SchedulerImpl) StopScheduler() error {
	if s.cron == nil {
		return nil
	}
	s.cron.Stop()
	s.cron = nil
	return nil
}

func (s *SchedulerImpl) Tick(ctx context.Context, now time.Time) (*SchedulerResult, error) {
	automations, err := s.repo.FindScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled automations: %w", err)
	}

	result := &SchedulerResult{Errors: []string{}}

	for i := range automations {
		automation := &automations[i]
		if !shouldRunAt(automation, now) {
			continue
		}

		// Due means scheduled, whether or not the run then succeeds.
		result.Scheduled++
		if _, err := s.runner.Run(ctx, automation, map[string]interface{}{}, "schedule"); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", automation.Name, err.Error()))
		}
	}

	if result.Scheduled > 0 || len(result.Errors) > 0 {
		s.logger.Info("scheduler sweep",
			zap.Int("scheduled", result.Scheduled),
			zap.Int("errors", len(result.Errors)))
	}
	return result, nil
}

// shouldRunAt decides whether "now" is a valid execution instant for a
// scheduled automation.
func shouldRunAt(automation *Automation, now time.Time) bool {
	schedule := automation.Trigger.Schedule
	if schedule == nil {
		return false
	}

	if schedule.StartDate != nil && now.Before(*schedule.StartDate) {
		return false
	}
	if schedule.EndDate != nil && now.After(*schedule.EndDate) {
		return false
	}

	last := automation.LastExecutedAt

	switch schedule.Frequency {
	case FrequencyOnce:
		if last != nil {
			return false
		}
	case FrequencyDaily:
		if executedOn(last, now) {
			return false
		}
	case FrequencyWeekly:
		if len(schedule.DaysOfWeek) > 0 && !containsInt(schedule.DaysOfWeek, int(now.Weekday())) {
			return false
		}
		if executedOn(last, now) {
			return false
		}
	case FrequencyMonthly:
		if schedule.DayOfMonth != nil && now.Day() != *schedule.DayOfMonth {
			return false
		}
		if executedOn(last, now) {
			return false
		}
	default:
		return false
	}

	if schedule.Time != "" {
		hour, minute, err := parseClock(schedule.Time)
		if err != nil {
			return false
		}
		if now.Hour() != hour {
			return false
		}
		diff := now.Minute() - minute
		if diff < -scheduleWindowMinutes || diff > scheduleWindowMinutes {
			return false
		}
	}

	return true
}

// executedOn reports whether last falls on the same calendar date as
// now. Stored timestamps come back in UTC, so both sides are read in
// now's location before comparing dates.
func executedOn(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	y1, m1, d1 := last.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func parseClock(value string) (int, int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

func containsInt(list []int, n int) bool {
	for _, item := range list {
		if item == n {
			return true
		}
	}
	return false
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
)

// DailyRunner appends one past day of reservations to the final log.
type DailyRunner interface {
	Run(ctx context.Context, day time.Time, writers []eventlog.Writer) (int, error)
}

// DailyScheduler submits the final log copy to the dispatcher once a day.
type DailyScheduler struct {
	runner     DailyRunner
	dir        Directory
	dispatcher *Dispatcher
	hour       int
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// NewDailyScheduler creates a scheduler firing at hour:00 in loc.
func NewDailyScheduler(runner DailyRunner, dir Directory, dispatcher *Dispatcher, hour int, loc *time.Location, logger *slog.Logger) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyScheduler{
		runner:     runner,
		dir:        dir,
		dispatcher: dispatcher,
		hour:       hour,
		loc:        loc,
		logger:     logging.WithOperation(logger, "daily_log"),
		now:        time.Now,
	}
}

// Next returns the first firing time strictly after t.
func (s *DailyScheduler) Next(t time.Time) time.Time {
	local := t.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, 0, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, 0, 0, 0, s.loc)
	}
	return next
}

// Run waits for each firing time and queues the day's job until ctx is done.
func (s *DailyScheduler) Run(ctx context.Context) error {
	for {
		next := s.Next(s.now())
		s.logger.Debug("next daily log scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case fired := <-timer.C:
			if _, err := s.dispatcher.Submit(s.Job(fired)); err != nil {
				s.logger.Error("failed to queue daily log", logging.Err(err))
			}
		}
	}
}

// Job returns the dispatcher job logging the day containing day.
func (s *DailyScheduler) Job(day time.Time) Job {
	key := "daily:" + day.In(s.loc).Format(time.DateOnly)
	return Job{
		Key:  key,
		Kind: "daily_log",
		Run: func(ctx context.Context) error {
			snap, err := s.dir.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to load directory: %w", err)
			}
			n, err := s.runner.Run(ctx, day, eventlog.Writers(snap))
			if err != nil {
				return err
			}
			s.logger.Info("daily log written", slog.String("day", day.In(s.loc).Format(time.DateOnly)), slog.Int("rows", n))
			return nil
		},
	}
}

package distribution

import (
	"context"
	"sync"
	"time"

	"setledger/pkg/config"
	"setledger/pkg/task"
	"setledger/services/points"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler fires one settlement per day at a fixed wall-clock time in the
// configured time zone. It owns its run state explicitly: status is queried
// through the handle rather than through ambient globals.
type Scheduler struct {
	enqueuer task.Enqueuer
	hour     int
	minute   int
	location *time.Location

	mu      sync.Mutex
	running bool
	nextRun time.Time
}

type SchedulerParams struct {
	fx.In
	Enqueuer task.Enqueuer
	Config   *config.Config
}

func NewScheduler(p SchedulerParams) *Scheduler {
	loc, err := time.LoadLocation(p.Config.Distribution.Timezone)
	if err != nil {
		zap.L().Warn("invalid scheduler timezone, falling back to UTC",
			zap.String("timezone", p.Config.Distribution.Timezone), zap.Error(err))
		loc = time.UTC
	}
	return &Scheduler{
		enqueuer: p.Enqueuer,
		hour:     p.Config.Distribution.Hour,
		minute:   p.Config.Distribution.Minute,
		location: loc,
	}
}

// SchedulerStatus is the operational view of the daily timer.
type SchedulerStatus struct {
	Running bool      `json:"running"`
	NextRun time.Time `json:"next_run"`
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{Running: s.running, NextRun: s.nextRun}
}

// StartScheduler wires the daily loop into the fx lifecycle.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started daily settlement scheduler",
		zap.Int("hour", s.hour), zap.Int("minute", s.minute),
		zap.String("timezone", s.location.String()))

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		now := time.Now().In(s.location)
		next := nextRunTime(now, s.hour, s.minute)

		s.mu.Lock()
		s.nextRun = next
		s.mu.Unlock()

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next settlement scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.fire()
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

// fire enqueues settlement of the previous day; the day that just ended is
// the one whose points are complete.
func (s *Scheduler) fire() {
	day := points.DayKey(time.Now().In(s.location).AddDate(0, 0, -1))

	t, err := NewSettleDayTask(day)
	if err != nil {
		zap.L().Error("[Scheduler] failed to build settlement task", zap.Error(err))
		return
	}

	if _, err := s.enqueuer.Enqueue(t); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue settlement",
			zap.String("day", day), zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] settlement enqueued", zap.String("day", day))
}

// nextRunTime computes the next occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

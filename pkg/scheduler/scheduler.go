package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one execution of a named periodic job.
type JobFunc func(context.Context) error

type job struct {
	name     string
	interval time.Duration
	daily    bool
	hour     int
	minute   int
	loc      *time.Location
	fn       JobFunc

	// inFlight enforces at-most-one concurrent execution per job name.
	inFlight atomic.Bool
}

// Scheduler drives named jobs on fixed intervals or at a daily wall-clock
// time. A job that is still running when its next firing arrives is skipped
// for that firing.
type Scheduler struct {
	logger *zap.Logger

	jobs    []*job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Every registers a job that runs immediately on Start and then on every
// interval tick.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
}

// DailyAt registers a job that runs once per day at the given wall-clock
// time in the provided location.
func (s *Scheduler) DailyAt(name string, hour, minute int, loc *time.Location, fn JobFunc) {
	if loc == nil {
		loc = time.UTC
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, daily: true, hour: hour, minute: minute, loc: loc, fn: fn})
}

// Start launches all registered jobs. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		if j.daily {
			go s.runDaily(j)
		} else {
			go s.runEvery(j)
		}
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all jobs and waits for in-flight executions to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) runEvery(j *job) {
	defer s.wg.Done()

	s.execute(j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(j)
		}
	}
}

func (s *Scheduler) runDaily(j *job) {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(time.Until(nextDaily(time.Now().In(j.loc), j.hour, j.minute)))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(j)
		}
	}
}

func (s *Scheduler) execute(j *job) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.logger.Sugar().Warnw("job still running, skipping tick", "job", j.name)
		return
	}
	defer j.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("job panicked", "job", j.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := j.fn(s.ctx); err != nil {
		s.logger.Sugar().Errorw("job failed", "job", j.name, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Sugar().Debugw("job completed", "job", j.name, "duration", time.Since(start))
}

func nextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Package scheduler runs a job at fixed times of day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is the unit of work the scheduler triggers. It must honour ctx.
type Job func(ctx context.Context)

// Config holds the schedule.
type Config struct {
	// Times are daily trigger times in HH:MM, evaluated in the clock's location.
	Times []string

	// RunOnStartup triggers the job once as soon as Start is called.
	RunOnStartup bool

	// CheckInterval is how often the clock is polled (default: 30s).
	// A trigger time reached while the job is still running fires on the
	// first poll after the job returns.
	CheckInterval time.Duration
}

type clockTime struct {
	hour, minute int
}

// before reports whether c is earlier than the minute of now.
func (c clockTime) before(now time.Time) bool {
	return c.hour*60+c.minute < now.Hour()*60+now.Minute()
}

func (c clockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

// Scheduler calls a Job once per day at each configured time.
type Scheduler struct {
	job      Job
	times    []clockTime
	startup  bool
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// lastRun maps a trigger time to the date it last fired on.
	lastRun map[clockTime]string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New validates cfg and returns a stopped scheduler.
func New(cfg Config, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler job is required")
	}
	if len(cfg.Times) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	times := make([]clockTime, 0, len(cfg.Times))
	for _, s := range cfg.Times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: %w", s, err)
		}
		times = append(times, clockTime{hour: t.Hour(), minute: t.Minute()})
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Scheduler{
		job:      job,
		times:    times,
		startup:  cfg.RunOnStartup,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default().With("service", "scheduler"),
		lastRun:  make(map[clockTime]string),
	}, nil
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Scheduler started",
		"times", s.timeStrings(),
		"run_on_startup", s.startup,
		"check_interval", s.interval)
	return nil
}

// Stop signals the loop and waits for an in-flight job to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	// The job sees a context cancelled by either ctx or Stop.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-jobCtx.Done():
		}
	}()

	s.markPassed(s.now())

	if s.startup {
		s.logger.InfoContext(ctx, "Running job on startup")
		s.job(jobCtx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(jobCtx)
		}
	}
}

// markPassed records trigger times earlier than the current minute as done
// for today, so starting the loop late in the day does not replay them.
func (s *Scheduler) markPassed(now time.Time) {
	today := now.Format("2006-01-02")
	for _, t := range s.times {
		if t.before(now) {
			s.lastRun[t] = today
		}
	}
}

// tick runs the job once if any trigger time has been reached today and has
// not fired yet. Times that came due together are coalesced into one run.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	today := now.Format("2006-01-02")

	var due []string
	for _, t := range s.times {
		if now.Hour()*60+now.Minute() < t.hour*60+t.minute {
			continue
		}
		if s.lastRun[t] == today {
			continue
		}
		s.lastRun[t] = today
		due = append(due, t.String())
	}
	if len(due) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Running scheduled job", "times", due, "date", today)
	start := time.Now()
	s.job(ctx)
	s.logger.InfoContext(ctx, "Scheduled job finished", "times", due, "duration", time.Since(start))
}

func (s *Scheduler) timeStrings() []string {
	out := make([]string, len(s.times))
	for i, t := range s.times {
		out[i] = t.String()
	}
	return out
}

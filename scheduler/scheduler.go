package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFn is the function signature for scheduled jobs.
type JobFn func()

// Scheduler runs named periodic and one-shot background jobs. The server
// uses it for the leaderboard refresh; the client for autosave.
type Scheduler struct {
	mu      sync.Mutex
	periods map[string]*periodicJob
	oneOffs map[string]*time.Timer
	logger  *zap.Logger
	stopCh  chan struct{}
}

type periodicJob struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		periods: make(map[string]*periodicJob),
		oneOffs: make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// Every registers a job to run on a fixed interval. A job with the same
// name is replaced.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.periods[name]; ok {
		close(old.stopCh)
		delete(s.periods, name)
	}

	job := &periodicJob{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.periods[name] = job

	go func() {
		for {
			select {
			case <-job.ticker.C:
				s.run(name, fn)
			case <-job.stopCh:
				job.ticker.Stop()
				return
			case <-s.stopCh:
				job.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("job registered", zap.String("name", name), zap.Duration("interval", interval))
}

// After runs fn once after the given delay.
func (s *Scheduler) After(name string, delay time.Duration, fn JobFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.oneOffs[name]; ok {
		old.Stop()
	}
	s.oneOffs[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.oneOffs, name)
			s.mu.Unlock()
		}()
		s.run(name, fn)
	})
}

// run executes fn with panic isolation so one bad job cannot take down
// the process.
func (s *Scheduler) run(name string, fn JobFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				zap.String("job", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove stops and removes a job by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.periods[name]; ok {
		close(job.stopCh)
		delete(s.periods, name)
	}
	if t, ok := s.oneOffs[name]; ok {
		t.Stop()
		delete(s.oneOffs, name)
	}
}

// Stop stops all jobs.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Jobs returns the names of all registered periodic jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.periods))
	for name := range s.periods {
		names = append(names, name)
	}
	return names
}

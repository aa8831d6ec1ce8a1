// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/config"
)

// DefaultJobTimeout bounds a single run.
const DefaultJobTimeout = 2 * time.Minute

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob wraps fn as a Job.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// State tracks the runs of one job.
type State struct {
	Schedule     string        `json:"schedule,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
	LastRunAt    time.Time     `json:"last_run_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	NextRunAt    time.Time     `json:"next_run_at,omitempty"`
}

// Scheduler owns a cron runner and the jobs registered with it.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]Job
	entries map[string]cron.EntryID
	state   map[string]*State
	timeout time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each job run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New creates a stopped scheduler.
func New(log zerolog.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		state:   make(map[string]*State),
		timeout: DefaultJobTimeout,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	clog := cronLogger{log: log}
	s.cron = cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	return s
}

// Register makes a job available for scheduling. Registering a name twice
// replaces the job but keeps its schedule.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name()] = job
	if _, ok := s.state[job.Name()]; !ok {
		s.state[job.Name()] = &State{}
	}
}

// Schedule runs the registered job name on spec, a standard cron
// expression or descriptor such as "@every 1m".
func (s *Scheduler) Schedule(name, spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; !ok {
		return fmt.Errorf("job %s is not registered", name)
	}
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name) })
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.entries[name] = id
	s.state[name].Schedule = spec
	return nil
}

// Configure schedules every enabled job in jobs and unschedules disabled
// ones. All invalid entries are reported together.
func (s *Scheduler) Configure(jobs []config.JobConfig) error {
	var errs []error
	for _, jc := range jobs {
		if !jc.IsEnabled() {
			s.Unschedule(jc.Name)
			continue
		}
		if err := s.Schedule(jc.Name, jc.Schedule); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unschedule removes name from the cron runner; the job stays registered.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		s.state[name].Schedule = ""
	}
}

// RunNow runs name synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not registered", name)
	}
	return s.execute(ctx, job)
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts the scheduler, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// States returns a copy of every job's state, with next run times filled in.
func (s *Scheduler) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]State, len(s.state))
	for name, st := range s.state {
		cp := *st
		if id, ok := s.entries[name]; ok {
			entry := s.cron.Entry(id)
			cp.NextRunAt = entry.Next
			// not started yet
			if cp.NextRunAt.IsZero() && entry.Schedule != nil {
				cp.NextRunAt = entry.Schedule.Next(time.Now())
			}
		}
		out[name] = cp
	}
	return out
}

// Names returns registered job names in sorted order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(name string) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.execute(s.ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	st := s.state[job.Name()]
	st.RunCount++
	st.LastRunAt = start
	st.LastDuration = elapsed
	if err != nil {
		st.ErrorCount++
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Str("job", job.Name()).Dur("took", elapsed).Err(err).Msg("job failed")
		return err
	}
	s.log.Debug().Str("job", job.Name()).Dur("took", elapsed).Msg("job finished")
	return nil
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

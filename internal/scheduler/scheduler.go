package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "kursbot/pkg/logx"
)

// Config selects the cron triggers. Specs are standard 5-field cron
// expressions (plus @-descriptors), evaluated in Timezone.
type Config struct {
	Enabled  bool
	Timezone string

	DigestCron  string
	CollectCron string
}

// Job is one named trigger target.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error

	running atomic.Bool
}

// Service drives registered jobs off a single cron runner. Jobs that are
// still executing when their next tick fires are skipped, not queued.
type Service struct {
	mu sync.Mutex

	cfg    Config
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	jobs   []*Job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Register adds a job. Must be called before Start. An empty spec registers
// the job disabled; a later Apply can enable it by supplying a spec.
func (s *Service) Register(name, spec string, run func(ctx context.Context) error) error {
	spec = strings.TrimSpace(spec)
	if spec != "" {
		if _, err := s.parser.Parse(spec); err != nil {
			return fmt.Errorf("scheduler: job %s: bad spec %q: %w", name, spec, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &Job{Name: name, Spec: spec, Run: run})
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	if s.c != nil {
		return errors.New("scheduler: already started")
	}

	loc, err := s.loadLocation()
	if err != nil {
		return err
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, j := range s.jobs {
		if err := s.addLocked(j); err != nil {
			s.c = nil
			s.cancel()
			return err
		}
	}
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("tz", loc.String()),
		logx.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs up to ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; abandoning in-flight jobs")
	}
	if cancel != nil {
		cancel()
	}
}

// Apply restarts the runner when the trigger configuration changed.
// Safe to call while running.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	same := s.cfg == cfg
	running := s.c != nil
	s.cfg = cfg
	s.mu.Unlock()

	if same {
		return nil
	}
	if running {
		s.Stop(ctx)
	}
	if !cfg.Enabled {
		return nil
	}

	// Re-resolve job specs from the new config before restarting. Jobs stay
	// registered even while their spec is empty so a later reload can
	// re-enable them.
	s.mu.Lock()
	for _, j := range s.jobs {
		switch j.Name {
		case JobDigest:
			j.Spec = strings.TrimSpace(cfg.DigestCron)
		case JobCollect:
			j.Spec = strings.TrimSpace(cfg.CollectCron)
		}
	}
	s.mu.Unlock()

	return s.Start(ctx)
}

// Well-known job names used by Apply to rebind specs on reload.
const (
	JobDigest  = "digest"
	JobCollect = "collect"
)

// ValidateConfig checks that a trigger configuration could be applied:
// parseable cron specs and a resolvable timezone. Used to reject bad
// hot-reloads before they reach Apply.
func ValidateConfig(cfg Config) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, f := range []struct{ path, spec string }{
		{"scheduler.digest_cron", cfg.DigestCron},
		{"scheduler.collect_cron", cfg.CollectCron},
	} {
		spec := strings.TrimSpace(f.spec)
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: invalid cron spec %q: %w", f.path, spec, err)
		}
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func (s *Service) addLocked(j *Job) error {
	if j.Spec == "" {
		return nil
	}
	_, err := s.c.AddFunc(j.Spec, func() { s.fire(j) })
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", j.Name, err)
	}
	return nil
}

func (s *Service) fire(j *Job) {
	if !j.running.CompareAndSwap(false, true) {
		s.log.Warn("job still running; skipping tick", logx.String("job", j.Name))
		return
	}
	defer j.running.Store(false)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	start := time.Now()
	err := j.Run(ctx)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("job failed",
			logx.String("job", j.Name),
			logx.Duration("took", dur),
			logx.Err(err))
		return
	}
	s.log.Info("job finished", logx.String("job", j.Name), logx.Duration("took", dur))
}

func (s *Service) loadLocation() (*time.Location, error) {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler: bad timezone %q: %w", tz, err)
	}
	return loc, nil
}

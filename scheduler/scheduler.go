package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/philippzhuravlev/DTUEvent/adapters/gocommand"
	"github.com/philippzhuravlev/DTUEvent/command"
	"github.com/robfig/cron/v3"
)

const (
	DefaultIngestSchedule  = "@every 12h"
	DefaultRefreshSchedule = "@daily"
	DefaultRunTimeout      = 30 * time.Minute

	// Disabled turns a schedule off.
	Disabled = "off"

	EntryIngest  = "ingest"
	EntryRefresh = "refresh"
)

// Target starts pipeline runs. gojob.Enqueuer satisfies it by queueing the run;
// DispatchTarget runs it in process through the command dispatcher.
type Target interface {
	EnqueueIngest(ctx context.Context, trigger string) error
	EnqueueRefresh(ctx context.Context, trigger string) error
}

type Config struct {
	IngestSchedule  string
	RefreshSchedule string
	Location        *time.Location
	RunTimeout      time.Duration
}

type EntryInfo struct {
	Name     string
	Schedule string
	Next     time.Time
}

// Scheduler fires the ingest and refresh runs on cron schedules. A run that is
// still going when its next tick arrives is skipped.
type Scheduler struct {
	cron    *cron.Cron
	target  Target
	logger  glog.Logger
	timeout time.Duration

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	entries map[string]entry
}

type entry struct {
	id       cron.EntryID
	schedule string
}

type Option func(*Scheduler)

func WithLogger(logger glog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(target Target, cfg Config, opts ...Option) (*Scheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("scheduler: target is required")
	}
	s := &Scheduler{
		target:  target,
		logger:  glog.Nop(),
		timeout: cfg.RunTimeout,
		baseCtx: context.Background(),
		entries: map[string]entry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRunTimeout
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	cronLog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if err := s.add(EntryIngest, scheduleOrDefault(cfg.IngestSchedule, DefaultIngestSchedule), s.runIngest); err != nil {
		return nil, err
	}
	if err := s.add(EntryRefresh, scheduleOrDefault(cfg.RefreshSchedule, DefaultRefreshSchedule), s.runRefresh); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(name string, schedule string, run func()) error {
	if strings.EqualFold(schedule, Disabled) {
		s.logger.Info("schedule disabled", "entry", name)
		return nil
	}
	id, err := s.cron.AddFunc(schedule, run)
	if err != nil {
		return fmt.Errorf("scheduler: invalid %s schedule %q: %w", name, schedule, err)
	}
	s.entries[name] = entry{id: id, schedule: schedule}
	return nil
}

// Start runs the cron loop in the background. Runs are cancelled when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	for _, info := range s.Entries() {
		s.logger.Info("schedule registered", "entry", info.Name, "schedule", info.Schedule, "next", info.Next)
	}
}

// Stop halts new ticks and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	select {
	case <-done.Done():
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}

func (s *Scheduler) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, len(s.entries))
	for _, name := range []string{EntryIngest, EntryRefresh} {
		e, ok := s.entries[name]
		if !ok {
			continue
		}
		out = append(out, EntryInfo{Name: name, Schedule: e.schedule, Next: s.cron.Entry(e.id).Next})
	}
	return out
}

func (s *Scheduler) runIngest() {
	s.run(EntryIngest, s.target.EnqueueIngest)
}

func (s *Scheduler) runRefresh() {
	s.run(EntryRefresh, s.target.EnqueueRefresh)
}

func (s *Scheduler) run(name string, fn func(context.Context, string) error) {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	startedAt := time.Now()
	if err := fn(ctx, command.TriggerScheduled); err != nil {
		s.logger.Error("scheduled run failed", "entry", name, "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return
	}
	s.logger.Info("scheduled run finished", "entry", name, "duration_ms", time.Since(startedAt).Milliseconds())
}

func scheduleOrDefault(schedule string, fallback string) string {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return fallback
	}
	return schedule
}

// DispatchTarget runs the pipelines in process via the registered pipeline commands.
type DispatchTarget struct{}

func (DispatchTarget) EnqueueIngest(ctx context.Context, trigger string) error {
	return gocommand.Dispatch(ctx, command.IngestEventsMessage{Trigger: trigger})
}

func (DispatchTarget) EnqueueRefresh(ctx context.Context, trigger string) error {
	return gocommand.Dispatch(ctx, command.RefreshTokensMessage{Trigger: trigger})
}

type cronLogger struct {
	logger glog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

var (
	_ Target      = DispatchTarget{}
	_ cron.Logger = cronLogger{}
)

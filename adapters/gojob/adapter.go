package gojob

import (
	"context"
	"fmt"
	"time"

	gocmd "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	queuecmd "github.com/goliatone/go-job/queue/command"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/philippzhuravlev/DTUEvent/adapters/gocommand"
	"github.com/philippzhuravlev/DTUEvent/command"
	"github.com/philippzhuravlev/DTUEvent/core"
)

// PipelineJobIDs are the queue ids a worker runs. The callback needs an
// interactive code and never goes through the queue.
func PipelineJobIDs() []string {
	return []string{command.TypeIngestEvents, command.TypeRefreshTokens}
}

// RetryPolicy retries transient failures with exponential backoff and
// dead-letters failures a retry cannot fix.
type RetryPolicy struct {
	worker.DefaultRetryPolicy
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{DefaultRetryPolicy: worker.DefaultRetryPolicy{
		MaxAttempts: 3,
		Backoff: worker.BackoffConfig{
			Strategy:    worker.BackoffExponential,
			Interval:    time.Minute,
			MaxInterval: 15 * time.Minute,
		},
	}}
}

func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	if core.IsBadRequest(err) || core.IsUpstreamAuth(err) {
		return queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      err.Error(),
		}
	}
	return p.DefaultRetryPolicy.Decide(attempt, err)
}

// Enqueuer queues pipeline runs for a worker.
type Enqueuer struct {
	queue    queue.Enqueuer
	registry *queuecmd.Registry
	logger   glog.Logger
	newID    func() string
}

type EnqueuerOption func(*Enqueuer)

func WithEnqueueLogger(logger glog.Logger) EnqueuerOption {
	return func(e *Enqueuer) {
		e.logger = logger
	}
}

// NewEnqueuer needs the registry the worker reads from, so runs are only
// queued for ids a worker can resolve.
func NewEnqueuer(enqueuer queue.Enqueuer, registry *queuecmd.Registry, opts ...EnqueuerOption) (*Enqueuer, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: queue enqueuer is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("gojob: queue registry is required")
	}
	e := &Enqueuer{queue: enqueuer, registry: registry, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = glog.Ensure(e.logger)
	return e, nil
}

func (e *Enqueuer) EnqueueIngest(ctx context.Context, trigger string) error {
	_, err := enqueue(ctx, e, command.IngestEventsMessage{Trigger: trigger})
	return err
}

func (e *Enqueuer) EnqueueRefresh(ctx context.Context, trigger string) error {
	_, err := enqueue(ctx, e, command.RefreshTokensMessage{Trigger: trigger})
	return err
}

func enqueue[T gocmd.Message](ctx context.Context, e *Enqueuer, msg T) (queue.EnqueueReceipt, error) {
	if e == nil || e.queue == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if err := gocommand.ValidateMessageContract(msg); err != nil {
		return queue.EnqueueReceipt{}, err
	}
	receipt, err := queuecmd.EnqueuePayloadWithOptions(ctx, e.queue, e.registry, msg.Type(), msg, queuecmd.EnqueueOptions{
		CorrelationID: e.newID(),
	})
	if err != nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueue %s: %w", msg.Type(), err)
	}
	e.logger.Info("run queued", "job_id", msg.Type(), "dispatch_id", receipt.DispatchID)
	return receipt, nil
}

type WorkerConfig struct {
	Concurrency int
	IdleDelay   time.Duration
	RetryPolicy worker.RetryPolicy
	Logger      glog.Logger
	Hooks       []worker.Hook
}

// NewWorker builds a go-job worker that runs the pipeline commands mirrored
// into registry. Attempts are counted by the queue delivery.
func NewWorker(dequeuer queue.Dequeuer, registry *queuecmd.Registry, cfg WorkerConfig) (*worker.Worker, error) {
	logger := glog.Ensure(cfg.Logger)
	policy := cfg.RetryPolicy
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	hooks := append([]worker.Hook{NewLoggingHook(logger)}, cfg.Hooks...)
	opts := []worker.Option{
		worker.WithLogger(NewJobLogger(logger)),
		worker.WithRetryPolicy(policy),
		worker.WithHooks(hooks...),
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, worker.WithConcurrency(cfg.Concurrency))
	}
	if cfg.IdleDelay > 0 {
		opts = append(opts, worker.WithIdleDelay(cfg.IdleDelay))
	}
	return queuecmd.NewLocalWorker(dequeuer, registry, queuecmd.LocalWorkerConfig{
		IDs:           PipelineJobIDs(),
		WorkerOptions: opts,
	})
}

// LoggingHook writes worker lifecycle events to a glog logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("job started", "job_id", jobIDOf(event.Message), "attempt", event.Attempt)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("job succeeded", "job_id", jobIDOf(event.Message), "attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds())
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("job failed", "job_id", jobIDOf(event.Message), "attempt", event.Attempt, "error", errorText(event.Err))
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("job retrying", "job_id", jobIDOf(event.Message), "attempt", event.Attempt, "delay", event.Delay.String(), "error", errorText(event.Err))
}

// jobLogger lets the worker's own diagnostics go through glog.
type jobLogger struct {
	logger glog.Logger
}

func NewJobLogger(logger glog.Logger) job.Logger {
	return jobLogger{logger: glog.Ensure(logger)}
}

func (l jobLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l jobLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l jobLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l jobLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l jobLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l jobLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l jobLogger) WithContext(ctx context.Context) job.Logger {
	return jobLogger{logger: l.logger.WithContext(ctx)}
}

func jobIDOf(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	_ worker.Hook        = (*LoggingHook)(nil)
	_ worker.RetryPolicy = RetryPolicy{}
)

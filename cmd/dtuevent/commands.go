package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jobredis "github.com/goliatone/go-job/queue/adapters/redis"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	dtuevent "github.com/philippzhuravlev/DTUEvent"
	"github.com/philippzhuravlev/DTUEvent/adapters/gojob"
	"github.com/philippzhuravlev/DTUEvent/command"
	"github.com/philippzhuravlev/DTUEvent/scheduler"
)

type rootOptions struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dtuevent",
		Short:         "DTUEvent Facebook page event ingestion",
		Long:          `Links Facebook pages, ingests their events and keeps page tokens fresh.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file")

	root.AddCommand(
		newMigrateCommand(opts),
		newAuthURLCommand(opts),
		newCallbackCommand(opts),
		newIngestCommand(opts),
		newRefreshCommand(opts),
		newScheduleCommand(opts),
		newWorkerCommand(opts),
	)
	return root
}

// withApp loads the environment and hands an app to run, closing it afterwards.
func withApp(opts *rootOptions, run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnvConfig(opts.envFile)
		if err != nil {
			return err
		}
		a, err := newApp(env)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a)
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			return a.migrate(cmd.Context())
		}),
	}
}

func newAuthURLCommand(opts *rootOptions) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Facebook login URL used to link pages",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			svc, err := a.authURLService(ctx)
			if err != nil {
				return err
			}
			if state == "" {
				state = uuid.NewString()
			}
			url, err := svc.AuthURL(state)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
			return err
		}),
	}
	cmd.Flags().StringVar(&state, "state", "", "opaque state value echoed back on the callback")
	return cmd
}

func newCallbackCommand(opts *rootOptions) *cobra.Command {
	var code string
	var debug bool
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Complete the OAuth callback with an authorization code",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			facade, err := a.facade(ctx)
			if err != nil {
				return err
			}
			outcome, err := facade.CompleteCallback(ctx, code, debug)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
			return writeJSON(cmd.OutOrStdout(), outcome.Result)
		}),
	}
	cmd.Flags().StringVar(&code, "code", "", "authorization code from the redirect")
	cmd.Flags().BoolVar(&debug, "debug", false, "show the underlying failure instead of the generic message")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var queued bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch events for every active page and store them",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if queued {
				return a.enqueueRun(ctx, cmd.OutOrStdout(), command.TypeIngestEvents)
			}
			facade, err := a.facade(ctx)
			if err != nil {
				return err
			}
			result, err := facade.IngestEvents(ctx, command.TriggerManual)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().BoolVar(&queued, "queue", false, "queue the run for a worker instead of running it here")
	return cmd
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	var queued bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh page tokens that are close to expiry",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if queued {
				return a.enqueueRun(ctx, cmd.OutOrStdout(), command.TypeRefreshTokens)
			}
			facade, err := a.facade(ctx)
			if err != nil {
				return err
			}
			result, err := facade.RefreshTokens(ctx, command.TriggerManual)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().BoolVar(&queued, "queue", false, "queue the run for a worker instead of running it here")
	return cmd
}

const (
	scheduleTargetDispatch = "dispatch"
	scheduleTargetQueue    = "queue"
)

func parseScheduleTarget(value string) (string, error) {
	switch target := strings.ToLower(strings.TrimSpace(value)); target {
	case "", scheduleTargetDispatch:
		return scheduleTargetDispatch, nil
	case scheduleTargetQueue:
		return target, nil
	default:
		return "", fmt.Errorf("unsupported schedule target %q", value)
	}
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run ingestion and token refresh on their schedules until interrupted",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			targetName, err := parseScheduleTarget(a.env.ScheduleTarget)
			if err != nil {
				return err
			}
			location, err := a.env.scheduleLocation()
			if err != nil {
				return err
			}
			var q *jobredis.Adapter
			if targetName == scheduleTargetQueue {
				if q, err = a.jobQueue(ctx); err != nil {
					return err
				}
			}
			registry, subs, err := a.pipelineCommands(ctx)
			if err != nil {
				return err
			}
			defer subs.Unsubscribe()

			var target scheduler.Target = scheduler.DispatchTarget{}
			if q != nil {
				enqueuer, err := a.enqueuer(q, registry)
				if err != nil {
					return err
				}
				target = enqueuer
			}
			sched, err := scheduler.New(target, scheduler.Config{
				IngestSchedule:  a.env.IngestSchedule,
				RefreshSchedule: a.env.RefreshSchedule,
				Location:        location,
			}, scheduler.WithLogger(a.provider.GetLogger("dtuevent.scheduler")))
			if err != nil {
				return err
			}
			a.logger.Info("scheduler started", "target", targetName)

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			sched.Start(runCtx)
			<-runCtx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return sched.Stop(stopCtx)
		}),
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", time.Minute, "how long to wait for running jobs on shutdown")
	return cmd
}

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queued ingestion and token refresh jobs until interrupted",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			q, err := a.jobQueue(ctx)
			if err != nil {
				return err
			}
			registry, subs, err := a.pipelineCommands(ctx)
			if err != nil {
				return err
			}
			defer subs.Unsubscribe()

			w, err := gojob.NewWorker(q, registry, gojob.WorkerConfig{
				Concurrency: a.env.WorkerConcurrency,
				Logger:      a.provider.GetLogger("dtuevent.worker"),
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(runCtx); err != nil {
				return err
			}
			a.logger.Info("worker started", "queue", a.env.QueueName, "jobs", strings.Join(gojob.PipelineJobIDs(), ","))
			<-runCtx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return w.Stop(stopCtx)
		}),
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", time.Minute, "how long to wait for running jobs on shutdown")
	return cmd
}

func (a *app) facade(ctx context.Context) (*dtuevent.Facade, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	return dtuevent.NewFacade(svc)
}

// enqueueRun queues a manual run and prints its job id.
func (a *app) enqueueRun(ctx context.Context, out io.Writer, jobID string) error {
	q, err := a.jobQueue(ctx)
	if err != nil {
		return err
	}
	registry, subs, err := a.pipelineCommands(ctx)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	enqueuer, err := a.enqueuer(q, registry)
	if err != nil {
		return err
	}
	if jobID == command.TypeRefreshTokens {
		err = enqueuer.EnqueueRefresh(ctx, command.TriggerManual)
	} else {
		err = enqueuer.EnqueueIngest(ctx, command.TriggerManual)
	}
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]string{"queued": jobID})
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

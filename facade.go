package dtuevent

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"
	"github.com/philippzhuravlev/DTUEvent/command"
)

type Commands struct {
	CompleteCallback *command.CompleteCallbackCommand
	IngestEvents     *command.IngestEventsCommand
	RefreshTokens    *command.RefreshTokensCommand
}

// Facade exposes the pipeline commands with typed results for callers that
// do not go through the dispatcher.
type Facade struct {
	service  command.PipelineService
	commands Commands
}

func NewFacade(service command.PipelineService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("dtuevent: pipeline service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			CompleteCallback: command.NewCompleteCallbackCommand(service),
			IngestEvents:     command.NewIngestEventsCommand(service),
			RefreshTokens:    command.NewRefreshTokensCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() command.PipelineService {
	if f == nil {
		return nil
	}
	return f.service
}

// CompleteCallback links the pages behind an authorization code. Failures
// carry the generic callback message unless debug is set.
func (f *Facade) CompleteCallback(ctx context.Context, code string, debug bool) (command.CallbackOutcome, error) {
	if f == nil {
		return command.CallbackOutcome{}, fmt.Errorf("dtuevent: facade is nil")
	}
	return execute[command.CompleteCallbackMessage, command.CallbackOutcome](ctx, f.commands.CompleteCallback, command.CompleteCallbackMessage{Code: code, Debug: debug})
}

func (f *Facade) IngestEvents(ctx context.Context, trigger string) (IngestionResult, error) {
	if f == nil {
		return IngestionResult{}, fmt.Errorf("dtuevent: facade is nil")
	}
	return execute[command.IngestEventsMessage, IngestionResult](ctx, f.commands.IngestEvents, command.IngestEventsMessage{Trigger: trigger})
}

func (f *Facade) RefreshTokens(ctx context.Context, trigger string) (RefreshResult, error) {
	if f == nil {
		return RefreshResult{}, fmt.Errorf("dtuevent: facade is nil")
	}
	return execute[command.RefreshTokensMessage, RefreshResult](ctx, f.commands.RefreshTokens, command.RefreshTokensMessage{Trigger: trigger})
}

func execute[M any, R any](ctx context.Context, cmd gocmd.Commander[M], msg M) (R, error) {
	var zero R
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	value, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("dtuevent: command produced no result")
	}
	return value, nil
}

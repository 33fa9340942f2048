package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/philippzhuravlev/DTUEvent/core"
)

type PipelineService interface {
	HandleCallback(ctx context.Context, code string) (core.CallbackResult, error)
	RunIngestion(ctx context.Context) (core.IngestionResult, error)
	RunTokenRefresh(ctx context.Context) (core.RefreshResult, error)
}

// CallbackOutcome is what the callback surface shows: the result and a one-line message.
type CallbackOutcome struct {
	Result  core.CallbackResult
	Message string
}

type CompleteCallbackCommand struct {
	service PipelineService
}

func NewCompleteCallbackCommand(service PipelineService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	result, err := c.service.HandleCallback(ctx, msg.Code)
	if err != nil {
		return callbackFailure(err, msg.Debug)
	}
	storeResult(ctx, CallbackOutcome{Result: result, Message: core.CallbackMessage(result)})
	return nil
}

type IngestEventsCommand struct {
	service PipelineService
}

func NewIngestEventsCommand(service PipelineService) *IngestEventsCommand {
	return &IngestEventsCommand{service: service}
}

func (c *IngestEventsCommand) Execute(ctx context.Context, msg IngestEventsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingestion service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	result, err := c.service.RunIngestion(core.WithRunTrigger(ctx, normalizeTrigger(msg.Trigger)))
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

type RefreshTokensCommand struct {
	service PipelineService
}

func NewRefreshTokensCommand(service PipelineService) *RefreshTokensCommand {
	return &RefreshTokensCommand{service: service}
}

func (c *RefreshTokensCommand) Execute(ctx context.Context, msg RefreshTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token refresh service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	result, err := c.service.RunTokenRefresh(core.WithRunTrigger(ctx, normalizeTrigger(msg.Trigger)))
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

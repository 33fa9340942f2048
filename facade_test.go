package dtuevent

import (
	"context"
	"testing"

	"github.com/philippzhuravlev/DTUEvent/command"
	"github.com/philippzhuravlev/DTUEvent/core"
)

type stubFacadeService struct {
	callbackErr error
	triggers    []string
}

func (s *stubFacadeService) HandleCallback(_ context.Context, code string) (core.CallbackResult, error) {
	if s.callbackErr != nil {
		return core.CallbackResult{}, s.callbackErr
	}
	return core.CallbackResult{StoredCount: len(code)}, nil
}

func (s *stubFacadeService) RunIngestion(ctx context.Context) (core.IngestionResult, error) {
	s.triggers = append(s.triggers, core.RunTriggerFromContext(ctx))
	return core.IngestionResult{TotalPages: 2, TotalEvents: 7}, nil
}

func (s *stubFacadeService) RunTokenRefresh(ctx context.Context) (core.RefreshResult, error) {
	s.triggers = append(s.triggers, core.RunTriggerFromContext(ctx))
	return core.RefreshResult{TotalPages: 3}, nil
}

func TestNewFacade_WiresCommands(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.CompleteCallback == nil || commands.IngestEvents == nil || commands.RefreshTokens == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service to be retained")
	}
}

func TestFacade_ReturnsTypedResults(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	outcome, err := facade.CompleteCallback(ctx, "ab", false)
	if err != nil {
		t.Fatalf("complete callback: %v", err)
	}
	if outcome.Result.StoredCount != 2 || outcome.Message == "" {
		t.Fatalf("unexpected callback outcome %+v", outcome)
	}

	ingest, err := facade.IngestEvents(ctx, command.TriggerManual)
	if err != nil || ingest.TotalEvents != 7 {
		t.Fatalf("unexpected ingest result %+v err=%v", ingest, err)
	}
	refresh, err := facade.RefreshTokens(ctx, "")
	if err != nil || refresh.TotalPages != 3 {
		t.Fatalf("unexpected refresh result %+v err=%v", refresh, err)
	}
	if len(svc.triggers) != 2 || svc.triggers[0] != command.TriggerManual || svc.triggers[1] != command.TriggerManual {
		t.Fatalf("expected manual triggers, got %v", svc.triggers)
	}
}

func TestFacade_CallbackFailureIsGeneric(t *testing.T) {
	upstream := core.NewUpstreamAuthError("code->short-lived", "Invalid verification code format.", nil)
	facade, err := NewFacade(&stubFacadeService{callbackErr: upstream})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if _, err := facade.CompleteCallback(context.Background(), "bad", false); err == nil || err.Error() != core.GenericCallbackFailure {
		t.Fatalf("expected generic failure, got %v", err)
	}
	if _, err := facade.CompleteCallback(context.Background(), "", false); err == nil {
		t.Fatalf("expected missing code to fail")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil || facade != nil {
		t.Fatalf("expected nil service error")
	}
}

func TestDefaultConfigReexport(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "dtuevent" || cfg.Token.RefreshThresholdDays != core.DefaultRefreshThresholdDays {
		t.Fatalf("unexpected default config %+v", cfg)
	}
}

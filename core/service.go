package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// AuthURLBuilder is implemented by graph clients that can build the login dialog URL.
type AuthURLBuilder interface {
	AuthCodeURL(state string) string
}

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	graphClient     GraphClient
	tokenStore      TokenStore
	pageDirectory   PageDirectory
	eventStore      EventStore
	assetRehoster   AssetRehoster
	now             func() time.Time

	callback  *CallbackFlow
	ingestion *IngestionPipeline
	refresh   *TokenRefreshPipeline
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	GraphClient     GraphClient
	TokenStore      TokenStore
	PageDirectory   PageDirectory
	EventStore      EventStore
	AssetRehoster   AssetRehoster
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("dtuevent", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("dtuevent"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	svc := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		graphClient:     builder.graphClient,
		tokenStore:      builder.tokenStore,
		pageDirectory:   builder.pageDirectory,
		eventStore:      builder.eventStore,
		assetRehoster:   builder.assetRehoster,
		now:             builder.now,
	}
	svc.callback = &CallbackFlow{
		Graph:            svc.graphClient,
		Tokens:           svc.tokenStore,
		Pages:            svc.pageDirectory,
		Logger:           svc.namedLogger("callback"),
		Now:              svc.now,
		DefaultExpiresIn: finalConfig.Token.DefaultExpiresIn,
	}
	svc.ingestion = &IngestionPipeline{
		Pages:       svc.pageDirectory,
		Tokens:      svc.tokenStore,
		Graph:       svc.graphClient,
		Rehoster:    svc.assetRehoster,
		Events:      svc.eventStore,
		Logger:      svc.namedLogger("ingest"),
		Now:         svc.now,
		Concurrency: finalConfig.Ingest.Concurrency,
	}
	svc.refresh = &TokenRefreshPipeline{
		Pages:            svc.pageDirectory,
		Tokens:           svc.tokenStore,
		Graph:            svc.graphClient,
		Logger:           svc.namedLogger("refresh"),
		Now:              svc.now,
		ThresholdDays:    finalConfig.Token.RefreshThresholdDays,
		DefaultExpiresIn: finalConfig.Token.DefaultExpiresIn,
	}
	return svc, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		GraphClient:     s.graphClient,
		TokenStore:      s.tokenStore,
		PageDirectory:   s.pageDirectory,
		EventStore:      s.eventStore,
		AssetRehoster:   s.assetRehoster,
	}
}

// AuthURL returns the Facebook login dialog URL for linking pages.
func (s *Service) AuthURL(state string) (string, error) {
	if s == nil || s.graphClient == nil {
		return "", fmt.Errorf("core: graph client is not configured")
	}
	builder, ok := s.graphClient.(AuthURLBuilder)
	if !ok {
		return "", fmt.Errorf("core: graph client cannot build auth urls")
	}
	return builder.AuthCodeURL(strings.TrimSpace(state)), nil
}

func (s *Service) HandleCallback(ctx context.Context, code string) (result CallbackResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observeOperation(ctx, startedAt, "callback", err, map[string]any{
			"stored_count": result.StoredCount,
			"failed_count": result.FailedCount,
		})
	}()
	if s == nil {
		return CallbackResult{}, fmt.Errorf("core: service is nil")
	}
	result, err = s.callback.Run(ctx, code)
	return result, s.mapError(err)
}

func (s *Service) RunIngestion(ctx context.Context) (result IngestionResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observeOperation(ctx, startedAt, "ingest", err, map[string]any{
			"total_pages":         result.TotalPages,
			"total_events":        result.TotalEvents,
			"total_events_failed": result.TotalEventsFailed,
			"failed_pages":        result.FailedPages,
			"skipped_pages":       result.SkippedPages,
		})
	}()
	if s == nil {
		return IngestionResult{}, fmt.Errorf("core: service is nil")
	}
	result, err = s.ingestion.Run(ctx)
	return result, s.mapError(err)
}

func (s *Service) RunTokenRefresh(ctx context.Context) (result RefreshResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, map[string]any{
			"total_pages": result.TotalPages,
			"refreshed":   len(result.Refreshed),
			"failed":      len(result.Failed),
			"skipped":     len(result.Skipped),
		})
	}()
	if s == nil {
		return RefreshResult{}, fmt.Errorf("core: service is nil")
	}
	result, err = s.refresh.Run(ctx)
	return result, s.mapError(err)
}

func (s *Service) namedLogger(name string) Logger {
	if s.loggerProvider != nil {
		if named := s.loggerProvider.GetLogger("dtuevent." + name); named != nil {
			return glog.Ensure(named)
		}
	}
	return s.logger
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "service build failed")
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	graphClient     GraphClient
	tokenStore      TokenStore
	pageDirectory   PageDirectory
	eventStore      EventStore
	assetRehoster   AssetRehoster
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithGraphClient(client GraphClient) Option {
	return func(b *serviceBuilder) {
		b.graphClient = client
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(b *serviceBuilder) {
		b.tokenStore = store
	}
}

func WithPageDirectory(directory PageDirectory) Option {
	return func(b *serviceBuilder) {
		b.pageDirectory = directory
	}
}

func WithEventStore(store EventStore) Option {
	return func(b *serviceBuilder) {
		b.eventStore = store
	}
}

// WithAssetRehoster is optional; without it cover images keep their original URL.
func WithAssetRehoster(rehoster AssetRehoster) Option {
	return func(b *serviceBuilder) {
		b.assetRehoster = rehoster
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("dtuevent", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader serves a fixed raw map, e.g. one assembled from the environment.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver merges defaults < loaded config < runtime config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	facebook := map[string]any{}
	putString(facebook, "app_id", cfg.Facebook.AppID, includeZero)
	putString(facebook, "app_secret", cfg.Facebook.AppSecret, includeZero)
	putString(facebook, "redirect_uri", cfg.Facebook.RedirectURI, includeZero)
	putString(facebook, "api_version", cfg.Facebook.APIVersion, includeZero)
	putString(facebook, "graph_base_url", cfg.Facebook.GraphBaseURL, includeZero)
	if includeZero || cfg.Facebook.RequestTimeout > 0 {
		facebook["request_timeout"] = cfg.Facebook.RequestTimeout
	}
	if includeZero || cfg.Facebook.MaxEventPages > 0 {
		facebook["max_event_pages"] = cfg.Facebook.MaxEventPages
	}
	if includeZero || cfg.Facebook.MaxAccountPages > 0 {
		facebook["max_account_pages"] = cfg.Facebook.MaxAccountPages
	}
	if len(facebook) > 0 {
		layer["facebook"] = facebook
	}

	token := map[string]any{}
	if includeZero || cfg.Token.RefreshThresholdDays > 0 {
		token["refresh_threshold_days"] = cfg.Token.RefreshThresholdDays
	}
	if includeZero || cfg.Token.DefaultExpiresIn > 0 {
		token["default_expires_in"] = cfg.Token.DefaultExpiresIn
	}
	if len(token) > 0 {
		layer["token"] = token
	}

	if includeZero || cfg.Ingest.Concurrency > 0 {
		layer["ingest"] = map[string]any{"concurrency": cfg.Ingest.Concurrency}
	}

	storage := map[string]any{}
	putString(storage, "project_id", cfg.Storage.ProjectID, includeZero)
	putString(storage, "bucket", cfg.Storage.Bucket, includeZero)
	putString(storage, "public_base_url", cfg.Storage.PublicBaseURL, includeZero)
	if len(storage) > 0 {
		layer["storage"] = storage
	}
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

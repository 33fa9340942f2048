package dtuevent

import "github.com/philippzhuravlev/DTUEvent/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type GraphClient = core.GraphClient
type TokenStore = core.TokenStore
type PageDirectory = core.PageDirectory
type EventStore = core.EventStore
type AssetRehoster = core.AssetRehoster
type SecretProvider = core.SecretProvider
type MetricsRecorder = core.MetricsRecorder

type Page = core.Page
type Event = core.Event
type PageToken = core.PageToken

type CallbackResult = core.CallbackResult
type IngestionResult = core.IngestionResult
type RefreshResult = core.RefreshResult

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithGraphClient     = core.WithGraphClient
	WithTokenStore      = core.WithTokenStore
	WithPageDirectory   = core.WithPageDirectory
	WithEventStore      = core.WithEventStore
	WithAssetRehoster   = core.WithAssetRehoster
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "DTUEVENT"

// envConfig is read from DTUEVENT_* variables, optionally seeded from a .env file.
type envConfig struct {
	DBDriver      string        `envconfig:"DB_DRIVER" default:"sqlite3"`
	DBDSN         string        `envconfig:"DB_DSN" default:"file:dtuevent.db?_foreign_keys=on"`
	DBDebug       bool          `envconfig:"DB_DEBUG"`
	DBPingTimeout time.Duration `envconfig:"DB_PING_TIMEOUT" default:"5s"`
	AutoMigrate   bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	SecretBackend  string `envconfig:"SECRET_BACKEND" default:"sql"`
	SecretKey      string `envconfig:"SECRET_KEY"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB"`
	KeyringService string `envconfig:"KEYRING_SERVICE" default:"dtuevent"`

	FacebookAppID       string        `envconfig:"FACEBOOK_APP_ID"`
	FacebookAppSecret   string        `envconfig:"FACEBOOK_APP_SECRET"`
	FacebookRedirectURI string        `envconfig:"FACEBOOK_REDIRECT_URI"`
	FacebookAPIVersion  string        `envconfig:"FACEBOOK_API_VERSION"`
	GraphBaseURL        string        `envconfig:"GRAPH_BASE_URL"`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT"`
	MaxEventPages       int           `envconfig:"MAX_EVENT_PAGES"`
	MaxAccountPages     int           `envconfig:"MAX_ACCOUNT_PAGES"`

	RefreshThresholdDays int `envconfig:"REFRESH_THRESHOLD_DAYS"`
	IngestConcurrency    int `envconfig:"INGEST_CONCURRENCY"`

	S3Endpoint    string `envconfig:"S3_ENDPOINT"`
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey   string `envconfig:"S3_SECRET_KEY"`
	S3Region      string `envconfig:"S3_REGION"`
	S3UseSSL      bool   `envconfig:"S3_USE_SSL" default:"true"`
	StorageBucket string `envconfig:"STORAGE_BUCKET"`
	PublicBaseURL string `envconfig:"STORAGE_PUBLIC_BASE_URL"`

	PageCacheTTL time.Duration `envconfig:"PAGE_CACHE_TTL" default:"1m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	IngestSchedule   string `envconfig:"INGEST_SCHEDULE"`
	RefreshSchedule  string `envconfig:"REFRESH_SCHEDULE"`
	ScheduleTimezone string `envconfig:"SCHEDULE_TIMEZONE" default:"UTC"`
	// ScheduleTarget is "dispatch" to run in the scheduler process or "queue"
	// to hand runs to a worker.
	ScheduleTarget string `envconfig:"SCHEDULE_TARGET" default:"dispatch"`

	QueueName              string        `envconfig:"QUEUE_NAME" default:"dtuevent:jobs"`
	QueueVisibilityTimeout time.Duration `envconfig:"QUEUE_VISIBILITY_TIMEOUT" default:"10m"`
	WorkerConcurrency      int           `envconfig:"WORKER_CONCURRENCY" default:"1"`
}

// loadEnvConfig loads envFile when given. A missing default .env is not an error.
func loadEnvConfig(envFile string) (envConfig, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return envConfig{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}
	var cfg envConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return envConfig{}, fmt.Errorf("load environment: %w", err)
	}
	return cfg, nil
}

// rawConfig maps the environment onto the service config keys. Unset values
// are left out so the service defaults apply.
func (c envConfig) rawConfig() map[string]any {
	raw := map[string]any{}
	facebook := map[string]any{}
	putString(facebook, "app_id", c.FacebookAppID)
	putString(facebook, "app_secret", c.FacebookAppSecret)
	putString(facebook, "redirect_uri", c.FacebookRedirectURI)
	putString(facebook, "api_version", c.FacebookAPIVersion)
	putString(facebook, "graph_base_url", c.GraphBaseURL)
	if c.RequestTimeout > 0 {
		facebook["request_timeout"] = c.RequestTimeout
	}
	if c.MaxEventPages > 0 {
		facebook["max_event_pages"] = c.MaxEventPages
	}
	if c.MaxAccountPages > 0 {
		facebook["max_account_pages"] = c.MaxAccountPages
	}
	if len(facebook) > 0 {
		raw["facebook"] = facebook
	}
	if c.RefreshThresholdDays > 0 {
		raw["token"] = map[string]any{"refresh_threshold_days": c.RefreshThresholdDays}
	}
	if c.IngestConcurrency > 0 {
		raw["ingest"] = map[string]any{"concurrency": c.IngestConcurrency}
	}
	storage := map[string]any{}
	putString(storage, "bucket", c.StorageBucket)
	putString(storage, "public_base_url", c.PublicBaseURL)
	if len(storage) > 0 {
		raw["storage"] = storage
	}
	return raw
}

func (c envConfig) scheduleLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.ScheduleTimezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func putString(target map[string]any, key string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		target[key] = value
	}
}

type persistenceConfig struct {
	driver      string
	server      string
	debug       bool
	pingTimeout time.Duration
}

func (c envConfig) persistence() persistenceConfig {
	return persistenceConfig{
		driver:      c.DBDriver,
		server:      c.DBDSN,
		debug:       c.DBDebug,
		pingTimeout: c.DBPingTimeout,
	}
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.pingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return "dtuevent" }

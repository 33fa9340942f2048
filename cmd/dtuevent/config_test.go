package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/philippzhuravlev/DTUEvent/core"
)

func TestLoadEnvConfig_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("DTUEVENT_FACEBOOK_APP_ID", "app-1")
	t.Setenv("DTUEVENT_REQUEST_TIMEOUT", "5s")
	t.Setenv("DTUEVENT_INGEST_CONCURRENCY", "3")

	cfg, err := loadEnvConfig("")
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.DBDriver != "sqlite3" || cfg.SecretBackend != "sql" || !cfg.AutoMigrate {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PageCacheTTL != time.Minute || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ScheduleTarget != "dispatch" || cfg.QueueName != "dtuevent:jobs" || cfg.QueueVisibilityTimeout != 10*time.Minute || cfg.WorkerConcurrency != 1 {
		t.Fatalf("unexpected queue defaults %+v", cfg)
	}
	if cfg.FacebookAppID != "app-1" || cfg.RequestTimeout != 5*time.Second || cfg.IngestConcurrency != 3 {
		t.Fatalf("expected overrides, got %+v", cfg)
	}
}

func TestLoadEnvConfig_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DTUEVENT_STORAGE_BUCKET=covers\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("DTUEVENT_STORAGE_BUCKET") })

	cfg, err := loadEnvConfig(path)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.StorageBucket != "covers" {
		t.Fatalf("expected bucket from env file, got %q", cfg.StorageBucket)
	}
	if _, err := loadEnvConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected missing explicit env file to fail")
	}
}

func TestRawConfigFeedsServiceConfig(t *testing.T) {
	env := envConfig{
		FacebookAppID:        "app-1",
		FacebookAppSecret:    "secret",
		FacebookRedirectURI:  "https://example.test/callback",
		RequestTimeout:       7 * time.Second,
		RefreshThresholdDays: 30,
		StorageBucket:        "covers",
		MaxAccountPages:      4,
	}
	a := &app{env: env}
	cfg, err := a.loadConfig(context.Background())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Facebook.AppID != "app-1" || cfg.Facebook.RequestTimeout != 7*time.Second {
		t.Fatalf("unexpected facebook config %+v", cfg.Facebook)
	}
	if cfg.Facebook.MaxAccountPages != 4 || cfg.Facebook.MaxEventPages != core.DefaultMaxEventPages {
		t.Fatalf("expected account and event page limits to stay separate, got %+v", cfg.Facebook)
	}
	if cfg.Token.RefreshThresholdDays != 30 || cfg.Storage.Bucket != "covers" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Facebook.APIVersion == "" || cfg.Ingest.Concurrency != 1 {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
	if err := cfg.ValidateFacebook(); err != nil {
		t.Fatalf("expected facebook config to validate: %v", err)
	}
}

func TestRawConfigOmitsUnset(t *testing.T) {
	raw := envConfig{}.rawConfig()
	if len(raw) != 0 {
		t.Fatalf("expected empty raw config, got %v", raw)
	}
}

package core

import (
	"context"
	"testing"
)

func TestRedactSensitiveMapMasksTokensKeepsPageMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"page_id":          "123",
		"token_expires_at": "2026-01-01T00:00:00Z",
		"access_token":     "EAAB-secret",
		"app_secret":       "shh",
		"code":             "auth-code",
		"nested":           map[string]any{"page_token": "EAAB-nested", "name": "S-Huset"},
	})

	if redacted["page_id"] != "123" || redacted["token_expires_at"] == RedactedValue {
		t.Fatalf("expected page metadata to stay visible, got %#v", redacted)
	}
	for _, key := range []string{"access_token", "app_secret", "code"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["page_token"] != RedactedValue || nested["name"] != "S-Huset" {
		t.Fatalf("unexpected nested redaction %#v", nested)
	}
}

func TestRunTriggerRoundTrip(t *testing.T) {
	ctx := WithRunTrigger(context.Background(), " scheduled ")
	if got := RunTriggerFromContext(ctx); got != "scheduled" {
		t.Fatalf("expected scheduled trigger, got %q", got)
	}
	if got := RunTriggerFromContext(WithRunTrigger(context.Background(), "")); got != "" {
		t.Fatalf("expected empty trigger to be ignored, got %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	if err := cfg.ValidateFacebook(); err == nil {
		t.Fatalf("expected missing facebook credentials to fail")
	}

	cfg.Ingest.Concurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative concurrency to fail")
	}
	cfg = DefaultConfig()
	cfg.Facebook.MaxAccountPages = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative account page limit to fail")
	}
	cfg = DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected blank service name to fail")
	}
}

func TestCfgxConfigProvider_LoadsRawValues(t *testing.T) {
	provider := NewCfgxConfigProvider(NewStaticRawConfigLoader(map[string]any{
		"facebook": map[string]any{"app_id": "app-1", "max_event_pages": 2, "max_account_pages": 7},
		"ingest":   map[string]any{"concurrency": 4},
	}))
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Facebook.AppID != "app-1" || cfg.Facebook.MaxEventPages != 2 || cfg.Ingest.Concurrency != 4 {
		t.Fatalf("unexpected loaded config %+v", cfg)
	}
	if cfg.Facebook.MaxAccountPages != 7 {
		t.Fatalf("unexpected loaded config %+v", cfg)
	}
	if cfg.Facebook.APIVersion != DefaultGraphAPIVersion {
		t.Fatalf("expected default api version, got %q", cfg.Facebook.APIVersion)
	}
}

package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultGraphAPIVersion      = "v23.0"
	DefaultGraphBaseURL         = "https://graph.facebook.com"
	DefaultRequestTimeout       = 20 * time.Second
	DefaultMaxEventPages        = 5
	DefaultMaxAccountPages      = 10
	DefaultRefreshThresholdDays = 45
	DefaultTokenLifetime        = 60 * 24 * time.Hour
)

type FacebookConfig struct {
	AppID          string        `koanf:"app_id" mapstructure:"app_id"`
	AppSecret      string        `koanf:"app_secret" mapstructure:"app_secret"`
	RedirectURI    string        `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	APIVersion     string        `koanf:"api_version" mapstructure:"api_version"`
	GraphBaseURL   string        `koanf:"graph_base_url" mapstructure:"graph_base_url"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	MaxEventPages  int           `koanf:"max_event_pages" mapstructure:"max_event_pages"`
	// MaxAccountPages caps the me/accounts pagination rounds during the callback.
	MaxAccountPages int `koanf:"max_account_pages" mapstructure:"max_account_pages"`
}

type TokenConfig struct {
	RefreshThresholdDays int           `koanf:"refresh_threshold_days" mapstructure:"refresh_threshold_days"`
	DefaultExpiresIn     time.Duration `koanf:"default_expires_in" mapstructure:"default_expires_in"`
}

type IngestConfig struct {
	Concurrency int `koanf:"concurrency" mapstructure:"concurrency"`
}

type StorageConfig struct {
	ProjectID     string `koanf:"project_id" mapstructure:"project_id"`
	Bucket        string `koanf:"bucket" mapstructure:"bucket"`
	PublicBaseURL string `koanf:"public_base_url" mapstructure:"public_base_url"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Facebook    FacebookConfig `koanf:"facebook" mapstructure:"facebook"`
	Token       TokenConfig    `koanf:"token" mapstructure:"token"`
	Ingest      IngestConfig   `koanf:"ingest" mapstructure:"ingest"`
	Storage     StorageConfig  `koanf:"storage" mapstructure:"storage"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "dtuevent",
		Facebook: FacebookConfig{
			APIVersion:      DefaultGraphAPIVersion,
			GraphBaseURL:    DefaultGraphBaseURL,
			RequestTimeout:  DefaultRequestTimeout,
			MaxEventPages:   DefaultMaxEventPages,
			MaxAccountPages: DefaultMaxAccountPages,
		},
		Token: TokenConfig{
			RefreshThresholdDays: DefaultRefreshThresholdDays,
			DefaultExpiresIn:     DefaultTokenLifetime,
		},
		Ingest: IngestConfig{Concurrency: 1},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.RefreshThresholdDays < 0 {
		return fmt.Errorf("core: token.refresh_threshold_days must not be negative")
	}
	if c.Token.DefaultExpiresIn < 0 {
		return fmt.Errorf("core: token.default_expires_in must not be negative")
	}
	if c.Facebook.RequestTimeout < 0 {
		return fmt.Errorf("core: facebook.request_timeout must not be negative")
	}
	if c.Facebook.MaxEventPages < 0 {
		return fmt.Errorf("core: facebook.max_event_pages must not be negative")
	}
	if c.Facebook.MaxAccountPages < 0 {
		return fmt.Errorf("core: facebook.max_account_pages must not be negative")
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("core: ingest.concurrency must not be negative")
	}
	return nil
}

// ValidateFacebook checks the settings needed to talk to the Graph API.
func (c Config) ValidateFacebook() error {
	missing := []string{}
	if strings.TrimSpace(c.Facebook.AppID) == "" {
		missing = append(missing, "facebook.app_id")
	}
	if strings.TrimSpace(c.Facebook.AppSecret) == "" {
		missing = append(missing, "facebook.app_secret")
	}
	if strings.TrimSpace(c.Facebook.RedirectURI) == "" {
		missing = append(missing, "facebook.redirect_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("core: %s required", strings.Join(missing, ", "))
	}
	return nil
}

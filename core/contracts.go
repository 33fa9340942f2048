package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenStore persists one live page token per page, appending a new version on every write.
type TokenStore interface {
	Put(ctx context.Context, pageID string, token string, expiresIn time.Duration) error
	// Get returns nil without error when no token exists for the page.
	Get(ctx context.Context, pageID string) (*PageToken, error)
}

type PageDirectory interface {
	ListActivePages(ctx context.Context) ([]Page, error)
	UpsertLinkedPage(ctx context.Context, link PageLink) error
	RecordRefreshSuccess(ctx context.Context, pageID string, refreshedAt time.Time, expiresAt time.Time) error
	RecordRefreshFailure(ctx context.Context, pageID string, message string, attemptedAt time.Time) error
}

type EventStore interface {
	// UpsertEvents writes the batch atomically, keyed by event id.
	UpsertEvents(ctx context.Context, events []Event) error
}

type AssetRehoster interface {
	// Rehost copies sourceURL under key and returns a stable public URL.
	Rehost(ctx context.Context, key string, sourceURL string) (string, error)
}

type GraphClient interface {
	ExchangeCodeForShortLivedToken(ctx context.Context, code string) (string, error)
	ExchangeForLongLivedToken(ctx context.Context, token string) (LongLivedToken, error)
	GetPagesForUser(ctx context.Context, userToken string) ([]FacebookPage, error)
	GetPageEvents(ctx context.Context, pageID string, pageToken string) ([]RawEvent, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

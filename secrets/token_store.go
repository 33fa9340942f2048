package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/philippzhuravlev/DTUEvent/core"
)

var (
	// ErrSecretExists is returned by CreateSecret when the container is already there.
	ErrSecretExists = errors.New("secrets: secret already exists")
	// ErrSecretNotFound is returned by AccessLatest when no version has been written.
	ErrSecretNotFound = errors.New("secrets: secret not found")
)

const secretNamePrefix = "facebook-token-"

// Backend is a versioned secret store. Versions are append-only; reads see the latest.
type Backend interface {
	CreateSecret(ctx context.Context, name string) error
	AddVersion(ctx context.Context, name string, payload []byte) error
	AccessLatest(ctx context.Context, name string) ([]byte, error)
}

// VersionCounter is implemented by backends that can report how many versions a secret holds.
type VersionCounter interface {
	VersionCount(ctx context.Context, name string) (int, error)
}

func SecretName(pageID string) string {
	return secretNamePrefix + strings.TrimSpace(pageID)
}

type tokenPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Option func(*TokenStore)

func WithSecretProvider(provider core.SecretProvider) Option {
	return func(s *TokenStore) {
		s.cipher = provider
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenStore keeps page tokens as sealed {token, expiresAt} payloads in a Backend.
type TokenStore struct {
	backend Backend
	cipher  core.SecretProvider
	now     func() time.Time
}

func NewTokenStore(backend Backend, opts ...Option) (*TokenStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("secrets: backend is required")
	}
	store := &TokenStore{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *TokenStore) Put(ctx context.Context, pageID string, token string, expiresIn time.Duration) error {
	if s == nil || s.backend == nil {
		return fmt.Errorf("secrets: token store is not configured")
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return fmt.Errorf("secrets: page id is required")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("secrets: token is required")
	}
	name := SecretName(pageID)
	if err := s.backend.CreateSecret(ctx, name); err != nil && !errors.Is(err, ErrSecretExists) {
		return fmt.Errorf("secrets: create %s: %w", name, err)
	}

	payload, err := json.Marshal(tokenPayload{
		Token:     strings.TrimSpace(token),
		ExpiresAt: s.now().UTC().Add(expiresIn),
	})
	if err != nil {
		return fmt.Errorf("secrets: encode payload: %w", err)
	}
	if s.cipher != nil {
		if payload, err = s.cipher.Encrypt(ctx, payload); err != nil {
			return err
		}
	}
	if err := s.backend.AddVersion(ctx, name, payload); err != nil {
		return fmt.Errorf("secrets: add version to %s: %w", name, err)
	}
	return nil
}

// Get returns nil without error when the page has no secret. Other backend errors propagate.
func (s *TokenStore) Get(ctx context.Context, pageID string) (*core.PageToken, error) {
	if s == nil || s.backend == nil {
		return nil, fmt.Errorf("secrets: token store is not configured")
	}
	pageID = strings.TrimSpace(pageID)
	payload, err := s.backend.AccessLatest(ctx, SecretName(pageID))
	if errors.Is(err, ErrSecretNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.cipher != nil {
		if payload, err = s.cipher.Decrypt(ctx, payload); err != nil {
			return nil, err
		}
	}
	return decodePayload(pageID, payload)
}

// decodePayload also accepts bare token strings written before expiry was recorded.
func decodePayload(pageID string, payload []byte) (*core.PageToken, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return &core.PageToken{PageID: pageID, Token: trimmed}, nil
	}
	var decoded tokenPayload
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, fmt.Errorf("secrets: decode payload for %s: %w", pageID, err)
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return nil, nil
	}
	return &core.PageToken{PageID: pageID, Token: decoded.Token, ExpiresAt: decoded.ExpiresAt.UTC()}, nil
}

var _ core.TokenStore = (*TokenStore)(nil)

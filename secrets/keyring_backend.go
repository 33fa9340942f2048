package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const defaultKeyringService = "dtuevent"

// KeyringBackend stores secrets in the OS keyring, for running the tools from a workstation.
// Each version lives under "<name>/v<n>" and "<name>" holds the latest version number.
type KeyringBackend struct {
	service string
	mu      sync.Mutex
}

func NewKeyringBackend(service string) *KeyringBackend {
	if strings.TrimSpace(service) == "" {
		service = defaultKeyringService
	}
	return &KeyringBackend{service: service}
}

func (b *KeyringBackend) CreateSecret(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := keyring.Get(b.service, name)
	if err == nil {
		return ErrSecretExists
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return keyring.Set(b.service, name, "0")
}

func (b *KeyringBackend) AddVersion(_ context.Context, name string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	latest, err := b.latestVersion(name)
	if err != nil {
		return err
	}
	next := latest + 1
	if err := keyring.Set(b.service, versionKey(name, next), base64.StdEncoding.EncodeToString(payload)); err != nil {
		return err
	}
	return keyring.Set(b.service, name, strconv.Itoa(next))
}

func (b *KeyringBackend) AccessLatest(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	latest, err := b.latestVersion(name)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, ErrSecretNotFound
	}
	encoded, err := keyring.Get(b.service, versionKey(name, latest))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func (b *KeyringBackend) VersionCount(_ context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	latest, err := b.latestVersion(name)
	if errors.Is(err, ErrSecretNotFound) {
		return 0, nil
	}
	return latest, err
}

func (b *KeyringBackend) latestVersion(name string) (int, error) {
	raw, err := keyring.Get(b.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return 0, ErrSecretNotFound
	}
	if err != nil {
		return 0, err
	}
	latest, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("secrets: corrupt version pointer for %s: %w", name, err)
	}
	return latest, nil
}

func versionKey(name string, version int) string {
	return name + "/v" + strconv.Itoa(version)
}

var (
	_ Backend        = (*KeyringBackend)(nil)
	_ VersionCounter = (*KeyringBackend)(nil)
)

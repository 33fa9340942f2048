package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryBackend keeps secrets in process. Used for dry runs and tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	versions map[string][][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{versions: map[string][][]byte{}}
}

func (b *MemoryBackend) CreateSecret(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = strings.TrimSpace(name)
	if _, ok := b.versions[name]; ok {
		return ErrSecretExists
	}
	b.versions[name] = [][]byte{}
	return nil
}

func (b *MemoryBackend) AddVersion(_ context.Context, name string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = strings.TrimSpace(name)
	versions, ok := b.versions[name]
	if !ok {
		return fmt.Errorf("secrets: secret %s does not exist", name)
	}
	b.versions[name] = append(versions, append([]byte(nil), payload...))
	return nil
}

func (b *MemoryBackend) AccessLatest(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	versions := b.versions[strings.TrimSpace(name)]
	if len(versions) == 0 {
		return nil, ErrSecretNotFound
	}
	return append([]byte(nil), versions[len(versions)-1]...), nil
}

func (b *MemoryBackend) VersionCount(_ context.Context, name string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.versions[strings.TrimSpace(name)]), nil
}

var (
	_ Backend        = (*MemoryBackend)(nil)
	_ VersionCounter = (*MemoryBackend)(nil)
)

package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestRedisBackend_Integration(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("DTUEVENT_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("DTUEVENT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("dtuevent-test-%d:", time.Now().UnixNano())
	backend, err := NewRedisBackend(ctx, RedisConfig{Addr: addr, Prefix: prefix})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	if _, err := backend.AccessLatest(ctx, "facebook-token-p1"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	store, err := NewTokenStore(backend, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}
	if err := store.Put(ctx, "p1", "t1", time.Hour); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.Put(ctx, "p1", "t2", time.Hour); err != nil {
		t.Fatalf("second put: %v", err)
	}
	token, err := store.Get(ctx, "p1")
	if err != nil || token == nil || token.Token != "t2" {
		t.Fatalf("expected latest token, got %+v err=%v", token, err)
	}
	if count, _ := backend.VersionCount(ctx, SecretName("p1")); count != 2 {
		t.Fatalf("expected 2 versions, got %d", count)
	}
}

package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestKeyringBackend_Versions(t *testing.T) {
	keyring.MockInit()
	backend := NewKeyringBackend("dtuevent-test")
	ctx := context.Background()

	if _, err := backend.AccessLatest(ctx, "facebook-token-p1"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected not found before create, got %v", err)
	}
	if err := backend.AddVersion(ctx, "facebook-token-p1", []byte("x")); err == nil {
		t.Fatalf("expected add version to fail before create")
	}
	if err := backend.CreateSecret(ctx, "facebook-token-p1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := backend.CreateSecret(ctx, "facebook-token-p1"); !errors.Is(err, ErrSecretExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if _, err := backend.AccessLatest(ctx, "facebook-token-p1"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected not found for empty secret, got %v", err)
	}

	for _, payload := range []string{"first", "second"} {
		if err := backend.AddVersion(ctx, "facebook-token-p1", []byte(payload)); err != nil {
			t.Fatalf("add version %s: %v", payload, err)
		}
	}
	latest, err := backend.AccessLatest(ctx, "facebook-token-p1")
	if err != nil || string(latest) != "second" {
		t.Fatalf("expected latest payload, got %q err=%v", latest, err)
	}
	if count, _ := backend.VersionCount(ctx, "facebook-token-p1"); count != 2 {
		t.Fatalf("expected 2 versions, got %d", count)
	}
}

func TestKeyringBackend_WithTokenStore(t *testing.T) {
	keyring.MockInit()
	store, err := NewTokenStore(NewKeyringBackend(""), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}
	if err := store.Put(context.Background(), "p2", "tok", 24*time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	token, err := store.Get(context.Background(), "p2")
	if err != nil || token == nil || token.Token != "tok" {
		t.Fatalf("expected stored token, got %+v err=%v", token, err)
	}
}

func TestKeyringBackend_UnavailableKeyringIsNotMissing(t *testing.T) {
	unavailable := errors.New("dbus: keyring daemon unavailable")
	keyring.MockInitWithError(unavailable)
	t.Cleanup(keyring.MockInit)
	backend := NewKeyringBackend("dtuevent-test")
	ctx := context.Background()

	if _, err := backend.AccessLatest(ctx, "facebook-token-p1"); !errors.Is(err, unavailable) {
		t.Fatalf("expected keyring error, got %v", err)
	}
	if _, err := backend.VersionCount(ctx, "facebook-token-p1"); !errors.Is(err, unavailable) {
		t.Fatalf("expected keyring error from version count, got %v", err)
	}
	if err := backend.CreateSecret(ctx, "facebook-token-p1"); !errors.Is(err, unavailable) {
		t.Fatalf("expected keyring error from create, got %v", err)
	}

	store, err := NewTokenStore(backend, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}
	token, err := store.Get(ctx, "p1")
	if err == nil || token != nil {
		t.Fatalf("expected read failure instead of a missing token, got %+v err=%v", token, err)
	}
}

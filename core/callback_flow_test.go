package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCallbackFlow(graph *fakeGraph, tokens *memTokenStore, pages *memPageDirectory) *CallbackFlow {
	return &CallbackFlow{Graph: graph, Tokens: tokens, Pages: pages, Now: fixedClock}
}

func TestCallbackFlow_MissingCodeHasNoSideEffects(t *testing.T) {
	graph := &fakeGraph{}
	tokens := newMemTokenStore()
	pages := newMemPageDirectory()

	_, err := newTestCallbackFlow(graph, tokens, pages).Run(context.Background(), "  ")
	if !IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if len(graph.exchangeCalls) != 0 || tokens.puts != 0 || pages.writes != 0 {
		t.Fatalf("expected no side effects on missing code")
	}
}

func TestCallbackFlow_ExchangeFailureAborts(t *testing.T) {
	graph := &fakeGraph{
		shortToken: "short",
		longErr:    NewUpstreamAuthError("short->long-lived", "Invalid OAuth access token", nil),
		pages:      []FacebookPage{{ID: "p1", Name: "Page", AccessToken: "pt"}},
	}
	tokens := newMemTokenStore()
	pages := newMemPageDirectory()

	_, err := newTestCallbackFlow(graph, tokens, pages).Run(context.Background(), "code")
	if !IsUpstreamAuth(err) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}
	if tokens.puts != 0 || pages.writes != 0 {
		t.Fatalf("expected no partial writes")
	}
}

func TestCallbackFlow_NoPagesIsSuccess(t *testing.T) {
	graph := &fakeGraph{shortToken: "short"}
	tokens := newMemTokenStore()
	pages := newMemPageDirectory()

	result, err := newTestCallbackFlow(graph, tokens, pages).Run(context.Background(), "code")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StoredCount != 0 || result.FailedCount != 0 {
		t.Fatalf("expected zero counts, got %+v", result)
	}
	if tokens.puts != 0 || pages.writes != 0 {
		t.Fatalf("expected no persistence calls")
	}
	if got := CallbackMessage(result); got != "No pages returned." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCallbackFlow_StoresPagesAndIsolatesFailures(t *testing.T) {
	graph := &fakeGraph{
		shortToken: "short",
		longToken:  LongLivedToken{AccessToken: "user-long", ExpiresIn: 30 * 24 * time.Hour},
		pages: []FacebookPage{
			{ID: "p1", Name: "S-Huset", AccessToken: "tok-1"},
			{ID: "p2", Name: "Broken", AccessToken: "tok-2"},
			{ID: "p3", Name: "Diagonalen", AccessToken: "tok-3"},
		},
	}
	tokens := newMemTokenStore()
	tokens.putErr = map[string]error{"p2": errors.New("secret backend down")}
	pages := newMemPageDirectory()

	result, err := newTestCallbackFlow(graph, tokens, pages).Run(context.Background(), "code")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StoredCount != 2 || result.FailedCount != 1 {
		t.Fatalf("expected 2 stored and 1 failed, got %+v", result)
	}
	if got := CallbackMessage(result); got != "Stored 2 page token(s)." {
		t.Fatalf("unexpected message %q", got)
	}

	stored, err := tokens.Get(context.Background(), "p3")
	if err != nil || stored == nil || stored.Token != "tok-3" {
		t.Fatalf("expected p3 token stored, got %+v err=%v", stored, err)
	}
	if want := testNow.Add(30 * 24 * time.Hour); !stored.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, stored.ExpiresAt)
	}
	page := pages.pages["p1"]
	if !page.Active || page.ConnectedAt == nil || page.TokenRefreshedAt == nil {
		t.Fatalf("expected linked page metadata, got %+v", page)
	}
	if _, ok := pages.pages["p2"]; ok {
		t.Fatalf("expected failed page to have no metadata")
	}
}

func TestCallbackFlow_AllPagesFailingReturnsAggregate(t *testing.T) {
	graph := &fakeGraph{
		shortToken: "short",
		pages:      []FacebookPage{{ID: "p1", Name: "One", AccessToken: "tok"}},
	}
	tokens := newMemTokenStore()
	pages := newMemPageDirectory()
	pages.upsertErr = map[string]error{"p1": errors.New("firestore down")}

	result, err := newTestCallbackFlow(graph, tokens, pages).Run(context.Background(), "code")
	if !HasTextCode(err, ErrorPartialBatch) {
		t.Fatalf("expected partial batch error, got %v", err)
	}
	if result.FailedCount != 1 || !strings.Contains(result.Pages[0].Error, "firestore down") {
		t.Fatalf("expected page failure detail, got %+v", result)
	}
}

func TestCallbackErrorMessage_HidesDetailUnlessDebug(t *testing.T) {
	err := NewUpstreamAuthError("code->short-lived", "Invalid verification code format.", nil)
	if got := CallbackErrorMessage(err, false); got != GenericCallbackFailure {
		t.Fatalf("expected generic message, got %q", got)
	}
	if got := CallbackErrorMessage(err, true); !strings.Contains(got, "Invalid verification code format.") {
		t.Fatalf("expected detailed message, got %q", got)
	}
}

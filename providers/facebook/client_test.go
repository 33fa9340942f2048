package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/philippzhuravlev/DTUEvent/core"
)

var testNow = time.Date(2025, 12, 6, 12, 0, 0, 0, time.UTC)

func newGraphServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/v23.0/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("client_id") != "app-id" || r.Form.Get("client_secret") != "app-secret" {
			writeGraphError(w, http.StatusBadRequest, "Error validating client secret.")
			return
		}
		switch {
		case r.Method == http.MethodPost && r.Form.Get("code") == "good-code":
			writeJSON(w, map[string]any{"access_token": "short-token", "token_type": "bearer", "expires_in": 3600})
		case r.Method == http.MethodPost:
			writeGraphError(w, http.StatusBadRequest, "Invalid authorization code")
		case r.Form.Get("grant_type") == "fb_exchange_token" && r.Form.Get("fb_exchange_token") == "short-token":
			writeJSON(w, map[string]any{"access_token": "long-token", "token_type": "bearer", "expires_in": 5184000})
		case r.Form.Get("grant_type") == "fb_exchange_token" && r.Form.Get("fb_exchange_token") == "no-expiry":
			writeJSON(w, map[string]any{"access_token": "long-token-2", "token_type": "bearer"})
		default:
			writeGraphError(w, http.StatusBadRequest, "Error validating access token: Session has expired")
		}
	})
	mux.HandleFunc("/v23.0/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("access_token") {
		case "long-token":
			if r.URL.Query().Get("after") == "" {
				writeJSON(w, map[string]any{
					"data":   []map[string]any{{"id": "p1", "name": "S-Huset", "access_token": "page-1"}},
					"paging": map[string]any{"next": server.URL + "/v23.0/me/accounts?access_token=long-token&after=c1"},
				})
				return
			}
			writeJSON(w, map[string]any{"data": []map[string]any{{"id": "p2", "name": "Diagonalen", "access_token": "page-2"}}})
		case "lonely-token":
			writeJSON(w, map[string]any{"data": []map[string]any{}})
		default:
			writeGraphError(w, http.StatusUnauthorized, "Invalid OAuth access token.")
		}
	})
	mux.HandleFunc("/v23.0/shuset.dk/events", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		query := r.URL.Query()
		if query.Get("time_filter") != "upcoming" || !strings.Contains(query.Get("fields"), "cover{source}") {
			t.Errorf("unexpected events query: %s", r.URL.RawQuery)
		}
		writeJSON(w, map[string]any{"data": []map[string]any{
			{"id": "1", "name": "Friday Bar", "start_time": "2025-12-12T18:00:00+0100", "cover": map[string]any{"source": "https://x/1.jpg"}},
			{"id": "2", "name": "Already over", "start_time": "2025-12-01T18:00:00+0100", "end_time": "2025-12-01T22:00:00+0100"},
			{"id": "3", "name": "Ongoing", "start_time": "2025-12-05T10:00:00+0100", "end_time": "2025-12-07T10:00:00+0100",
				"place": map[string]any{"name": "S-Huset", "location": map[string]any{"city": "Lyngby"}}},
		}})
	})
	mux.HandleFunc("/v23.0/empty/events", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]any{"data": []map[string]any{}})
	})
	mux.HandleFunc("/v23.0/down/events", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeGraphError(w, http.StatusInternalServerError, "An unexpected error has occurred.")
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeGraphError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "OAuthException", "code": 190},
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		AppID:        "app-id",
		AppSecret:    "app-secret",
		RedirectURI:  "https://dtuevent.test/callback",
		GraphBaseURL: baseURL,
		Now:          func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{AppSecret: "s"}); err == nil {
		t.Fatalf("expected missing app id error")
	}
	if _, err := NewClient(Config{AppID: "a"}); err == nil {
		t.Fatalf("expected missing app secret error")
	}
}

func TestClient_AuthCodeURL(t *testing.T) {
	client := newTestClient(t, "https://graph.example")
	raw := client.AuthCodeURL("state-1")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if parsed.Host != "www.facebook.com" || parsed.Path != "/v23.0/dialog/oauth" {
		t.Fatalf("unexpected auth url %q", raw)
	}
	query := parsed.Query()
	if query.Get("client_id") != "app-id" || query.Get("state") != "state-1" {
		t.Fatalf("unexpected auth query %q", parsed.RawQuery)
	}
	if query.Get("scope") != "pages_show_list pages_read_engagement" {
		t.Fatalf("unexpected scopes %q", query.Get("scope"))
	}
	if query.Get("redirect_uri") != "https://dtuevent.test/callback" {
		t.Fatalf("unexpected redirect uri %q", query.Get("redirect_uri"))
	}
}

func TestClient_TokenExchangeChain(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)

	short, err := client.ExchangeCodeForShortLivedToken(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("code exchange: %v", err)
	}
	if short != "short-token" {
		t.Fatalf("unexpected short token %q", short)
	}
	long, err := client.ExchangeForLongLivedToken(context.Background(), short)
	if err != nil {
		t.Fatalf("long exchange: %v", err)
	}
	if long.AccessToken != "long-token" || long.ExpiresIn != 60*24*time.Hour {
		t.Fatalf("unexpected long token %+v", long)
	}

	noExpiry, err := client.ExchangeForLongLivedToken(context.Background(), "no-expiry")
	if err != nil {
		t.Fatalf("long exchange without expiry: %v", err)
	}
	if noExpiry.ExpiresIn != 0 {
		t.Fatalf("expected zero lifetime when provider omits it, got %s", noExpiry.ExpiresIn)
	}
}

func TestClient_CodeExchangeRejectionIsWrapped(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)

	_, err := client.ExchangeCodeForShortLivedToken(context.Background(), "expired-code")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "code->short-lived") || !strings.Contains(err.Error(), "Invalid authorization code") {
		t.Fatalf("expected label and upstream message, got %q", err.Error())
	}
	if !core.IsUpstreamAuth(err) {
		t.Fatalf("expected upstream auth classification")
	}
}

func TestClient_CodeExchangeOutageIsTransport(t *testing.T) {
	var calls atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeGraphError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	}))
	defer down.Close()
	client := newTestClient(t, down.URL)

	_, err := client.ExchangeCodeForShortLivedToken(context.Background(), "good-code")
	if err == nil {
		t.Fatalf("expected error")
	}
	if core.IsUpstreamAuth(err) {
		t.Fatalf("a 503 must not be reported as a rejected code: %v", err)
	}
	if !core.IsTransport(err) {
		t.Fatalf("expected transport classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "code->short-lived: Service temporarily unavailable") {
		t.Fatalf("expected label and upstream message, got %q", err.Error())
	}
	if calls.Load() == 0 {
		t.Fatalf("expected the token endpoint to be called")
	}
}

func TestClient_LongExchangeRejectionIsWrapped(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)

	_, err := client.ExchangeForLongLivedToken(context.Background(), "stale-page-token")
	if !core.IsUpstreamAuth(err) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}
	if !strings.Contains(err.Error(), "short->long-lived: Error validating access token") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if strings.Contains(err.Error(), "stale-page-token") {
		t.Fatalf("error must not echo the token")
	}
}

func TestClient_GetPagesForUserFollowsPaging(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)

	pages, err := client.GetPagesForUser(context.Background(), "long-token")
	if err != nil {
		t.Fatalf("get pages: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "p1" || pages[1].AccessToken != "page-2" {
		t.Fatalf("unexpected pages %+v", pages)
	}

	empty, err := client.GetPagesForUser(context.Background(), "lonely-token")
	if err != nil {
		t.Fatalf("get pages for user without pages: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %+v", empty)
	}

	_, err = client.GetPagesForUser(context.Background(), "bad-token")
	if !core.IsTransport(err) || !strings.Contains(err.Error(), "fetch-pages: Invalid OAuth access token.") {
		t.Fatalf("expected wrapped fetch-pages error, got %v", err)
	}
}

func TestClient_AccountPagingHasItsOwnLimit(t *testing.T) {
	var calls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		writeJSON(w, map[string]any{
			"data":   []map[string]any{{"id": "p" + strconv.Itoa(int(n)), "name": "Page", "access_token": "page-token"}},
			"paging": map[string]any{"next": server.URL + "/v23.0/me/accounts?access_token=long-token&after=c" + strconv.Itoa(int(n))},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		AppID:           "app-id",
		AppSecret:       "app-secret",
		GraphBaseURL:    server.URL,
		MaxEventPages:   1,
		MaxAccountPages: 3,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	pages, err := client.GetPagesForUser(context.Background(), "long-token")
	if err != nil {
		t.Fatalf("get pages: %v", err)
	}
	if len(pages) != 3 || calls.Load() != 3 {
		t.Fatalf("expected 3 account rounds, got %d pages over %d calls", len(pages), calls.Load())
	}

	defaults, err := NewClient(Config{AppID: "app-id", AppSecret: "app-secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if defaults.cfg.MaxAccountPages != core.DefaultMaxAccountPages {
		t.Fatalf("expected default account page limit, got %d", defaults.cfg.MaxAccountPages)
	}
}

func TestClient_GetPageEventsFiltersToUpcoming(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)

	events, err := client.GetPageEvents(context.Background(), "shuset.dk", "page-1")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 2 || events[0].ID != "1" || events[1].ID != "3" {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Cover == nil || events[0].Cover.Source != "https://x/1.jpg" {
		t.Fatalf("expected cover source decoded")
	}
	if events[1].Place == nil || events[1].Place.Location == nil || *events[1].Place.Location.City != "Lyngby" {
		t.Fatalf("expected place decoded, got %+v", events[1].Place)
	}

	empty, err := client.GetPageEvents(context.Background(), "empty", "page-1")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty events, got %+v err=%v", empty, err)
	}

	_, err = client.GetPageEvents(context.Background(), "down", "page-1")
	if !core.IsTransport(err) || !strings.Contains(err.Error(), "fetch-events") {
		t.Fatalf("expected wrapped fetch-events error, got %v", err)
	}
}

func TestClient_TransportFailureIsWrapped(t *testing.T) {
	server, _ := newGraphServer(t)
	client := newTestClient(t, server.URL)
	server.Close()

	_, err := client.GetPageEvents(context.Background(), "shuset.dk", "page-secret")
	if !core.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if strings.Contains(err.Error(), "page-secret") {
		t.Fatalf("transport error leaked token: %q", err.Error())
	}
}

func TestClient_RequestTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	client, err := NewClient(Config{
		AppID: "app-id", AppSecret: "app-secret", GraphBaseURL: slow.URL, RequestTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	started := time.Now()
	_, err = client.GetPageEvents(context.Background(), "shuset.dk", "page-1")
	if !core.IsTransport(err) {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("timeout was not enforced")
	}
}

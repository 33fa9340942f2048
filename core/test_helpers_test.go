package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var testNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeGraph struct {
	mu sync.Mutex

	shortToken    string
	shortErr      error
	longToken     LongLivedToken
	longErr       error
	longErrFor    map[string]error
	pages         []FacebookPage
	pagesErr      error
	events        map[string][]RawEvent
	eventsErr     map[string]error
	exchangeCalls []string
	eventCalls    []string
}

func (g *fakeGraph) ExchangeCodeForShortLivedToken(_ context.Context, code string) (string, error) {
	if g.shortErr != nil {
		return "", g.shortErr
	}
	return g.shortToken, nil
}

func (g *fakeGraph) ExchangeForLongLivedToken(_ context.Context, token string) (LongLivedToken, error) {
	g.mu.Lock()
	g.exchangeCalls = append(g.exchangeCalls, token)
	g.mu.Unlock()
	if err := g.longErrFor[token]; err != nil {
		return LongLivedToken{}, err
	}
	if g.longErr != nil {
		return LongLivedToken{}, g.longErr
	}
	out := g.longToken
	if out.AccessToken == "" {
		out.AccessToken = "long-" + token
	}
	return out, nil
}

func (g *fakeGraph) GetPagesForUser(context.Context, string) ([]FacebookPage, error) {
	return g.pages, g.pagesErr
}

func (g *fakeGraph) GetPageEvents(_ context.Context, pageID string, _ string) ([]RawEvent, error) {
	g.mu.Lock()
	g.eventCalls = append(g.eventCalls, pageID)
	g.mu.Unlock()
	if err := g.eventsErr[pageID]; err != nil {
		return nil, err
	}
	return g.events[pageID], nil
}

type memTokenStore struct {
	mu       sync.Mutex
	versions map[string][]PageToken
	getErr   map[string]error
	putErr   map[string]error
	now      func() time.Time
	puts     int
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{versions: map[string][]PageToken{}, now: fixedClock}
}

func (s *memTokenStore) Put(_ context.Context, pageID string, token string, expiresIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[pageID]; err != nil {
		return err
	}
	s.puts++
	s.versions[pageID] = append(s.versions[pageID], PageToken{
		PageID:    pageID,
		Token:     token,
		ExpiresAt: s.now().Add(expiresIn),
	})
	return nil
}

func (s *memTokenStore) Get(_ context.Context, pageID string) (*PageToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[pageID]; err != nil {
		return nil, err
	}
	versions := s.versions[pageID]
	if len(versions) == 0 {
		return nil, nil
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

func (s *memTokenStore) seed(pageID, token string, expiresAt time.Time) {
	s.versions[pageID] = append(s.versions[pageID], PageToken{PageID: pageID, Token: token, ExpiresAt: expiresAt})
}

type memPageDirectory struct {
	mu        sync.Mutex
	pages     map[string]Page
	listErr   error
	upsertErr map[string]error
	successes []string
	failures  map[string]string
	writes    int
}

func newMemPageDirectory(pages ...Page) *memPageDirectory {
	dir := &memPageDirectory{pages: map[string]Page{}, failures: map[string]string{}}
	for _, page := range pages {
		dir.pages[page.ID] = page
	}
	return dir
}

func (d *memPageDirectory) ListActivePages(context.Context) ([]Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]Page, 0, len(d.pages))
	for _, page := range d.pages {
		if page.Active {
			out = append(out, page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memPageDirectory) UpsertLinkedPage(_ context.Context, link PageLink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.upsertErr[link.ID]; err != nil {
		return err
	}
	d.writes++
	page := d.pages[link.ID]
	page.ID = link.ID
	page.Name = link.Name
	page.Active = true
	if page.ConnectedAt == nil {
		linkedAt := link.LinkedAt
		page.ConnectedAt = &linkedAt
	}
	refreshedAt := link.LinkedAt
	expiresAt := link.TokenExpiresAt
	page.TokenRefreshedAt = &refreshedAt
	page.TokenExpiresAt = &expiresAt
	d.pages[link.ID] = page
	return nil
}

func (d *memPageDirectory) RecordRefreshSuccess(_ context.Context, pageID string, refreshedAt time.Time, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	d.successes = append(d.successes, pageID)
	page := d.pages[pageID]
	ok := true
	page.TokenRefreshedAt = &refreshedAt
	page.TokenExpiresAt = &expiresAt
	page.LastRefreshSuccess = &ok
	page.LastRefreshError = nil
	d.pages[pageID] = page
	return nil
}

func (d *memPageDirectory) RecordRefreshFailure(_ context.Context, pageID string, message string, attemptedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	d.failures[pageID] = message
	if pageID == "broken-write" {
		return errors.New("directory unavailable")
	}
	return nil
}

type memEventStore struct {
	mu       sync.Mutex
	events   map[string]Event
	batches  [][]Event
	batchErr error
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: map[string]Event{}}
}

func (s *memEventStore) UpsertEvents(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches = append(s.batches, append([]Event(nil), events...))
	for _, event := range events {
		s.events[event.ID] = event
	}
	return nil
}

type fakeRehoster struct {
	err  error
	keys []string
}

func (r *fakeRehoster) Rehost(_ context.Context, key string, sourceURL string) (string, error) {
	r.keys = append(r.keys, key)
	if r.err != nil {
		return "", r.err
	}
	return "https://cdn.dtuevent.test/" + key + ".jpg", nil
}

func strPtr(value string) *string { return &value }

func timePtr(value time.Time) *time.Time { return &value }

package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// IngestionPipeline syncs upcoming events for every active page. It never mutates token state.
type IngestionPipeline struct {
	Pages       PageDirectory
	Tokens      TokenStore
	Graph       GraphClient
	Rehoster    AssetRehoster
	Events      EventStore
	Logger      Logger
	Now         func() time.Time
	Concurrency int
}

// Run only fails when the page list cannot be read; page failures land in the result.
func (p *IngestionPipeline) Run(ctx context.Context) (IngestionResult, error) {
	startedAt := time.Now()
	if p == nil || p.Pages == nil || p.Tokens == nil || p.Graph == nil || p.Events == nil {
		return IngestionResult{}, fmt.Errorf("core: ingestion pipeline is not configured")
	}
	pages, err := p.Pages.ListActivePages(ctx)
	if err != nil {
		return IngestionResult{}, fmt.Errorf("core: list pages: %w", err)
	}
	result := IngestionResult{TotalPages: len(pages), PageResults: make([]PageIngestResult, len(pages))}
	if len(pages) == 0 {
		result.Duration = time.Since(startedAt)
		return result, nil
	}

	workers := p.Concurrency
	if workers <= 1 {
		for i, page := range pages {
			result.PageResults[i] = p.ingestPage(ctx, page)
		}
	} else {
		slots := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i, page := range pages {
			wg.Add(1)
			slots <- struct{}{}
			go func(index int, page Page) {
				defer wg.Done()
				defer func() { <-slots }()
				result.PageResults[index] = p.ingestPage(ctx, page)
			}(i, page)
		}
		wg.Wait()
	}

	for _, page := range result.PageResults {
		result.TotalEvents += page.EventsSynced
		result.TotalEventsFailed += page.EventsFailed
		switch page.Status {
		case PageStatusSuccess:
			result.SuccessfulPages++
		case PageStatusFailed:
			result.FailedPages++
		case PageStatusSkipped:
			result.SkippedPages++
		}
	}
	result.Duration = time.Since(startedAt)
	return result, nil
}

func (p *IngestionPipeline) ingestPage(ctx context.Context, page Page) (out PageIngestResult) {
	startedAt := time.Now()
	logger := glog.Ensure(p.Logger)
	out = PageIngestResult{PageID: page.ID, PageName: page.Name}
	defer func() {
		out.Duration = time.Since(startedAt)
		if r := recover(); r != nil {
			out.Status = PageStatusFailed
			out.Error = fmt.Sprintf("panic: %v", r)
		}
		logger.Info("page ingest finished", "page_id", out.PageID, "status", string(out.Status),
			"reason", out.Reason, "events_synced", out.EventsSynced, "events_failed", out.EventsFailed)
	}()

	token, err := p.Tokens.Get(ctx, page.ID)
	if err != nil {
		out.Status = PageStatusFailed
		out.Error = "read token: " + err.Error()
		return out
	}
	if token == nil {
		out.Status = PageStatusSkipped
		out.Reason = SkipReasonNoToken
		return out
	}
	if token.Expired(p.now()) {
		out.Status = PageStatusSkipped
		out.Reason = SkipReasonTokenExpired
		return out
	}

	raws, err := p.Graph.GetPageEvents(ctx, page.ID, token.Token)
	if err != nil {
		out.Status = PageStatusFailed
		out.Error = err.Error()
		return out
	}
	if len(raws) == 0 {
		out.Status = PageStatusSuccess
		return out
	}

	batch := make([]Event, 0, len(raws))
	for _, raw := range raws {
		event, err := NormalizeEvent(page.ID, raw)
		if err != nil {
			out.EventsFailed++
			logger.Warn("event skipped", "page_id", page.ID, "event_id", raw.ID, "error", err.Error())
			continue
		}
		p.rehostCover(ctx, &event)
		batch = append(batch, event)
	}
	if len(batch) == 0 {
		out.Status = PageStatusSuccess
		return out
	}
	if err := p.Events.UpsertEvents(ctx, batch); err != nil {
		out.Status = PageStatusFailed
		out.EventsFailed += len(batch)
		out.Error = "upsert events: " + err.Error()
		return out
	}
	out.Status = PageStatusSuccess
	out.EventsSynced = len(batch)
	return out
}

// rehostCover keeps the original cover URL when rehosting fails.
func (p *IngestionPipeline) rehostCover(ctx context.Context, event *Event) {
	if p.Rehoster == nil || event.CoverImageURL == nil {
		return
	}
	source := strings.TrimSpace(*event.CoverImageURL)
	hosted, err := p.Rehoster.Rehost(ctx, CoverAssetKey(event.ID), source)
	if err != nil || strings.TrimSpace(hosted) == "" {
		if err != nil {
			glog.Ensure(p.Logger).Warn("cover rehost failed", "event_id", event.ID, "error", err.Error())
		}
		return
	}
	event.CoverImageURL = &hosted
}

func (p *IngestionPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

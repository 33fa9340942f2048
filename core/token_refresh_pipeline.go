package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenRefreshPipeline rotates page tokens older than the eligibility window.
type TokenRefreshPipeline struct {
	Pages            PageDirectory
	Tokens           TokenStore
	Graph            GraphClient
	Logger           Logger
	Now              func() time.Time
	ThresholdDays    int
	DefaultExpiresIn time.Duration
}

func (p *TokenRefreshPipeline) Run(ctx context.Context) (RefreshResult, error) {
	startedAt := time.Now()
	if p == nil || p.Pages == nil || p.Tokens == nil || p.Graph == nil {
		return RefreshResult{}, fmt.Errorf("core: token refresh pipeline is not configured")
	}
	pages, err := p.Pages.ListActivePages(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("core: list pages: %w", err)
	}
	logger := glog.Ensure(p.Logger)
	result := RefreshResult{TotalPages: len(pages)}

	for _, page := range pages {
		eligible, days := RefreshEligible(p.now(), page, p.ThresholdDays)
		entry := PageRefreshResult{PageID: page.ID, PageName: page.Name, DaysSinceRefresh: days}
		if !eligible {
			entry.Reason = SkipReasonRecentlyDone
			result.Skipped = append(result.Skipped, entry)
			continue
		}

		expiresAt, err := p.refreshPage(ctx, page.ID)
		if err != nil {
			entry.Error = err.Error()
			result.Failed = append(result.Failed, entry)
			logger.Error("page token refresh failed", "page_id", page.ID, "error", entry.Error)
			if recordErr := p.Pages.RecordRefreshFailure(ctx, page.ID, entry.Error, p.now()); recordErr != nil {
				logger.Warn("record refresh failure", "page_id", page.ID, "error", recordErr.Error())
			}
			continue
		}
		entry.ExpiresAt = &expiresAt
		result.Refreshed = append(result.Refreshed, entry)
		logger.Info("page token refreshed", "page_id", page.ID,
			"token_expires_at", expiresAt.Format(time.RFC3339))
	}

	result.Duration = time.Since(startedAt)
	return result, nil
}

func (p *TokenRefreshPipeline) refreshPage(ctx context.Context, pageID string) (time.Time, error) {
	current, err := p.Tokens.Get(ctx, pageID)
	if err != nil {
		return time.Time{}, fmt.Errorf("read token: %w", err)
	}
	if current == nil || current.Token == "" {
		return time.Time{}, NewSecretNotFoundError(pageID)
	}

	refreshed, err := p.Graph.ExchangeForLongLivedToken(ctx, current.Token)
	if err != nil {
		return time.Time{}, err
	}
	now := p.now()
	expiresAt := TokenExpiry(now, refreshed.ExpiresIn, p.DefaultExpiresIn)
	if err := p.Tokens.Put(ctx, pageID, refreshed.AccessToken, expiresAt.Sub(now)); err != nil {
		return time.Time{}, fmt.Errorf("store token: %w", err)
	}
	if err := p.Pages.RecordRefreshSuccess(ctx, pageID, now, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("record refresh: %w", err)
	}
	return expiresAt, nil
}

func (p *TokenRefreshPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

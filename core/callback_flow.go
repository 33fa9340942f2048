package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CallbackFlow completes the page linking handshake for one authorization code.
type CallbackFlow struct {
	Graph            GraphClient
	Tokens           TokenStore
	Pages            PageDirectory
	Logger           Logger
	Now              func() time.Time
	DefaultExpiresIn time.Duration
}

func (f *CallbackFlow) Run(ctx context.Context, code string) (CallbackResult, error) {
	if f == nil || f.Graph == nil || f.Tokens == nil || f.Pages == nil {
		return CallbackResult{}, fmt.Errorf("core: callback flow is not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return CallbackResult{}, NewBadRequestError("missing authorization code")
	}
	logger := glog.Ensure(f.Logger)

	shortToken, err := f.Graph.ExchangeCodeForShortLivedToken(ctx, code)
	if err != nil {
		return CallbackResult{}, err
	}
	longToken, err := f.Graph.ExchangeForLongLivedToken(ctx, shortToken)
	if err != nil {
		return CallbackResult{}, err
	}
	pages, err := f.Graph.GetPagesForUser(ctx, longToken.AccessToken)
	if err != nil {
		return CallbackResult{}, err
	}

	result := CallbackResult{Pages: make([]LinkedPageResult, 0, len(pages))}
	if len(pages) == 0 {
		logger.Info("facebook callback returned no pages")
		return result, nil
	}

	failures := map[string]string{}
	for _, page := range pages {
		linked := f.linkPage(ctx, page, longToken.ExpiresIn)
		result.Pages = append(result.Pages, linked)
		if linked.Stored {
			result.StoredCount++
			logger.Info("page linked", "page_id", linked.PageID, "page_name", linked.Name,
				"token_expires_at", linked.TokenExpiresAt.Format(time.RFC3339))
			continue
		}
		result.FailedCount++
		failures[linked.PageID] = linked.Error
		logger.Error("page link failed", "page_id", linked.PageID, "error", linked.Error)
	}

	if result.StoredCount == 0 {
		return result, NewPartialBatchError(
			fmt.Sprintf("no page tokens stored (%d failed)", result.FailedCount),
			failures,
		)
	}
	return result, nil
}

func (f *CallbackFlow) linkPage(ctx context.Context, page FacebookPage, expiresIn time.Duration) LinkedPageResult {
	now := f.now()
	linked := LinkedPageResult{
		PageID:         strings.TrimSpace(page.ID),
		Name:           strings.TrimSpace(page.Name),
		TokenExpiresAt: TokenExpiry(now, expiresIn, f.DefaultExpiresIn),
	}
	if linked.PageID == "" {
		linked.Error = "page id is empty"
		return linked
	}
	if strings.TrimSpace(page.AccessToken) == "" {
		linked.Error = "page access token is empty"
		return linked
	}
	if expiresIn <= 0 {
		expiresIn = linked.TokenExpiresAt.Sub(now)
	}
	if err := f.Tokens.Put(ctx, linked.PageID, page.AccessToken, expiresIn); err != nil {
		linked.Error = "store token: " + err.Error()
		return linked
	}
	err := f.Pages.UpsertLinkedPage(ctx, PageLink{
		ID:             linked.PageID,
		Name:           linked.Name,
		LinkedAt:       now,
		TokenExpiresAt: linked.TokenExpiresAt,
	})
	if err != nil {
		linked.Error = "store page: " + err.Error()
		return linked
	}
	linked.Stored = true
	return linked
}

func (f *CallbackFlow) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

// CallbackMessage is the success text returned to the admin who linked pages.
func CallbackMessage(result CallbackResult) string {
	if result.StoredCount == 0 && result.FailedCount == 0 {
		return "No pages returned."
	}
	return fmt.Sprintf("Stored %d page token(s).", result.StoredCount)
}

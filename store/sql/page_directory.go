package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/philippzhuravlev/DTUEvent/core"
	"github.com/uptrace/bun"
)

const facebookPageBaseURL = "https://facebook.com/"

type PageDirectory struct {
	db   *bun.DB
	repo repository.Repository[*pageRecord]
	now  func() time.Time
}

func NewPageDirectory(db *bun.DB) (*PageDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*pageRecord](db, pageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid page repository wiring: %w", err)
		}
	}
	return &PageDirectory{db: db, repo: repo, now: time.Now}, nil
}

// PageURL is the public Facebook URL written for a linked page.
func PageURL(pageID string) string {
	return facebookPageBaseURL + strings.TrimSpace(pageID)
}

func (s *PageDirectory) ListActivePages(ctx context.Context) ([]core.Page, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: page directory is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("active", "=", true),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	pages := make([]core.Page, 0, len(records))
	for _, record := range records {
		pages = append(pages, record.toDomain())
	}
	return pages, nil
}

// GetPage returns the page with the given id, or nil when it is unknown.
func (s *PageDirectory) GetPage(ctx context.Context, pageID string) (*core.Page, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: page directory is not configured")
	}
	record, err := findPageTx(ctx, s.db, strings.TrimSpace(pageID))
	if err != nil || record == nil {
		return nil, err
	}
	page := record.toDomain()
	return &page, nil
}

// UpsertLinkedPage activates the page and marks its token freshly refreshed.
// connected_at is only written the first time a page is linked.
func (s *PageDirectory) UpsertLinkedPage(ctx context.Context, link core.PageLink) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: page directory is not configured")
	}
	pageID := strings.TrimSpace(link.ID)
	if pageID == "" {
		return fmt.Errorf("sqlstore: page id is required")
	}
	now := s.now().UTC()
	linkedAt := link.LinkedAt.UTC()
	if link.LinkedAt.IsZero() {
		linkedAt = now
	}
	success := true
	record := &pageRecord{
		ID:                 pageID,
		Name:               strings.TrimSpace(link.Name),
		URL:                PageURL(pageID),
		Active:             true,
		ConnectedAt:        &linkedAt,
		TokenRefreshedAt:   &linkedAt,
		LastRefreshSuccess: &success,
		LastRefreshAttempt: &linkedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !link.TokenExpiresAt.IsZero() {
		expiresAt := link.TokenExpiresAt.UTC()
		record.TokenExpiresAt = &expiresAt
	}

	// connected_at and created_at survive a relink.
	q := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("connected_at = COALESCE(?TableAlias.connected_at, EXCLUDED.connected_at)")
	for _, column := range []string{
		"name", "url", "active", "token_refreshed_at", "token_expires_at",
		"last_refresh_success", "last_refresh_error", "last_refresh_attempt", "updated_at",
	} {
		q = q.Set(column + " = EXCLUDED." + column)
	}
	_, err := q.Exec(ctx)
	return err
}

func (s *PageDirectory) RecordRefreshSuccess(ctx context.Context, pageID string, refreshedAt time.Time, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: page directory is not configured")
	}
	var expires *time.Time
	if !expiresAt.IsZero() {
		value := expiresAt.UTC()
		expires = &value
	}
	_, err := s.db.NewUpdate().
		Model((*pageRecord)(nil)).
		Set("token_refreshed_at = ?", refreshedAt.UTC()).
		Set("token_expires_at = ?", expires).
		Set("last_refresh_success = ?", true).
		Set("last_refresh_error = NULL").
		Set("last_refresh_attempt = ?", refreshedAt.UTC()).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(pageID)).
		Exec(ctx)
	return err
}

func (s *PageDirectory) RecordRefreshFailure(ctx context.Context, pageID string, message string, attemptedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: page directory is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*pageRecord)(nil)).
		Set("last_refresh_success = ?", false).
		Set("last_refresh_error = ?", message).
		Set("last_refresh_attempt = ?", attemptedAt.UTC()).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(pageID)).
		Exec(ctx)
	return err
}

// SetActive toggles whether a page takes part in ingestion and refresh runs.
func (s *PageDirectory) SetActive(ctx context.Context, pageID string, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: page directory is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*pageRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(pageID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: page %q not found", pageID)
	}
	return nil
}

func findPageTx(ctx context.Context, db bun.IDB, pageID string) (*pageRecord, error) {
	record := &pageRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", pageID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

package sqlstore

import (
	"strings"
	"time"

	"github.com/philippzhuravlev/DTUEvent/core"
	"github.com/uptrace/bun"
)

type pageRecord struct {
	bun.BaseModel `bun:"table:pages,alias:pg"`

	ID                 string     `bun:"id,pk"`
	Name               string     `bun:"name,notnull"`
	URL                string     `bun:"url,notnull"`
	Active             bool       `bun:"active,notnull"`
	ConnectedAt        *time.Time `bun:"connected_at"`
	TokenRefreshedAt   *time.Time `bun:"token_refreshed_at"`
	TokenExpiresAt     *time.Time `bun:"token_expires_at"`
	LastRefreshSuccess *bool      `bun:"last_refresh_success"`
	LastRefreshError   *string    `bun:"last_refresh_error"`
	LastRefreshAttempt *time.Time `bun:"last_refresh_attempt"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *pageRecord) toDomain() core.Page {
	if r == nil {
		return core.Page{}
	}
	return core.Page{
		ID:                 r.ID,
		Name:               r.Name,
		URL:                r.URL,
		Active:             r.Active,
		ConnectedAt:        utcPointer(r.ConnectedAt),
		TokenRefreshedAt:   utcPointer(r.TokenRefreshedAt),
		TokenExpiresAt:     utcPointer(r.TokenExpiresAt),
		LastRefreshSuccess: r.LastRefreshSuccess,
		LastRefreshError:   r.LastRefreshError,
		LastRefreshAttempt: utcPointer(r.LastRefreshAttempt),
	}
}

type eventRecord struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID            string      `bun:"id,pk"`
	PageID        string      `bun:"page_id,notnull"`
	Title         string      `bun:"title,notnull"`
	Description   *string     `bun:"description"`
	StartTime     string      `bun:"start_time,notnull"`
	EndTime       *string     `bun:"end_time"`
	Place         *core.Place `bun:"place,type:jsonb"`
	CoverImageURL *string     `bun:"cover_image_url"`
	EventURL      string      `bun:"event_url,notnull"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newEventRecord(event core.Event, now time.Time) *eventRecord {
	return &eventRecord{
		ID:            strings.TrimSpace(event.ID),
		PageID:        strings.TrimSpace(event.PageID),
		Title:         event.Title,
		Description:   event.Description,
		StartTime:     event.StartTime,
		EndTime:       event.EndTime,
		Place:         event.Place,
		CoverImageURL: event.CoverImageURL,
		EventURL:      event.EventURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *eventRecord) toDomain() core.Event {
	if r == nil {
		return core.Event{}
	}
	return core.Event{
		ID:            r.ID,
		PageID:        r.PageID,
		Title:         r.Title,
		Description:   r.Description,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Place:         r.Place,
		CoverImageURL: r.CoverImageURL,
		EventURL:      r.EventURL,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type secretRecord struct {
	bun.BaseModel `bun:"table:page_secrets,alias:ps"`

	Name      string    `bun:"name,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type secretVersionRecord struct {
	bun.BaseModel `bun:"table:page_secret_versions,alias:psv"`

	ID         string    `bun:"id,pk"`
	SecretName string    `bun:"secret_name,notnull"`
	Version    int       `bun:"version,notnull"`
	Payload    []byte    `bun:"payload,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}

package core

import "time"

// Page is a Facebook Page tracked for event ingestion.
type Page struct {
	ID                 string
	Name               string
	URL                string
	Active             bool
	ConnectedAt        *time.Time
	TokenRefreshedAt   *time.Time
	TokenExpiresAt     *time.Time
	LastRefreshSuccess *bool
	LastRefreshError   *string
	LastRefreshAttempt *time.Time
}

// PageLink is the metadata written for a page when an admin links it.
type PageLink struct {
	ID             string
	Name           string
	LinkedAt       time.Time
	TokenExpiresAt time.Time
}

// PageToken is the live credential for one page. Expiry is derived, never stored as a flag.
type PageToken struct {
	PageID    string
	Token     string
	ExpiresAt time.Time
}

func (t PageToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

type Location struct {
	Street    *string  `json:"street"`
	City      *string  `json:"city"`
	Zip       *string  `json:"zip"`
	Country   *string  `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type Place struct {
	ID       *string   `json:"id"`
	Name     *string   `json:"name"`
	Location *Location `json:"location"`
}

// Event is a normalized Facebook event. Optional values are nil when absent.
type Event struct {
	ID            string    `json:"id"`
	PageID        string    `json:"pageId"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	StartTime     string    `json:"startTime"`
	EndTime       *string   `json:"endTime"`
	Place         *Place    `json:"place"`
	CoverImageURL *string   `json:"coverImageUrl"`
	EventURL      string    `json:"eventURL"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

type RawCover struct {
	Source string `json:"source"`
}

// RawEvent mirrors the Graph API event payload.
type RawEvent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	StartTime   string    `json:"start_time"`
	EndTime     *string   `json:"end_time,omitempty"`
	Place       *Place    `json:"place,omitempty"`
	Cover       *RawCover `json:"cover,omitempty"`
}

// FacebookPage is a page returned by the accounts endpoint together with its page token.
type FacebookPage struct {
	ID          string
	Name        string
	AccessToken string
}

type LongLivedToken struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type PageStatus string

const (
	PageStatusSuccess PageStatus = "success"
	PageStatusFailed  PageStatus = "failed"
	PageStatusSkipped PageStatus = "skipped"
)

const (
	SkipReasonNoToken      = "no_token"
	SkipReasonTokenExpired = "token_expired"
	SkipReasonRecentlyDone = "recently_refreshed"
)

type LinkedPageResult struct {
	PageID         string
	Name           string
	Stored         bool
	TokenExpiresAt time.Time
	Error          string
}

type CallbackResult struct {
	StoredCount int
	FailedCount int
	Pages       []LinkedPageResult
}

type PageIngestResult struct {
	PageID       string
	PageName     string
	Status       PageStatus
	Reason       string
	EventsSynced int
	EventsFailed int
	Duration     time.Duration
	Error        string
}

type IngestionResult struct {
	TotalPages        int
	TotalEvents       int
	TotalEventsFailed int
	SuccessfulPages   int
	FailedPages       int
	SkippedPages      int
	Duration          time.Duration
	PageResults       []PageIngestResult
}

type PageRefreshResult struct {
	PageID           string
	PageName         string
	DaysSinceRefresh int
	ExpiresAt        *time.Time
	Reason           string
	Error            string
}

type RefreshResult struct {
	Refreshed  []PageRefreshResult
	Failed     []PageRefreshResult
	Skipped    []PageRefreshResult
	TotalPages int
	Duration   time.Duration
}

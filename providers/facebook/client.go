package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/philippzhuravlev/DTUEvent/core"
)

const (
	DefaultDialogBaseURL = "https://www.facebook.com"

	maxResponseBodyBytes = 1 << 20 // 1 MiB

	eventFields = "id,name,description,start_time,end_time,place,cover{source}"
	pageFields  = "id,name,access_token"
)

// Operation labels prefixed to every error message.
const (
	OpCodeExchange = "code->short-lived"
	OpLongExchange = "short->long-lived"
	OpFetchPages   = "fetch-pages"
	OpFetchEvents  = "fetch-events"
)

var DefaultScopes = []string{"pages_show_list", "pages_read_engagement"}

type Config struct {
	AppID          string
	AppSecret      string
	RedirectURI    string
	APIVersion     string
	GraphBaseURL   string
	DialogBaseURL  string
	Scopes         []string
	RequestTimeout time.Duration
	MaxEventPages  int
	// MaxAccountPages bounds me/accounts paging separately from event paging.
	MaxAccountPages int
	HTTPClient      *http.Client
	Now             func() time.Time
}

// ConfigFromCore maps the service configuration onto a client configuration.
func ConfigFromCore(cfg core.Config) Config {
	return Config{
		AppID:           cfg.Facebook.AppID,
		AppSecret:       cfg.Facebook.AppSecret,
		RedirectURI:     cfg.Facebook.RedirectURI,
		APIVersion:      cfg.Facebook.APIVersion,
		GraphBaseURL:    cfg.Facebook.GraphBaseURL,
		RequestTimeout:  cfg.Facebook.RequestTimeout,
		MaxEventPages:   cfg.Facebook.MaxEventPages,
		MaxAccountPages: cfg.Facebook.MaxAccountPages,
	}
}

// Client talks to the Facebook Graph API. It holds no per-call state.
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AppSecret = strings.TrimSpace(cfg.AppSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if cfg.AppID == "" {
		return nil, fmt.Errorf("providers/facebook: app id is required")
	}
	if cfg.AppSecret == "" {
		return nil, fmt.Errorf("providers/facebook: app secret is required")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = core.DefaultGraphAPIVersion
	}
	cfg.GraphBaseURL = strings.TrimRight(strings.TrimSpace(cfg.GraphBaseURL), "/")
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = core.DefaultGraphBaseURL
	}
	cfg.DialogBaseURL = strings.TrimRight(strings.TrimSpace(cfg.DialogBaseURL), "/")
	if cfg.DialogBaseURL == "" {
		cfg.DialogBaseURL = DefaultDialogBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append([]string(nil), DefaultScopes...)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultRequestTimeout
	}
	if cfg.MaxEventPages <= 0 {
		cfg.MaxEventPages = core.DefaultMaxEventPages
	}
	if cfg.MaxAccountPages <= 0 {
		cfg.MaxAccountPages = core.DefaultMaxAccountPages
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	client := &Client{cfg: cfg, httpClient: httpClient}
	client.oauth = &oauth2.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       append([]string(nil), cfg.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.DialogBaseURL + "/" + cfg.APIVersion + "/dialog/oauth",
			TokenURL:  client.graphURL("oauth/access_token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return client, nil
}

// AuthCodeURL builds the login dialog URL an admin follows to grant page access.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *Client) ExchangeCodeForShortLivedToken(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", core.NewBadRequestError("authorization code is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	token, err := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", retrieveFailure(retrieveErr)
		}
		return "", core.NewTransportError(OpCodeExchange, "", scrubURLError(err))
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", core.NewUpstreamAuthError(OpCodeExchange, "empty access token", nil)
	}
	return token.AccessToken, nil
}

// retrieveFailure classifies a rejected code exchange the same way getJSON
// classifies auth calls: a Graph outage is transport, a 4xx is a rejection.
func retrieveFailure(err *oauth2.RetrieveError) error {
	status := 0
	if err.Response != nil {
		status = err.Response.StatusCode
	}
	message := upstreamMessage(err.Body, fmt.Sprintf("status %d", status))
	if status >= 500 {
		return core.NewTransportError(OpCodeExchange, message, nil)
	}
	return core.NewUpstreamAuthError(OpCodeExchange, message, nil)
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeForLongLivedToken also extends an existing page token, which is how refresh works.
func (c *Client) ExchangeForLongLivedToken(ctx context.Context, token string) (core.LongLivedToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.LongLivedToken{}, core.NewBadRequestError("token is required")
	}
	values := url.Values{}
	values.Set("grant_type", "fb_exchange_token")
	values.Set("client_id", c.cfg.AppID)
	values.Set("client_secret", c.cfg.AppSecret)
	values.Set("fb_exchange_token", token)

	var payload tokenPayload
	if err := c.getJSON(ctx, OpLongExchange, c.graphURL("oauth/access_token")+"?"+values.Encode(), &payload, true); err != nil {
		return core.LongLivedToken{}, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.LongLivedToken{}, core.NewUpstreamAuthError(OpLongExchange, "empty access token", nil)
	}
	return core.LongLivedToken{
		AccessToken: payload.AccessToken,
		ExpiresIn:   time.Duration(payload.ExpiresIn) * time.Second,
	}, nil
}

type pagingCursor struct {
	Next string `json:"next"`
}

type accountsPayload struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
	Paging *pagingCursor `json:"paging"`
}

func (c *Client) GetPagesForUser(ctx context.Context, userToken string) ([]core.FacebookPage, error) {
	values := url.Values{}
	values.Set("fields", pageFields)
	values.Set("access_token", strings.TrimSpace(userToken))
	next := c.graphURL("me/accounts") + "?" + values.Encode()

	pages := []core.FacebookPage{}
	for round := 0; next != "" && round < c.cfg.MaxAccountPages; round++ {
		var payload accountsPayload
		if err := c.getJSON(ctx, OpFetchPages, next, &payload, false); err != nil {
			return nil, err
		}
		for _, item := range payload.Data {
			pages = append(pages, core.FacebookPage{ID: item.ID, Name: item.Name, AccessToken: item.AccessToken})
		}
		next = ""
		if payload.Paging != nil {
			next = payload.Paging.Next
		}
	}
	return pages, nil
}

type eventsPayload struct {
	Data   []core.RawEvent `json:"data"`
	Paging *pagingCursor   `json:"paging"`
}

// GetPageEvents returns events that have not ended yet, following paging links.
func (c *Client) GetPageEvents(ctx context.Context, pageID string, pageToken string) ([]core.RawEvent, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, core.NewBadRequestError("page id is required")
	}
	values := url.Values{}
	values.Set("time_filter", "upcoming")
	values.Set("fields", eventFields)
	values.Set("access_token", strings.TrimSpace(pageToken))
	next := c.graphURL(url.PathEscape(pageID)+"/events") + "?" + values.Encode()

	now := c.cfg.Now()
	events := []core.RawEvent{}
	for round := 0; next != "" && round < c.cfg.MaxEventPages; round++ {
		var payload eventsPayload
		if err := c.getJSON(ctx, OpFetchEvents, next, &payload, false); err != nil {
			return nil, err
		}
		for _, event := range payload.Data {
			if core.IsUpcoming(now, event) {
				events = append(events, event)
			}
		}
		next = ""
		if payload.Paging != nil {
			next = payload.Paging.Next
		}
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, label string, endpoint string, out any, authCall bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.NewTransportError(label, "", err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return core.NewTransportError(label, "", scrubURLError(err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if err != nil {
		return core.NewTransportError(label, "", err)
	}
	if len(body) > maxResponseBodyBytes {
		return core.NewTransportError(label, "response body exceeds 1 MiB", nil)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := upstreamMessage(body, fmt.Sprintf("status %d", response.StatusCode))
		if authCall && response.StatusCode < 500 {
			return core.NewUpstreamAuthError(label, message, nil)
		}
		return core.NewTransportError(label, message, nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewTransportError(label, "decode response: "+err.Error(), nil)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func (c *Client) graphURL(path string) string {
	return c.cfg.GraphBaseURL + "/" + c.cfg.APIVersion + "/" + strings.TrimLeft(path, "/")
}

var _ core.GraphClient = (*Client)(nil)
var _ core.AuthURLBuilder = (*Client)(nil)

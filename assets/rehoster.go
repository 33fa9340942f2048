package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/philippzhuravlev/DTUEvent/core"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10 << 20

	rehostLabel       = "rehost"
	fallbackMediaType = "application/octet-stream"
)

// Rehoster copies remote images into owned storage. Without an Uploader it only
// checks that the source is reachable and hands the source URL back.
type Rehoster struct {
	uploader   Uploader
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	logger     core.Logger
}

type Option func(*Rehoster)

func WithUploader(uploader Uploader) Option {
	return func(r *Rehoster) {
		r.uploader = uploader
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(r *Rehoster) {
		if client != nil {
			r.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Rehoster) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func WithMaxBytes(limit int64) Option {
	return func(r *Rehoster) {
		if limit > 0 {
			r.maxBytes = limit
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *Rehoster) {
		r.logger = logger
	}
}

func NewRehoster(opts ...Option) *Rehoster {
	r := &Rehoster{
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Rehost stores the image at sourceURL under key plus an extension derived
// from its content type and returns the public URL of the copy.
func (r *Rehoster) Rehost(ctx context.Context, key string, sourceURL string) (string, error) {
	source := strings.TrimSpace(sourceURL)
	if err := validateSource(source); err != nil {
		return "", err
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", core.NewBadRequestError("asset key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.uploader == nil {
		return r.validate(ctx, source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", core.NewTransportError(rehostLabel, "build request", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", core.NewTransportError(rehostLabel, "fetch source", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", core.NewTransportError(rehostLabel, fmt.Sprintf("source returned HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", core.NewTransportError(rehostLabel, "read source", err)
	}
	if int64(len(body)) > r.maxBytes {
		return "", core.NewTransportError(rehostLabel, fmt.Sprintf("source exceeds %d bytes", r.maxBytes), nil)
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = fallbackMediaType
	}
	objectKey := key + ExtensionForContentType(contentType)
	if err := r.uploader.Upload(ctx, objectKey, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return "", core.NewTransportError(rehostLabel, "upload "+objectKey, err)
	}
	publicURL := r.uploader.PublicURL(objectKey)
	if r.logger != nil {
		r.logger.Debug("asset rehosted", "key", objectKey, "bytes", len(body))
	}
	return publicURL, nil
}

func (r *Rehoster) validate(ctx context.Context, source string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source, nil)
	if err != nil {
		return "", core.NewTransportError(rehostLabel, "build request", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", core.NewTransportError(rehostLabel, "check source", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", core.NewTransportError(rehostLabel, fmt.Sprintf("source returned HTTP %d", resp.StatusCode), nil)
	}
	return source, nil
}

// ExtensionForContentType maps image content types to a file extension, or "" when unknown.
func ExtensionForContentType(contentType string) string {
	c := strings.ToLower(contentType)
	switch {
	case strings.Contains(c, "jpeg"), strings.Contains(c, "jpg"):
		return ".jpg"
	case strings.Contains(c, "png"):
		return ".png"
	case strings.Contains(c, "gif"):
		return ".gif"
	case strings.Contains(c, "webp"):
		return ".webp"
	default:
		return ""
	}
}

func validateSource(source string) error {
	if source == "" {
		return core.NewBadRequestError("source url is required")
	}
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return core.NewBadRequestError("source url must be an absolute http(s) url")
	}
	return nil
}

var _ core.AssetRehoster = (*Rehoster)(nil)

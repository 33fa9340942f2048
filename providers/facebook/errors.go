package facebook

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

type graphErrorPayload struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// upstreamMessage pulls error.message out of a Graph error body.
func upstreamMessage(body []byte, fallback string) string {
	var payload graphErrorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if payload.Error != nil && strings.TrimSpace(payload.Error.Message) != "" {
			return strings.TrimSpace(payload.Error.Message)
		}
		if strings.TrimSpace(payload.ErrorDescription) != "" {
			return strings.TrimSpace(payload.ErrorDescription)
		}
	}
	return fallback
}

// scrubURLError drops the request URL, which carries tokens in its query string.
func scrubURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

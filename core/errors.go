package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadRequest     = "BAD_REQUEST"
	ErrorUpstreamAuth   = "UPSTREAM_AUTH"
	ErrorSecretNotFound = "SECRET_NOT_FOUND"
	ErrorTransport      = "TRANSPORT"
	ErrorPartialBatch   = "PARTIAL_BATCH"
	ErrorInternal       = "INTERNAL_ERROR"
)

const GenericCallbackFailure = "Facebook auth failed"

func NewBadRequestError(message string) *goerrors.Error {
	return newCoreError(message, goerrors.CategoryBadInput, ErrorBadRequest)
}

func NewSecretNotFoundError(pageID string) *goerrors.Error {
	return newCoreError("no token found for page "+strings.TrimSpace(pageID), goerrors.CategoryNotFound, ErrorSecretNotFound).
		WithMetadata(map[string]any{"page_id": strings.TrimSpace(pageID)})
}

// NewUpstreamAuthError reports a token exchange rejected by Facebook.
func NewUpstreamAuthError(label string, message string, source error) *goerrors.Error {
	return newLabelledError(label, message, source, goerrors.CategoryAuth, ErrorUpstreamAuth)
}

// NewTransportError reports any other remote call failure.
func NewTransportError(label string, message string, source error) *goerrors.Error {
	return newLabelledError(label, message, source, goerrors.CategoryExternal, ErrorTransport)
}

func NewPartialBatchError(message string, failures map[string]string) *goerrors.Error {
	metadata := make(map[string]any, len(failures))
	for pageID, reason := range failures {
		metadata[pageID] = reason
	}
	return newCoreError(message, goerrors.CategoryOperation, ErrorPartialBatch).
		WithMetadata(map[string]any{"failures": metadata})
}

func newLabelledError(
	label string,
	message string,
	source error,
	category goerrors.Category,
	textCode string,
) *goerrors.Error {
	label = strings.TrimSpace(label)
	message = strings.TrimSpace(message)
	if message == "" && source != nil {
		message = source.Error()
	}
	full := message
	if label != "" {
		full = label + ": " + message
	}
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, category, full)
	} else {
		err = goerrors.New(full, category)
	}
	return ensureErrorEnvelope(err.WithTextCode(textCode).
		WithMetadata(map[string]any{"operation": label}))
}

func newCoreError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(goerrors.New(message, category).WithTextCode(textCode))
}

func HasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func IsBadRequest(err error) bool { return HasTextCode(err, ErrorBadRequest) }

func IsUpstreamAuth(err error) bool { return HasTextCode(err, ErrorUpstreamAuth) }

func IsTransport(err error) bool { return HasTextCode(err, ErrorTransport) }

func IsSecretNotFound(err error) bool { return HasTextCode(err, ErrorSecretNotFound) }

// MapError converts any error into the go-errors envelope used at the command boundary.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newCoreError(err.Error(), goerrors.CategoryBadInput, ErrorBadRequest)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"):
		return newCoreError(err.Error(), goerrors.CategoryExternal, ErrorTransport)
	}
	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

// CallbackErrorMessage is the text shown to whoever hit the callback endpoint.
func CallbackErrorMessage(err error, debug bool) string {
	if err == nil {
		return ""
	}
	if !debug {
		return GenericCallbackFailure
	}
	return err.Error()
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadRequest
	case goerrors.CategoryNotFound:
		return ErrorSecretNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUpstreamAuth
	case goerrors.CategoryExternal:
		return ErrorTransport
	case goerrors.CategoryOperation:
		return ErrorPartialBatch
	default:
		return ErrorInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth, goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

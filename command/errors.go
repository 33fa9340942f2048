package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/philippzhuravlev/DTUEvent/core"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadRequest).
		WithSeverity(goerrors.SeverityError)
}

// CallbackError is what the callback surface reports. Error returns only the
// display message; the go-errors envelope with the code and category of the
// underlying failure is reachable through Unwrap.
type CallbackError struct {
	Message  string
	envelope *goerrors.Error
}

func (e *CallbackError) Error() string { return e.Message }

func (e *CallbackError) Unwrap() error {
	if e.envelope == nil {
		return nil
	}
	return e.envelope
}

// callbackFailure keeps the code and category of err but replaces its text
// with what the callback surface may show. The original error is not kept in
// the chain, so the detail only surfaces in debug mode.
func callbackFailure(err error, debug bool) error {
	mapped := core.MapError(err)
	message := core.CallbackErrorMessage(err, debug)
	return &CallbackError{
		Message: message,
		envelope: goerrors.New(message, mapped.Category).
			WithCode(mapped.Code).
			WithTextCode(mapped.TextCode),
	}
}

package command

import (
	"strings"
)

const (
	TypeCompleteCallback = "dtuevent.command.callback.complete"
	TypeIngestEvents     = "dtuevent.command.events.ingest"
	TypeRefreshTokens    = "dtuevent.command.tokens.refresh"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerJob       = "job"
)

// CompleteCallbackMessage carries the authorization code from the OAuth redirect.
// Debug exposes the underlying failure text instead of the generic message.
type CompleteCallbackMessage struct {
	Code  string `json:"code"`
	Debug bool   `json:"debug,omitempty"`
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

// IngestEventsMessage and RefreshTokensMessage travel as queue parameters, keyed
// by their json names.
type IngestEventsMessage struct {
	Trigger string `json:"trigger,omitempty"`
}

func (IngestEventsMessage) Type() string { return TypeIngestEvents }

func (m IngestEventsMessage) Validate() error {
	return validateTrigger(m.Trigger)
}

type RefreshTokensMessage struct {
	Trigger string `json:"trigger,omitempty"`
}

func (RefreshTokensMessage) Type() string { return TypeRefreshTokens }

func (m RefreshTokensMessage) Validate() error {
	return validateTrigger(m.Trigger)
}

func validateTrigger(trigger string) error {
	switch strings.TrimSpace(trigger) {
	case "", TriggerManual, TriggerScheduled, TriggerJob:
		return nil
	default:
		return commandValidationError("trigger", "unknown trigger "+trigger)
	}
}

func normalizeTrigger(trigger string) string {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return TriggerManual
	}
	return trigger
}

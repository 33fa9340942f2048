package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Page and event ids come from Facebook and are not UUIDs, so repository ids
// are derived from them deterministically.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://dtuevent.dk/records"))

func pageHandlers() repository.ModelHandlers[*pageRecord] {
	return repository.ModelHandlers[*pageRecord]{
		NewRecord: func() *pageRecord {
			return &pageRecord{}
		},
		GetID: func(record *pageRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return recordUUID(record.ID)
		},
		SetID: func(record *pageRecord, id uuid.UUID) {
			if record == nil || strings.TrimSpace(record.ID) != "" {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *pageRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func eventHandlers() repository.ModelHandlers[*eventRecord] {
	return repository.ModelHandlers[*eventRecord]{
		NewRecord: func() *eventRecord {
			return &eventRecord{}
		},
		GetID: func(record *eventRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return recordUUID(record.ID)
		},
		SetID: func(record *eventRecord, id uuid.UUID) {
			if record == nil || strings.TrimSpace(record.ID) != "" {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *eventRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func secretVersionHandlers() repository.ModelHandlers[*secretVersionRecord] {
	return repository.ModelHandlers[*secretVersionRecord]{
		NewRecord: func() *secretVersionRecord {
			return &secretVersionRecord{}
		},
		GetID: func(record *secretVersionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *secretVersionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *secretVersionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func recordUUID(value string) uuid.UUID {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil
	}
	if parsed, err := uuid.Parse(trimmed); err == nil {
		return parsed
	}
	return uuid.NewSHA1(recordNamespace, []byte(trimmed))
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

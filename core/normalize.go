package core

import (
	"fmt"
	"strings"
	"time"
)

const facebookEventURLPrefix = "https://facebook.com/events/"

// Graph returns offsets without a colon, e.g. 2025-12-06T18:00:00+0100.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseEventTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("core: event time is empty")
	}
	for _, layout := range eventTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("core: invalid event time %q", value)
}

// IsUpcoming reports whether the event has not yet ended, using the start time when no end is set.
func IsUpcoming(now time.Time, raw RawEvent) bool {
	reference := raw.StartTime
	if raw.EndTime != nil && strings.TrimSpace(*raw.EndTime) != "" {
		reference = *raw.EndTime
	}
	at, err := ParseEventTime(reference)
	if err != nil {
		return true
	}
	return !at.Before(normalizeNow(now))
}

func EventURL(eventID string) string {
	return facebookEventURLPrefix + strings.TrimSpace(eventID)
}

// CoverAssetKey is the storage key for an event cover, without the file extension.
func CoverAssetKey(eventID string) string {
	return "events/" + strings.TrimSpace(eventID) + "/cover"
}

// NormalizeEvent converts a Graph payload into the stored shape. It is the single place
// where absent optional values become nil.
func NormalizeEvent(pageID string, raw RawEvent) (Event, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Event{}, fmt.Errorf("core: event id is required")
	}
	startTime := strings.TrimSpace(raw.StartTime)
	if _, err := ParseEventTime(startTime); err != nil {
		return Event{}, fmt.Errorf("core: event %s: %w", id, err)
	}
	event := Event{
		ID:          id,
		PageID:      strings.TrimSpace(pageID),
		Title:       strings.TrimSpace(raw.Name),
		Description: optionalString(raw.Description),
		StartTime:   startTime,
		EndTime:     optionalString(raw.EndTime),
		Place:       normalizePlace(raw.Place),
		EventURL:    EventURL(id),
	}
	if raw.Cover != nil {
		event.CoverImageURL = optionalString(&raw.Cover.Source)
	}
	return event, nil
}

func normalizePlace(place *Place) *Place {
	if place == nil {
		return nil
	}
	out := &Place{
		ID:   optionalString(place.ID),
		Name: optionalString(place.Name),
	}
	if loc := place.Location; loc != nil {
		out.Location = &Location{
			Street:    optionalString(loc.Street),
			City:      optionalString(loc.City),
			Zip:       optionalString(loc.Zip),
			Country:   optionalString(loc.Country),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		}
	}
	if out.ID == nil && out.Name == nil && out.Location == nil {
		return nil
	}
	return out
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

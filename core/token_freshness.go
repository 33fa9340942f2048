package core

import (
	"math"
	"time"
)

// NeverRefreshedDays is reported for pages without a recorded refresh, so they always qualify.
const NeverRefreshedDays = 999

// TokenState captures expiry state derived from a stored page token.
type TokenState struct {
	HasToken      bool
	IsExpired     bool
	ExpiresAt     *time.Time
	ExpiresInDays int
}

func ResolveTokenState(now time.Time, token *PageToken) TokenState {
	now = normalizeNow(now)
	if token == nil || token.Token == "" {
		return TokenState{}
	}
	state := TokenState{HasToken: true}
	if token.ExpiresAt.IsZero() {
		return state
	}
	expiresAt := token.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	state.IsExpired = token.Expired(now)
	state.ExpiresInDays = ExpiresInDays(now, expiresAt)
	return state
}

// ExpiresInDays rounds up, so a token with one hour left reports one day.
func ExpiresInDays(now time.Time, expiresAt time.Time) int {
	remaining := expiresAt.Sub(normalizeNow(now))
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// DaysSinceRefresh counts whole days elapsed since refreshedAt.
func DaysSinceRefresh(now time.Time, refreshedAt *time.Time) int {
	if refreshedAt == nil || refreshedAt.IsZero() {
		return NeverRefreshedDays
	}
	elapsed := normalizeNow(now).Sub(refreshedAt.UTC())
	if elapsed < 0 {
		return 0
	}
	return int(math.Floor(elapsed.Hours() / 24))
}

// RefreshEligible reports whether a page token is due for rotation.
func RefreshEligible(now time.Time, page Page, thresholdDays int) (bool, int) {
	if thresholdDays <= 0 {
		thresholdDays = DefaultRefreshThresholdDays
	}
	days := DaysSinceRefresh(now, page.TokenRefreshedAt)
	return days >= thresholdDays, days
}

// TokenExpiry resolves an absolute expiry, falling back when the provider reports no lifetime.
func TokenExpiry(now time.Time, expiresIn time.Duration, fallback time.Duration) time.Time {
	if expiresIn <= 0 {
		expiresIn = fallback
	}
	if expiresIn <= 0 {
		expiresIn = DefaultTokenLifetime
	}
	return normalizeNow(now).Add(expiresIn)
}

func normalizeNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}

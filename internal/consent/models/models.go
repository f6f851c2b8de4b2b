package models

import (
	"time"

	id "consentwindow/pkg/domain"
)

const (
	// MinHoursToExpire is the shortest window a grant or an extension may request.
	MinHoursToExpire = 3

	// EarlyEndGuard is how close to natural expiry a window may be before early
	// termination is refused.
	EarlyEndGuard = 5 * time.Minute

	// MaxHoursToExpire caps a single grant or extension at roughly a century.
	MaxHoursToExpire = 100 * 365 * 24

	// MaxScheduleAhead is how far in the future a grant may be scheduled to start.
	MaxScheduleAhead = MaxHoursToExpire * time.Hour

	// maxExpiryHorizon bounds how far ExpiresAt may sit ahead of now, however many
	// times the window is extended.
	maxExpiryHorizon = MaxScheduleAhead + MaxHoursToExpire*time.Hour
)

// LatestExpiry is the furthest instant a window may expire at, seen from now.
func LatestExpiry(now time.Time) time.Time {
	return now.Add(maxExpiryHorizon)
}

// HoursToDuration converts the hour count used by every operation into a duration.
// hours must not exceed MaxHoursToExpire.
func HoursToDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

// Key addresses one consent history.
type Key struct {
	Owner       id.OwnerID
	Fingerprint id.Fingerprint
}

// String renders the key as "<owner>:<0xfingerprint>".
func (k Key) String() string {
	return k.Owner.String() + ":" + k.Fingerprint.String()
}

// Window is one consent grant's validity interval.
//
// Invariants:
//   - ExpiresAt is after StartsAt when the window is created or extended
//   - only the last window of a history is ever mutated or removed
type Window struct {
	StartsAt  time.Time `json:"starts_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValidAt reports whether the window grants consent at now.
// The interval is half-open: a window whose ExpiresAt equals now is no longer valid,
// which is what makes early termination take effect immediately.
func (w Window) IsValidAt(now time.Time) bool {
	return !now.Before(w.StartsAt) && now.Before(w.ExpiresAt)
}

// StateAt derives the lifecycle state of the window relative to now. A window only
// counts as expired once now is strictly past ExpiresAt, matching the point from which
// a new grant is accepted.
func (w Window) StateAt(now time.Time) State {
	switch {
	case now.Before(w.StartsAt):
		return StateScheduled
	case now.After(w.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// State is the derived lifecycle state of a history's last window. It is never stored.
type State string

const (
	StateEmpty     State = "empty"
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StateExpired   State = "expired"
)

func (s State) String() string {
	return string(s)
}

// StateOf derives the state of a whole history: only its last window matters.
func StateOf(history []Window, now time.Time) State {
	if len(history) == 0 {
		return StateEmpty
	}
	return history[len(history)-1].StateAt(now)
}

// ConsentGiven is the notification emitted once per successful grant.
// Index is the history length immediately before the append.
type ConsentGiven struct {
	Owner         id.OwnerID     `json:"owner"`
	Fingerprint   id.Fingerprint `json:"fingerprint"`
	Index         int            `json:"index"`
	StartsAt      time.Time      `json:"starts_at"`
	HoursToExpire int            `json:"hours_to_expire"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// Key returns the history this notification belongs to.
func (e ConsentGiven) Key() Key {
	return Key{Owner: e.Owner, Fingerprint: e.Fingerprint}
}

// Summary describes a history without exposing every window.
type Summary struct {
	Owner       id.OwnerID     `json:"owner"`
	Fingerprint id.Fingerprint `json:"fingerprint"`
	State       State          `json:"state"`
	Count       int            `json:"count"`
	Valid       bool           `json:"valid"`
}

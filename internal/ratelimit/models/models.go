package models

import (
	"math"
	"time"
)

// EndpointClass groups endpoints that share a request budget.
type EndpointClass string

const (
	// ClassRead covers public validity and history lookups.
	ClassRead EndpointClass = "read"
	// ClassWrite covers consent mutations.
	ClassWrite EndpointClass = "write"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult is the outcome of one admission check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest counted request leaves
// the window, never less than one.
func (r *RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	return max(secs, 1)
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrNoEntry: a tail operation was attempted on an empty history
// - ErrConflict: a concurrent writer changed the same key
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrNoEntry     = errors.New("no entry")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

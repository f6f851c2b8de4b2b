package models

import (
	"strings"
	"time"

	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
)

// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant every store can hold.
const maxUnixSeconds = 253402300799

// MaxBatchSize bounds a single validity batch.
const MaxBatchSize = 500

// GiveConsentRequest asks for a new window. A nil StartsAt means "starting now".
type GiveConsentRequest struct {
	Hash          string `json:"hash"`
	HoursToExpire int    `json:"hours_to_expire"`
	StartsAt      *int64 `json:"starts_at,omitempty"`
}

// Normalize trims user-supplied strings.
func (r *GiveConsentRequest) Normalize() {
	r.Hash = strings.TrimSpace(r.Hash)
}

// Validate checks request shape. Duration rules are left to the service so that every
// caller gets the same InsufficientDuration error.
func (r *GiveConsentRequest) Validate() error {
	if r.Hash == "" {
		return dErrors.New(dErrors.CodeValidation, "hash is required")
	}
	if _, err := id.ParseFingerprint(r.Hash); err != nil {
		return err
	}
	if r.HoursToExpire > MaxHoursToExpire {
		return dErrors.New(dErrors.CodeValidation, "hours_to_expire is too large")
	}
	if r.StartsAt != nil && (*r.StartsAt < 0 || *r.StartsAt > maxUnixSeconds) {
		return dErrors.New(dErrors.CodeValidation, "starts_at must be a unix timestamp")
	}
	return nil
}

// ExtendConsentRequest lengthens the last window.
type ExtendConsentRequest struct {
	HoursToExpire int `json:"hours_to_expire"`
}

func (r *ExtendConsentRequest) Validate() error {
	if r.HoursToExpire > MaxHoursToExpire {
		return dErrors.New(dErrors.CodeValidation, "hours_to_expire is too large")
	}
	return nil
}

// ValidityBatchRequest pairs owners with hashes positionally.
type ValidityBatchRequest struct {
	Owners []string `json:"owners"`
	Hashes []string `json:"hashes"`
}

// Validate bounds the batch. Length mismatches are reported by the service, not here.
func (r *ValidityBatchRequest) Validate() error {
	if len(r.Owners) > MaxBatchSize || len(r.Hashes) > MaxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "batch is too large")
	}
	return nil
}

// Parse converts the raw arrays into typed identifiers.
func (r *ValidityBatchRequest) Parse() ([]id.OwnerID, []id.Fingerprint, error) {
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	owners := make([]id.OwnerID, len(r.Owners))
	for i, raw := range r.Owners {
		owner, err := id.ParseOwnerID(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, err
		}
		owners[i] = owner
	}
	hashes := make([]id.Fingerprint, len(r.Hashes))
	for i, raw := range r.Hashes {
		fp, err := id.ParseFingerprint(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, err
		}
		hashes[i] = fp
	}
	return owners, hashes, nil
}

// ConsentGivenResponse mirrors ConsentGiven with unix-second timestamps.
type ConsentGivenResponse struct {
	Owner         string `json:"owner"`
	Hash          string `json:"hash"`
	Index         int    `json:"index"`
	StartsAt      int64  `json:"starts_at"`
	HoursToExpire int    `json:"hours_to_expire"`
	ExpiresAt     int64  `json:"expires_at"`
}

func NewConsentGivenResponse(e *ConsentGiven) ConsentGivenResponse {
	return ConsentGivenResponse{
		Owner:         e.Owner.String(),
		Hash:          e.Fingerprint.String(),
		Index:         e.Index,
		StartsAt:      e.StartsAt.Unix(),
		HoursToExpire: e.HoursToExpire,
		ExpiresAt:     e.ExpiresAt.Unix(),
	}
}

// WindowResponse is one stored window.
type WindowResponse struct {
	Index     int   `json:"index"`
	StartsAt  int64 `json:"starts_at"`
	ExpiresAt int64 `json:"expires_at"`
}

func NewWindowResponse(index int, w Window) WindowResponse {
	return WindowResponse{Index: index, StartsAt: w.StartsAt.Unix(), ExpiresAt: w.ExpiresAt.Unix()}
}

// ValidityResponse answers a single validity query.
type ValidityResponse struct {
	Valid bool `json:"valid"`
}

// ValidityBatchResponse answers a batch, in request order.
type ValidityBatchResponse struct {
	Valid []bool `json:"valid"`
}

// SummaryResponse describes a history.
type SummaryResponse struct {
	Owner string `json:"owner"`
	Hash  string `json:"hash"`
	State State  `json:"state"`
	Count int    `json:"count"`
	Valid bool   `json:"valid"`
}

func NewSummaryResponse(s *Summary) SummaryResponse {
	return SummaryResponse{
		Owner: s.Owner.String(),
		Hash:  s.Fingerprint.String(),
		State: s.State,
		Count: s.Count,
		Valid: s.Valid,
	}
}

// UnixTime converts a wire timestamp into a UTC instant.
func UnixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

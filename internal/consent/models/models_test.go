package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentwindow/pkg/domain-errors"
)

func TestWindowValidity(t *testing.T) {
	w := Window{StartsAt: time.Unix(1000, 0), ExpiresAt: time.Unix(11800, 0)}

	tests := []struct {
		name  string
		now   int64
		valid bool
		state State
	}{
		{"before start", 999, false, StateScheduled},
		{"at start", 1000, true, StateActive},
		{"inside window", 5000, true, StateActive},
		{"one second before expiry", 11799, true, StateActive},
		{"at expiry", 11800, false, StateActive},
		{"after expiry", 11801, false, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(tt.now, 0)
			assert.Equal(t, tt.valid, w.IsValidAt(now))
			assert.Equal(t, tt.state, w.StateAt(now))
		})
	}
}

func TestStateOf(t *testing.T) {
	now := time.Unix(5000, 0)
	assert.Equal(t, StateEmpty, StateOf(nil, now))

	history := []Window{
		{StartsAt: time.Unix(10, 0), ExpiresAt: time.Unix(20, 0)},
		{StartsAt: time.Unix(6000, 0), ExpiresAt: time.Unix(9000, 0)},
	}
	assert.Equal(t, StateScheduled, StateOf(history, now), "only the last window is consulted")
}

func TestHoursToDuration(t *testing.T) {
	assert.Equal(t, 3*time.Hour, HoursToDuration(3))
	assert.Equal(t, int64(10800), int64(HoursToDuration(MinHoursToExpire).Seconds()))
}

func TestGiveConsentRequestValidate(t *testing.T) {
	hash := "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	t.Run("valid request", func(t *testing.T) {
		req := &GiveConsentRequest{Hash: "  " + hash + " ", HoursToExpire: 3}
		req.Normalize()
		assert.NoError(t, req.Validate())
	})

	t.Run("short durations are left to the service", func(t *testing.T) {
		req := &GiveConsentRequest{Hash: hash, HoursToExpire: 1}
		assert.NoError(t, req.Validate())
	})

	t.Run("missing hash", func(t *testing.T) {
		req := &GiveConsentRequest{HoursToExpire: 3}
		assert.Error(t, req.Validate())
	})

	t.Run("oversized duration", func(t *testing.T) {
		req := &GiveConsentRequest{Hash: hash, HoursToExpire: MaxHoursToExpire + 1}
		assert.Error(t, req.Validate())
	})

	t.Run("negative start", func(t *testing.T) {
		start := int64(-1)
		req := &GiveConsentRequest{Hash: hash, HoursToExpire: 3, StartsAt: &start}
		assert.Error(t, req.Validate())
	})

	t.Run("start beyond year 9999", func(t *testing.T) {
		start := int64(1e18)
		req := &GiveConsentRequest{Hash: hash, HoursToExpire: 3, StartsAt: &start}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestLatestExpiry(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	latest := LatestExpiry(now)
	assert.True(t, latest.After(now.Add(HoursToDuration(MaxHoursToExpire))))
	assert.Equal(t, now.Add(MaxScheduleAhead).Add(HoursToDuration(MaxHoursToExpire)), latest)
}

func TestValidityBatchRequestParse(t *testing.T) {
	hash := "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	owner := "550e8400-e29b-41d4-a716-446655440000"

	req := &ValidityBatchRequest{Owners: []string{owner, owner}, Hashes: []string{hash}}
	owners, hashes, err := req.Parse()
	assert.NoError(t, err)
	assert.Len(t, owners, 2)
	assert.Len(t, hashes, 1)

	bad := &ValidityBatchRequest{Owners: []string{"nope"}, Hashes: []string{hash}}
	_, _, err = bad.Parse()
	assert.Error(t, err)
}

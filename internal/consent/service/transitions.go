package service

import (
	"context"
	"time"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/platform/tracer"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/audit"
)

// GiveConsent grants the caller's consent for hash from startsAt for hoursToExpire hours.
// It fails with CodeOverlappingActiveWindow while the previous window has not expired.
func (s *Service) GiveConsent(ctx context.Context, hash id.Fingerprint, startsAt time.Time, hoursToExpire int) (*models.ConsentGiven, error) {
	return s.giveConsent(ctx, "give_consent", hash, &startsAt, hoursToExpire)
}

// GiveImmediateConsent is GiveConsent starting at the current time.
func (s *Service) GiveImmediateConsent(ctx context.Context, hash id.Fingerprint, hoursToExpire int) (*models.ConsentGiven, error) {
	return s.giveConsent(ctx, "give_immediate_consent", hash, nil, hoursToExpire)
}

func (s *Service) giveConsent(ctx context.Context, op string, hash id.Fingerprint, startsAt *time.Time, hoursToExpire int) (_ *models.ConsentGiven, err error) {
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	owner, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now(ctx)
	start := now
	if startsAt != nil {
		start = startsAt.UTC().Truncate(time.Second)
	}
	if err := requireDuration(hoursToExpire); err != nil {
		return nil, err
	}
	if start.Before(now) {
		return nil, dErrors.New(dErrors.CodeStartInPast, "consent cannot start in the past")
	}
	if start.After(now.Add(models.MaxScheduleAhead)) {
		return nil, dErrors.New(dErrors.CodeValidation, "consent starts too far in the future")
	}

	key := models.Key{Owner: owner, Fingerprint: hash}
	span.SetAttributes(tracer.StringAttr("consent.key", key.String()))

	var event models.ConsentGiven
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		history, err := s.store.History(ctx, key)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent history")
		}
		if n := len(history); n > 0 && !history[n-1].ExpiresAt.Before(now) {
			return dErrors.New(dErrors.CodeOverlappingActiveWindow, "previous consent has not expired")
		}

		window := models.Window{StartsAt: start, ExpiresAt: start.Add(models.HoursToDuration(hoursToExpire))}
		if err := s.store.Append(ctx, key, window); err != nil {
			return translate(err, "failed to append consent window")
		}

		event = models.ConsentGiven{
			Owner:         owner,
			Fingerprint:   hash,
			Index:         len(history),
			StartsAt:      window.StartsAt,
			HoursToExpire: hoursToExpire,
			ExpiresAt:     window.ExpiresAt,
		}
		if s.publisher != nil {
			if err := s.publisher.PublishConsentGiven(ctx, event); err != nil {
				return translate(err, "failed to publish consent notification")
			}
		}
		return s.emitAudit(ctx, audit.EventConsentGiven, key, event.Index, now)
	})
	if err != nil {
		return nil, translate(err, "failed to give consent")
	}

	s.logAudit(ctx, audit.EventConsentGiven,
		"owner_id", owner.String(),
		"fingerprint", hash.String(),
		"index", event.Index,
		"starts_at", event.StartsAt.Unix(),
		"expires_at", event.ExpiresAt.Unix(),
	)
	return &event, nil
}

// Extend pushes the expiry of the caller's last window for hash out by hoursToExpire
// hours. Scheduled and active windows can be extended; expired ones cannot.
func (s *Service) Extend(ctx context.Context, hash id.Fingerprint, hoursToExpire int) (_ *models.Window, err error) {
	const op = "extend"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	owner, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now(ctx)
	if err := requireDuration(hoursToExpire); err != nil {
		return nil, err
	}

	key := models.Key{Owner: owner, Fingerprint: hash}
	var (
		updated models.Window
		index   int
	)
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		history, last, err := s.lastWindow(ctx, key)
		if err != nil {
			return err
		}
		if !now.Before(last.ExpiresAt) {
			return dErrors.New(dErrors.CodeAlreadyExpired, "consent has already expired")
		}

		updated = models.Window{StartsAt: last.StartsAt, ExpiresAt: last.ExpiresAt.Add(models.HoursToDuration(hoursToExpire))}
		if updated.ExpiresAt.After(models.LatestExpiry(now)) {
			return dErrors.New(dErrors.CodeValidation, "consent would expire too far in the future")
		}
		index = len(history) - 1
		if err := s.store.ReplaceLast(ctx, key, updated); err != nil {
			return translate(err, "failed to extend consent window")
		}
		return s.emitAudit(ctx, audit.EventConsentExtended, key, index, now)
	})
	if err != nil {
		return nil, translate(err, "failed to extend consent")
	}

	s.logAudit(ctx, audit.EventConsentExtended,
		"owner_id", owner.String(),
		"fingerprint", hash.String(),
		"index", index,
		"expires_at", updated.ExpiresAt.Unix(),
	)
	return &updated, nil
}

// EndConsentEarlier terminates the caller's active window for hash now. The window must
// have started and must not be within EarlyEndGuard of its natural expiry.
func (s *Service) EndConsentEarlier(ctx context.Context, hash id.Fingerprint) (_ *models.Window, err error) {
	const op = "end_consent_earlier"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	owner, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now(ctx)

	key := models.Key{Owner: owner, Fingerprint: hash}
	var (
		updated models.Window
		index   int
	)
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		history, last, err := s.lastWindow(ctx, key)
		if err != nil {
			return err
		}
		if !now.Before(last.ExpiresAt.Add(-models.EarlyEndGuard)) {
			return dErrors.New(dErrors.CodeTooCloseToExpiry, "consent expires in less than 5 minutes")
		}
		if !now.After(last.StartsAt) {
			return dErrors.New(dErrors.CodeNotYetActive, "consent has not started yet")
		}

		updated = models.Window{StartsAt: last.StartsAt, ExpiresAt: now}
		index = len(history) - 1
		if err := s.store.ReplaceLast(ctx, key, updated); err != nil {
			return translate(err, "failed to end consent window")
		}
		return s.emitAudit(ctx, audit.EventConsentEndedEarly, key, index, now)
	})
	if err != nil {
		return nil, translate(err, "failed to end consent early")
	}

	s.logAudit(ctx, audit.EventConsentEndedEarly,
		"owner_id", owner.String(),
		"fingerprint", hash.String(),
		"index", index,
		"expires_at", updated.ExpiresAt.Unix(),
	)
	return &updated, nil
}

// EndConsent cancels the caller's scheduled window for hash, removing it from the
// history as if it had never been granted.
func (s *Service) EndConsent(ctx context.Context, hash id.Fingerprint) (err error) {
	const op = "end_consent"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	owner, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	now := s.now(ctx)

	key := models.Key{Owner: owner, Fingerprint: hash}
	var index int
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		history, last, err := s.lastWindow(ctx, key)
		if err != nil {
			return err
		}
		if !now.Before(last.StartsAt) {
			return dErrors.New(dErrors.CodeCannotCancelStartedConsent, "consent has already started")
		}

		index = len(history) - 1
		if err := s.store.RemoveLast(ctx, key); err != nil {
			return translate(err, "failed to remove consent window")
		}
		return s.emitAudit(ctx, audit.EventConsentCancelled, key, index, now)
	})
	if err != nil {
		return translate(err, "failed to cancel consent")
	}

	s.logAudit(ctx, audit.EventConsentCancelled,
		"owner_id", owner.String(),
		"fingerprint", hash.String(),
		"index", index,
	)
	return nil
}

package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/platform/tracer"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
)

// ConsentIsValid reports whether owner's last window for hash covers now. Earlier
// windows never count, even if they would.
func (s *Service) ConsentIsValid(ctx context.Context, owner id.OwnerID, hash id.Fingerprint) (valid bool, err error) {
	const op = "consent_is_valid"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	return s.isValid(ctx, models.Key{Owner: owner, Fingerprint: hash}, s.now(ctx))
}

// MyConsentIsValid is ConsentIsValid for the caller.
func (s *Service) MyConsentIsValid(ctx context.Context, hash id.Fingerprint) (bool, error) {
	owner, err := callerFrom(ctx)
	if err != nil {
		return false, err
	}
	return s.ConsentIsValid(ctx, owner, hash)
}

// ConsentsAreValid answers ConsentIsValid for each (owners[i], hashes[i]) pair against a
// single now. Results keep the input order.
func (s *Service) ConsentsAreValid(ctx context.Context, owners []id.OwnerID, hashes []id.Fingerprint) (_ []bool, err error) {
	const op = "consents_are_valid"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	if len(owners) != len(hashes) {
		return nil, dErrors.New(dErrors.CodeMismatchedArrayLengths, "owners and hashes must have the same length")
	}
	span.SetAttributes(tracer.IntAttr("consent.batch_size", len(owners)))

	now := s.now(ctx)
	results := make([]bool, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i := range owners {
		g.Go(func() error {
			valid, err := s.isValid(gctx, models.Key{Owner: owners[i], Fingerprint: hashes[i]}, now)
			if err != nil {
				return err
			}
			results[i] = valid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) isValid(ctx context.Context, key models.Key, now time.Time) (bool, error) {
	history, err := s.store.History(ctx, key)
	if err != nil {
		return false, translate(err, "failed to load consent history")
	}
	valid := len(history) > 0 && history[len(history)-1].IsValidAt(now)
	s.metrics.IncValidityCheck(valid)
	return valid, nil
}

// GetConsentTimestamps returns the window at index in owner's history for hash.
func (s *Service) GetConsentTimestamps(ctx context.Context, owner id.OwnerID, hash id.Fingerprint, index int) (_ *models.Window, err error) {
	const op = "get_consent_timestamps"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	history, err := s.store.History(ctx, models.Key{Owner: owner, Fingerprint: hash})
	if err != nil {
		return nil, translate(err, "failed to load consent history")
	}
	if len(history) == 0 {
		return nil, dErrors.New(dErrors.CodeNoConsentFound, "no consent found")
	}
	if index < 0 || index >= len(history) {
		return nil, dErrors.New(dErrors.CodeIndexOutOfBounds, "consent index out of bounds")
	}
	w := history[index]
	return &w, nil
}

// Summary combines lifecycle state, history length and validity from a single
// history read.
func (s *Service) Summary(ctx context.Context, owner id.OwnerID, hash id.Fingerprint) (_ *models.Summary, err error) {
	const op = "summary"
	began := time.Now()
	ctx, span := tracer.StartSpan(ctx, "consent."+op)
	defer span.End()
	defer func() { s.observe(ctx, span, op, began, err) }()

	history, err := s.store.History(ctx, models.Key{Owner: owner, Fingerprint: hash})
	if err != nil {
		return nil, translate(err, "failed to load consent history")
	}
	now := s.now(ctx)
	return &models.Summary{
		Owner:       owner,
		Fingerprint: hash,
		State:       models.StateOf(history, now),
		Count:       len(history),
		Valid:       len(history) > 0 && history[len(history)-1].IsValidAt(now),
	}, nil
}

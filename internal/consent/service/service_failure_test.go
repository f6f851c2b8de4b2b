package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/consent/service/mocks"
	"consentwindow/internal/consent/store"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/audit"
	"consentwindow/pkg/platform/sentinel"
	"consentwindow/pkg/requestcontext"
)

func ownerCtx(owner id.OwnerID, sec int64) context.Context {
	ctx := requestcontext.WithOwnerID(context.Background(), owner)
	return requestcontext.WithTime(ctx, time.Unix(sec, 0))
}

// passthroughTx runs fn directly, as a store without real transactions would.
func passthroughTx(ctrl *gomock.Controller) *mocks.MockConsentStoreTx {
	tx := mocks.NewMockConsentStoreTx(ctrl)
	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ models.Key, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	return tx
}

func TestGiveConsent_PublishesExpectedEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mem := store.NewInMemoryStore()
	publisher := mocks.NewMockPublisher(ctrl)
	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc := New(mem, mem, WithPublisher(publisher), WithAuditPublisher(auditor))

	owner := id.OwnerID(uuid.New())
	hash := fingerprint(0x0a)
	start := time.Unix(2000, 0).UTC()

	want := models.ConsentGiven{
		Owner:         owner,
		Fingerprint:   hash,
		Index:         0,
		StartsAt:      start,
		HoursToExpire: 3,
		ExpiresAt:     start.Add(3 * time.Hour),
	}
	gomock.InOrder(
		publisher.EXPECT().PublishConsentGiven(gomock.Any(), want).Return(nil),
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event audit.ComplianceEvent) error {
				assert.Equal(t, owner, event.OwnerID)
				assert.Equal(t, string(audit.EventConsentGiven), event.Action)
				assert.Equal(t, hash.String(), event.Fingerprint)
				assert.Equal(t, time.Unix(1000, 0).UTC(), event.Timestamp)
				return nil
			}),
	)

	got, err := svc.GiveConsent(ownerCtx(owner, 1000), hash, start, 3)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestGiveConsent_PublishFailureAbortsGrant(t *testing.T) {
	ctrl := gomock.NewController(t)
	mem := store.NewInMemoryStore()
	publisher := mocks.NewMockPublisher(ctrl)
	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc := New(mem, mem, WithPublisher(publisher), WithAuditPublisher(auditor))

	owner := id.OwnerID(uuid.New())
	hash := fingerprint(0x0b)
	publisher.EXPECT().PublishConsentGiven(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)
	// no Emit expectation: an audit write for the aborted grant fails the test

	_, err := svc.GiveImmediateConsent(ownerCtx(owner, 1000), hash, 3)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	history, err := mem.History(context.Background(), models.Key{Owner: owner, Fingerprint: hash})
	require.NoError(t, err)
	assert.Empty(t, history)

	// retry succeeds once the sink recovers
	publisher.EXPECT().PublishConsentGiven(gomock.Any(), gomock.Any()).Return(nil)
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	event, err := svc.GiveImmediateConsent(ownerCtx(owner, 1000), hash, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, event.Index)
}

func TestExtend_AuditFailureLeavesWindowUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	mem := store.NewInMemoryStore()
	auditor := mocks.NewMockAuditPublisher(ctrl)
	svc := New(mem, mem, WithAuditPublisher(auditor))

	owner := id.OwnerID(uuid.New())
	hash := fingerprint(0x0c)
	key := models.Key{Owner: owner, Fingerprint: hash}

	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	_, err := svc.GiveImmediateConsent(ownerCtx(owner, 1000), hash, 3)
	require.NoError(t, err)
	before, err := mem.History(context.Background(), key)
	require.NoError(t, err)

	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))
	_, err = svc.Extend(ownerCtx(owner, 2000), hash, 3)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	after, err := mem.History(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStoreFailures(t *testing.T) {
	owner := id.OwnerID(uuid.New())
	hash := fingerprint(0x0d)
	key := models.Key{Owner: owner, Fingerprint: hash}

	t.Run("history read failure is internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		svc := New(st, passthroughTx(ctrl))

		st.EXPECT().History(gomock.Any(), key).Return(nil, errors.New("connection reset"))

		_, err := svc.GiveImmediateConsent(ownerCtx(owner, 1000), hash, 3)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("query read failure is internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		svc := New(st, passthroughTx(ctrl))

		st.EXPECT().History(gomock.Any(), key).Return(nil, errors.New("connection reset"))

		_, err := svc.ConsentIsValid(ownerCtx(owner, 1000), owner, hash)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("concurrent modification surfaces as conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		tx := mocks.NewMockConsentStoreTx(ctrl)
		svc := New(st, tx)

		tx.EXPECT().RunInTx(gomock.Any(), key, gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ models.Key, fn func(context.Context) error) error {
				if err := fn(ctx); err != nil {
					return err
				}
				return sentinel.ErrConflict
			})
		st.EXPECT().History(gomock.Any(), key).Return(nil, nil)
		st.EXPECT().Append(gomock.Any(), key, gomock.Any()).Return(nil)

		_, err := svc.GiveImmediateConsent(ownerCtx(owner, 1000), hash, 3)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("tail vanished between read and write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		svc := New(st, passthroughTx(ctrl))

		st.EXPECT().History(gomock.Any(), key).Return([]models.Window{window(1000, 11800)}, nil)
		st.EXPECT().ReplaceLast(gomock.Any(), key, gomock.Any()).Return(sentinel.ErrNoEntry)

		_, err := svc.Extend(ownerCtx(owner, 2000), hash, 3)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNoConsentFound))
	})

	t.Run("rule violations never reach the store writer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		svc := New(st, passthroughTx(ctrl))

		st.EXPECT().History(gomock.Any(), key).Return([]models.Window{window(2000, 12800)}, nil)

		err := svc.EndConsent(ownerCtx(owner, 2000), hash)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCannotCancelStartedConsent))
	})
}

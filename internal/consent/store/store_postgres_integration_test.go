//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentwindow/internal/consent/models"
	"consentwindow/internal/consent/store"
	id "consentwindow/pkg/domain"
	"consentwindow/pkg/platform/sentinel"
	"consentwindow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	tx       *store.PostgresTx
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = store.NewPostgresTx(s.postgres.DB, 10*time.Second)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_windows", "consent_outbox", "consent_audit")
	s.Require().NoError(err)
}

func newKey() models.Key {
	var fp id.Fingerprint
	copy(fp[:], uuid.New().NodeID())
	fp[31] = 0x7f
	return models.Key{Owner: id.OwnerID(uuid.New()), Fingerprint: fp}
}

func win(start, end int64) models.Window {
	return models.Window{StartsAt: time.Unix(start, 0).UTC(), ExpiresAt: time.Unix(end, 0).UTC()}
}

func (s *PostgresStoreSuite) TestHistoryAndTail() {
	ctx := context.Background()
	key := newKey()

	history, err := s.store.History(ctx, key)
	s.Require().NoError(err)
	s.Empty(history)

	s.ErrorIs(s.store.ReplaceLast(ctx, key, win(1, 2)), sentinel.ErrNoEntry)
	s.ErrorIs(s.store.RemoveLast(ctx, key), sentinel.ErrNoEntry)

	s.Require().NoError(s.store.Append(ctx, key, win(1000, 2000)))
	s.Require().NoError(s.store.Append(ctx, key, win(3000, 4000)))
	s.Require().NoError(s.store.ReplaceLast(ctx, key, win(3000, 5000)))

	history, err = s.store.History(ctx, key)
	s.Require().NoError(err)
	s.Equal([]models.Window{win(1000, 2000), win(3000, 5000)}, history)

	s.Require().NoError(s.store.RemoveLast(ctx, key))
	s.Require().NoError(s.store.Append(ctx, key, win(6000, 7000)))
	history, err = s.store.History(ctx, key)
	s.Require().NoError(err)
	s.Equal([]models.Window{win(1000, 2000), win(6000, 7000)}, history)

	other, err := s.store.History(ctx, newKey())
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	ctx := context.Background()
	key := newKey()
	s.Require().NoError(s.store.Append(ctx, key, win(1000, 2000)))

	boom := errors.New("boom")
	err := s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
		s.Require().NoError(s.store.ReplaceLast(ctx, key, win(1000, 9000)))
		s.Require().NoError(s.store.Append(ctx, key, win(10000, 20000)))

		inside, err := s.store.History(ctx, key)
		s.Require().NoError(err)
		s.Len(inside, 2)
		return boom
	})
	s.ErrorIs(err, boom)

	history, err := s.store.History(ctx, key)
	s.Require().NoError(err)
	s.Equal([]models.Window{win(1000, 2000)}, history)
}

// TestRunInTxSerializesWriters verifies the advisory lock: concurrent read-then-append
// transactions on one key never lose an append or duplicate an index.
func (s *PostgresStoreSuite) TestRunInTxSerializesWriters() {
	ctx := context.Background()
	key := newKey()
	const goroutines = 30

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.tx.RunInTx(ctx, key, func(ctx context.Context) error {
				history, err := s.store.History(ctx, key)
				if err != nil {
					return err
				}
				next := int64(len(history)) * 10
				return s.store.Append(ctx, key, win(next, next+5))
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	history, err := s.store.History(ctx, key)
	s.Require().NoError(err)
	s.Require().Len(history, goroutines)
	for i, w := range history {
		s.Equal(win(int64(i)*10, int64(i)*10+5), w)
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentwindow/internal/consent/models"
	id "consentwindow/pkg/domain"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	key   models.Key
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.key = models.Key{Owner: id.NewOwnerID(), Fingerprint: id.Fingerprint{1, 2, 3}}
}

func window(start, end int64) models.Window {
	return models.Window{StartsAt: time.Unix(start, 0), ExpiresAt: time.Unix(end, 0)}
}

func (s *InMemoryStoreSuite) TestHistory() {
	s.Run("unknown key has empty history", func() {
		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Empty(history)
	})

	s.Run("append preserves insertion order", func() {
		s.Require().NoError(s.store.Append(s.ctx, s.key, window(1, 2)))
		s.Require().NoError(s.store.Append(s.ctx, s.key, window(3, 4)))

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal([]models.Window{window(1, 2), window(3, 4)}, history)
	})

	s.Run("returned slice is a copy", func() {
		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		history[0] = window(100, 200)

		again, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal(window(1, 2), again[0])
	})

	s.Run("keys are isolated by owner and fingerprint", func() {
		other := models.Key{Owner: s.key.Owner, Fingerprint: id.Fingerprint{9}}
		history, err := s.store.History(s.ctx, other)
		s.Require().NoError(err)
		s.Empty(history)
	})
}

func (s *InMemoryStoreSuite) TestTailMutations() {
	s.Run("replace and remove fail on empty history", func() {
		s.ErrorIs(s.store.ReplaceLast(s.ctx, s.key, window(1, 2)), sentinel.ErrNoEntry)
		s.ErrorIs(s.store.RemoveLast(s.ctx, s.key), sentinel.ErrNoEntry)
	})

	s.Run("replace touches only the last window", func() {
		s.Require().NoError(s.store.Append(s.ctx, s.key, window(1, 2)))
		s.Require().NoError(s.store.Append(s.ctx, s.key, window(3, 4)))
		s.Require().NoError(s.store.ReplaceLast(s.ctx, s.key, window(3, 9)))

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal([]models.Window{window(1, 2), window(3, 9)}, history)
	})

	s.Run("remove drops only the last window", func() {
		s.Require().NoError(s.store.RemoveLast(s.ctx, s.key))

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal([]models.Window{window(1, 2)}, history)
	})
}

func (s *InMemoryStoreSuite) TestRunInTx() {
	s.Run("commits staged writes on success", func() {
		err := s.store.RunInTx(s.ctx, s.key, func(ctx context.Context) error {
			if err := s.store.Append(ctx, s.key, window(1, 2)); err != nil {
				return err
			}
			staged, err := s.store.History(ctx, s.key)
			s.Require().NoError(err)
			s.Len(staged, 1)

			committed, err := s.store.History(s.ctx, s.key)
			s.Require().NoError(err)
			s.Empty(committed, "staged writes must not be visible outside the transaction")
			return nil
		})
		s.Require().NoError(err)

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Len(history, 1)
	})

	s.Run("discards staged writes on error", func() {
		boom := errors.New("publish failed")
		err := s.store.RunInTx(s.ctx, s.key, func(ctx context.Context) error {
			s.Require().NoError(s.store.RemoveLast(ctx, s.key))
			return boom
		})
		s.ErrorIs(err, boom)

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Len(history, 1)
	})

	s.Run("cancelled context aborts before running", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		called := false
		err := s.store.RunInTx(ctx, s.key, func(context.Context) error {
			called = true
			return nil
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.False(called)
	})

	s.Run("nested transactions on the same key join the outer one", func() {
		err := s.store.RunInTx(s.ctx, s.key, func(ctx context.Context) error {
			return s.store.RunInTx(ctx, s.key, func(ctx context.Context) error {
				return s.store.Append(ctx, s.key, window(5, 6))
			})
		})
		s.Require().NoError(err)

		history, err := s.store.History(s.ctx, s.key)
		s.Require().NoError(err)
		s.Len(history, 2)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentTransactionsAreSerialized() {
	const goroutines = 50
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.RunInTx(s.ctx, s.key, func(ctx context.Context) error {
				history, err := s.store.History(ctx, s.key)
				if err != nil {
					return err
				}
				n := int64(len(history))
				return s.store.Append(ctx, s.key, window(n*10, n*10+5))
			})
		}()
	}
	wg.Wait()

	history, err := s.store.History(s.ctx, s.key)
	s.Require().NoError(err)
	s.Require().Len(history, goroutines)
	for i, w := range history {
		s.Equal(int64(i*10), w.StartsAt.Unix(), "lost update at index %d", i)
	}
}

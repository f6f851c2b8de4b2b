package store

import (
	"context"
	"slices"
	"sync"

	"consentwindow/internal/consent/models"
	"consentwindow/pkg/platform/sentinel"
)

// InMemoryStore keeps every history in a map guarded by a single RWMutex.
// Transactions (see tx_memory.go) stage writes against a copy and publish them in one
// step, so readers only ever observe committed histories. Writes made outside RunInTx
// bypass per-key serialization.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[models.Key][]models.Window
	tx        *shardedTx
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{histories: make(map[models.Key][]models.Window)}
	s.tx = newShardedTx(s)
	return s
}

// History returns a copy of the ordered windows for key. Inside a transaction on the
// same key it returns the staged view.
func (s *InMemoryStore) History(ctx context.Context, key models.Key) ([]models.Window, error) {
	if st := stagedFrom(ctx, s, key); st != nil {
		return slices.Clone(st.history), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.histories[key]), nil
}

func (s *InMemoryStore) Append(ctx context.Context, key models.Key, window models.Window) error {
	if st := stagedFrom(ctx, s, key); st != nil {
		st.history = append(st.history, window)
		st.dirty = true
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[key] = append(s.histories[key], window)
	return nil
}

func (s *InMemoryStore) ReplaceLast(ctx context.Context, key models.Key, window models.Window) error {
	if st := stagedFrom(ctx, s, key); st != nil {
		if len(st.history) == 0 {
			return sentinel.ErrNoEntry
		}
		st.history[len(st.history)-1] = window
		st.dirty = true
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.histories[key]
	if len(history) == 0 {
		return sentinel.ErrNoEntry
	}
	// Copy so slices handed out earlier by History are never mutated.
	updated := slices.Clone(history)
	updated[len(updated)-1] = window
	s.histories[key] = updated
	return nil
}

func (s *InMemoryStore) RemoveLast(ctx context.Context, key models.Key) error {
	if st := stagedFrom(ctx, s, key); st != nil {
		if len(st.history) == 0 {
			return sentinel.ErrNoEntry
		}
		st.history = st.history[:len(st.history)-1]
		st.dirty = true
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.histories[key]
	if len(history) == 0 {
		return sentinel.ErrNoEntry
	}
	s.histories[key] = slices.Clone(history[:len(history)-1])
	return nil
}

// RunInTx runs fn as one all-or-nothing unit of work against key.
func (s *InMemoryStore) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, key, fn)
}

// Health always succeeds for the in-memory store.
func (s *InMemoryStore) Health(context.Context) error {
	return nil
}

func (s *InMemoryStore) commit(key models.Key, history []models.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(history) == 0 {
		// Keep the key so an emptied history stays distinguishable in debugging dumps.
		s.histories[key] = nil
		return
	}
	s.histories[key] = history
}

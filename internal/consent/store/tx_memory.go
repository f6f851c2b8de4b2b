package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"consentwindow/internal/consent/models"
	dErrors "consentwindow/pkg/domain-errors"
)

// numConsentShards spreads per-key transaction locks so unrelated keys do not contend.
const numConsentShards = 128

// defaultConsentTxTimeout is the maximum duration for a consent transaction.
const defaultConsentTxTimeout = 5 * time.Second

// shardedTx serializes transactions per key using sharded mutexes. Instead of a single
// global lock, keys are distributed across shards by an FNV-1a hash of the key.
type shardedTx struct {
	shards  [numConsentShards]sync.Mutex
	store   *InMemoryStore
	timeout time.Duration
}

func newShardedTx(store *InMemoryStore) *shardedTx {
	return &shardedTx{store: store, timeout: defaultConsentTxTimeout}
}

type stagedKey struct{}

// stagedHistory is the private working copy of one key's history during a transaction.
type stagedHistory struct {
	store   *InMemoryStore
	key     models.Key
	history []models.Window
	dirty   bool
}

func stagedFrom(ctx context.Context, store *InMemoryStore, key models.Key) *stagedHistory {
	st, ok := ctx.Value(stagedKey{}).(*stagedHistory)
	if !ok || st.store != store || st.key != key {
		return nil
	}
	return st
}

func (t *shardedTx) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Re-entrant on the same key: join the open transaction.
	if stagedFrom(ctx, t.store, key) != nil {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultConsentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashConsentKey(key.String()) % numConsentShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t.store.mu.RLock()
	st := &stagedHistory{store: t.store, key: key, history: slices.Clone(t.store.histories[key])}
	t.store.mu.RUnlock()

	if err := fn(context.WithValue(ctx, stagedKey{}, st)); err != nil {
		return err
	}
	if st.dirty {
		t.store.commit(key, st.history)
	}
	return nil
}

// hashConsentKey uses FNV-1a for even shard distribution.
func hashConsentKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

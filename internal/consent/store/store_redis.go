package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"consentwindow/internal/consent/models"
	dErrors "consentwindow/pkg/domain-errors"
	"consentwindow/pkg/platform/sentinel"
)

const (
	historyKeyPrefix = "consent:history:"
	lockKeyPrefix    = "consent:lock:"

	lockRetryInterval = 10 * time.Millisecond
)

// releaseLock deletes the lock only when it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// listReader is satisfied by both *redis.Client and *redis.Tx.
type listReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// redisWindow is the list element encoding: unix seconds, short field names.
type redisWindow struct {
	StartsAt  int64 `json:"s"`
	ExpiresAt int64 `json:"e"`
}

// RedisStore keeps each history as a Redis list of JSON-encoded windows.
// Transactions take a per-key lock, stage writes in memory and rewrite the list in a
// single MULTI/EXEC guarded by WATCH.
type RedisStore struct {
	client  *redis.Client
	lockTTL time.Duration
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithLockTTL bounds how long a crashed writer can hold a key.
func WithLockTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, lockTTL: defaultConsentTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type redisStagedKey struct{}

type redisStaged struct {
	store   *RedisStore
	key     models.Key
	history []models.Window
	dirty   bool
}

func (s *RedisStore) staged(ctx context.Context, key models.Key) *redisStaged {
	st, ok := ctx.Value(redisStagedKey{}).(*redisStaged)
	if !ok || st.store != s || st.key != key {
		return nil
	}
	return st
}

func (s *RedisStore) History(ctx context.Context, key models.Key) ([]models.Window, error) {
	if st := s.staged(ctx, key); st != nil {
		return slices.Clone(st.history), nil
	}
	return s.load(ctx, s.client, key)
}

func (s *RedisStore) Append(ctx context.Context, key models.Key, window models.Window) error {
	if st := s.staged(ctx, key); st != nil {
		st.history = append(st.history, window)
		st.dirty = true
		return nil
	}
	encoded, err := encodeWindow(window)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, historyKeyPrefix+key.String(), encoded).Err()
}

func (s *RedisStore) ReplaceLast(ctx context.Context, key models.Key, window models.Window) error {
	if st := s.staged(ctx, key); st != nil {
		if len(st.history) == 0 {
			return sentinel.ErrNoEntry
		}
		st.history[len(st.history)-1] = window
		st.dirty = true
		return nil
	}
	encoded, err := encodeWindow(window)
	if err != nil {
		return err
	}
	err = s.client.LSet(ctx, historyKeyPrefix+key.String(), -1, encoded).Err()
	if err != nil {
		// LSET on a missing key replies "ERR no such key".
		n, lenErr := s.client.LLen(ctx, historyKeyPrefix+key.String()).Result()
		if lenErr == nil && n == 0 {
			return sentinel.ErrNoEntry
		}
		return fmt.Errorf("replace last consent window: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveLast(ctx context.Context, key models.Key) error {
	if st := s.staged(ctx, key); st != nil {
		if len(st.history) == 0 {
			return sentinel.ErrNoEntry
		}
		st.history = st.history[:len(st.history)-1]
		st.dirty = true
		return nil
	}
	err := s.client.RPop(ctx, historyKeyPrefix+key.String()).Err()
	if errors.Is(err, redis.Nil) {
		return sentinel.ErrNoEntry
	}
	return err
}

// RunInTx runs fn as one all-or-nothing unit of work against key.
func (s *RedisStore) RunInTx(ctx context.Context, key models.Key, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if s.staged(ctx, key) != nil {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTTL)
		defer cancel()
	}

	lockKey := lockKeyPrefix + key.String()
	token := uuid.NewString()
	if err := s.acquire(ctx, lockKey, token); err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseLock.Run(releaseCtx, s.client, []string{lockKey}, token).Err()
	}()

	historyKey := historyKeyPrefix + key.String()
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		history, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		st := &redisStaged{store: s, key: key, history: history}
		if err := fn(context.WithValue(ctx, redisStagedKey{}, st)); err != nil {
			return err
		}
		if !st.dirty {
			return nil
		}
		values := make([]any, 0, len(st.history))
		for _, w := range st.history {
			encoded, err := encodeWindow(w)
			if err != nil {
				return err
			}
			values = append(values, encoded)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, historyKey)
			if len(values) > 0 {
				pipe.RPush(ctx, historyKey, values...)
			}
			return nil
		})
		return err
	}, historyKey)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("consent history changed during transaction: %w", sentinel.ErrConflict)
	}
	return err
}

// Health pings Redis.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) acquire(ctx context.Context, lockKey, token string) error {
	for {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire consent lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for consent lock")
		case <-time.After(lockRetryInterval):
		}
	}
}

func (s *RedisStore) load(ctx context.Context, c listReader, key models.Key) ([]models.Window, error) {
	raw, err := c.LRange(ctx, historyKeyPrefix+key.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load consent history: %w", err)
	}
	history := make([]models.Window, 0, len(raw))
	for _, item := range raw {
		var rw redisWindow
		if err := json.Unmarshal([]byte(item), &rw); err != nil {
			return nil, fmt.Errorf("decode consent window: %w", err)
		}
		history = append(history, models.Window{
			StartsAt:  time.Unix(rw.StartsAt, 0).UTC(),
			ExpiresAt: time.Unix(rw.ExpiresAt, 0).UTC(),
		})
	}
	return history, nil
}

func encodeWindow(w models.Window) (string, error) {
	b, err := json.Marshal(redisWindow{StartsAt: w.StartsAt.Unix(), ExpiresAt: w.ExpiresAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("encode consent window: %w", err)
	}
	return string(b), nil
}

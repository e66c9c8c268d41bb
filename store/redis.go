// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/sprucehealth/callflow/model"
)

// unlockScript deletes the lock only if we still hold it.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisStore implements Store on a shared Redis, for deployments where
// provider callbacks for one call may land on different nodes. Each
// session is a JSON document; per-key mutual exclusion uses a SET NX PX
// lock held for the duration of the mutation.
type RedisStore struct {
	client      *backend.Client
	prefix      string
	terminalTTL time.Duration
	lockTTL     time.Duration
	lockRetry   time.Duration
}

type RedisOption func(*RedisStore)

// WithTerminalTTL sets the expiration applied once a session reaches a
// terminal state. Zero keeps terminal sessions until manual eviction.
func WithTerminalTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.terminalTTL = ttl }
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:      client,
		prefix:      "callflow:session:",
		terminalTTL: time.Hour,
		lockTTL:     10 * time.Second,
		lockRetry:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) dataKey(key string) string { return s.prefix + key }
func (s *RedisStore) lockKey(key string) string { return s.prefix + "lock:" + key }

// lock blocks until the per-key lock is acquired or ctx expires.
func (s *RedisStore) lock(ctx context.Context, key string) (func(context.Context) error, error) {
	lk := s.lockKey(key)
	val := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, lk, val, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring session lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return s.client.Eval(ctx, unlockScript, []string{lk}, val).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.lockRetry):
		}
	}
}

func (s *RedisStore) load(ctx context.Context, key string) (*model.CallSession, error) {
	raw, err := s.client.Get(ctx, s.dataKey(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	var sess model.CallSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *model.CallSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	ttl := time.Duration(0)
	if sess.Terminal() {
		ttl = s.terminalTTL
	}
	if err := s.client.Set(ctx, s.dataKey(sess.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, key string, init func() *model.CallSession) (*model.CallSession, bool, error) {
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, false, err
	}
	defer unlock(ctx)

	sess, err := s.load(ctx, key)
	switch {
	case err == nil:
		return sess, false, nil
	case err != ErrNotFound:
		return nil, false, err
	}

	sess = init()
	sess.Key = key
	if err := s.save(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*model.CallSession, error) {
	return s.load(ctx, key)
}

func (s *RedisStore) Update(ctx context.Context, key string, mutate func(*model.CallSession) error) (*model.CallSession, error) {
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	sess, err := s.load(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrStaleSession
		}
		return nil, err
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisStore) Evict(ctx context.Context, key string) error {
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock(ctx)
	return s.client.Del(ctx, s.dataKey(key)).Err()
}

var _ Store = (*RedisStore)(nil)

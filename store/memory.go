// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sprucehealth/callflow/model"
	"github.com/sprucehealth/callflow/simclock"
)

const shardCount = 32

type entry struct {
	mu      sync.Mutex
	sess    *model.CallSession
	evicted bool
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// MemoryStore is an in-process Store sharded by key hash. A background
// loop evicts terminal sessions once they have been idle for the grace
// period.
type MemoryStore struct {
	shards [shardCount]*shard
	clock  simclock.Clock
	grace  time.Duration

	done chan struct{}
	once sync.Once
}

// NewMemoryStore starts the eviction loop immediately. Close must be
// called to stop it.
func NewMemoryStore(clock simclock.Clock, grace, sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		clock: clock,
		grace: grace,
		done:  make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	go s.sweepLoop(sweepEvery)
	return s
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) GetOrCreate(_ context.Context, key string, init func() *model.CallSession) (*model.CallSession, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{sess: init()}
		e.sess.Key = key
		sh.entries[key] = e
		// Clone while still holding the shard lock: once the entry is in
		// the map a concurrent Update may swap e.sess under e.mu.
		created := e.sess.Clone()
		sh.mu.Unlock()
		return created, true, nil
	}
	sh.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), false, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*model.CallSession, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	sh.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, key string, mutate func(*model.CallSession) error) (*model.CallSession, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	sh.mu.Unlock()
	if !ok {
		return nil, ErrStaleSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil, ErrStaleSession
	}
	// Mutate a copy so a failed mutator leaves the stored session intact
	next := e.sess.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	e.sess = next
	return next.Clone(), nil
}

func (s *MemoryStore) Evict(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if ok {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	for {
		select {
		case <-s.done:
			return
		case <-s.clock.After(every):
			s.sweep(s.clock.Now())
		}
	}
}

// sweep evicts terminal sessions last touched before now minus grace.
func (s *MemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-s.grace)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			e.mu.Lock()
			if e.sess.Terminal() && e.sess.UpdatedAt.Before(cutoff) {
				e.evicted = true
				delete(sh.entries, key)
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
}

var _ Store = (*MemoryStore)(nil)

// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package store persists call sessions and serializes all access to a
// session behind a per-key lock. Two backends are provided: a sharded
// in-memory store for single-node deployments and tests, and a Redis
// store for deployments where callbacks may land on different nodes.
package store

import (
	"context"
	"errors"

	"github.com/sprucehealth/callflow/model"
)

// ErrStaleSession is returned by Update when the session was evicted
// between lookup and mutation. Callers should re-resolve the session
// and retry once.
var ErrStaleSession = errors.New("store: stale session")

// ErrNotFound is returned by Get for keys with no session.
var ErrNotFound = errors.New("store: session not found")

// Store keys sessions by their correlation key. At most one session
// exists per key; creation races resolve to a single winner.
type Store interface {
	// GetOrCreate returns the session for key, creating it with init
	// if absent. created reports whether this call created it.
	GetOrCreate(ctx context.Context, key string, init func() *model.CallSession) (sess *model.CallSession, created bool, err error)

	// Get returns a copy of the session for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*model.CallSession, error)

	// Update applies mutate to the session under the per-key lock and
	// persists the result. A mutator error aborts without persisting.
	// Returns ErrStaleSession if the key does not resolve to a session,
	// which after a successful GetOrCreate means concurrent eviction.
	Update(ctx context.Context, key string, mutate func(*model.CallSession) error) (*model.CallSession, error)

	// Evict removes the session for key. Evicting an absent key is not
	// an error.
	Evict(ctx context.Context, key string) error
}

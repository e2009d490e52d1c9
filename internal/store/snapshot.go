// Package store persists learned state outside the engine: a Redis
// snapshot store for warm restarts and a Postgres archive for outcome
// analytics. The engine itself performs no I/O.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"market-pattern-engine/internal/learning"
	"market-pattern-engine/internal/logging"
)

const (
	snapshotKeyPrefix = "pattern-engine:learning"
	snapshotTTL       = 30 * 24 * time.Hour
	pingTimeout       = 2 * time.Second
)

// SnapshotStore persists learning snapshots to Redis with an in-memory
// fallback so a Redis outage never loses the current state.
type SnapshotStore struct {
	client *redis.Client
	log    *logging.Logger

	mu     sync.RWMutex
	memory map[string]learning.Snapshot

	redisAvailable atomic.Bool
}

// NewSnapshotStore creates a snapshot store. A nil client means
// memory-only mode.
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	s := &SnapshotStore{
		client: client,
		log:    logging.WithComponent("snapshot-store"),
		memory: make(map[string]learning.Snapshot),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.log.Warn("redis unavailable, using in-memory fallback", "error", err)
		} else {
			s.redisAvailable.Store(true)
		}
	}
	return s
}

// Available reports whether Redis is currently reachable.
func (s *SnapshotStore) Available() bool {
	return s.redisAvailable.Load()
}

func (s *SnapshotStore) key(name string) string {
	return fmt.Sprintf("%s:%s", snapshotKeyPrefix, name)
}

// Save persists the snapshot under name. A Redis failure degrades to the
// in-memory copy without surfacing an error.
func (s *SnapshotStore) Save(ctx context.Context, name string, snap learning.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", name, err)
	}

	s.mu.Lock()
	s.memory[name] = snap
	s.mu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Set(ctx, s.key(name), data, snapshotTTL).Err(); err != nil {
			s.log.Warn("redis save failed, keeping in-memory copy", "name", name, "error", err)
			s.redisAvailable.Store(false)
		}
	}
	return nil
}

// Load fetches a snapshot by name, preferring Redis over the in-memory
// fallback. The second return reports whether anything was found.
func (s *SnapshotStore) Load(ctx context.Context, name string) (learning.Snapshot, bool, error) {
	if s.client != nil && s.redisAvailable.Load() {
		data, err := s.client.Get(ctx, s.key(name)).Bytes()
		switch {
		case err == nil:
			var snap learning.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return learning.Snapshot{}, false, fmt.Errorf("unmarshal snapshot %s: %w", name, err)
			}
			return snap, true, nil
		case errors.Is(err, redis.Nil):
		default:
			s.log.Warn("redis load failed, trying in-memory copy", "name", name, "error", err)
			s.redisAvailable.Store(false)
		}
	}

	s.mu.RLock()
	snap, ok := s.memory[name]
	s.mu.RUnlock()
	return snap, ok, nil
}

// Delete removes a snapshot from both stores.
func (s *SnapshotStore) Delete(ctx context.Context, name string) {
	s.mu.Lock()
	delete(s.memory, name)
	s.mu.Unlock()

	if s.client != nil && s.redisAvailable.Load() {
		if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
			s.redisAvailable.Store(false)
		}
	}
}

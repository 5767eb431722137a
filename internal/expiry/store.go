package expiry

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	shardCount = 32

	defaultSweepInterval = 1 * time.Minute
)

// Key addresses per-member transient state. Every entry in the store belongs
// to exactly one (chat, user) pair.
type Key struct {
	ChatID int64
	UserID int64
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

type shard[V any] struct {
	mu      sync.Mutex
	entries map[Key]entry[V]
}

// Store is a sharded keyed cache with per-entry time to live. Operations on
// a single key are serialized by the owning shard's mutex; expired entries
// are evicted lazily on access and by the background sweeper. Values are
// process-lifetime only and may be dropped without corrupting persisted
// state.
type Store[V any] struct {
	shards [shardCount]*shard[V]

	sweepInterval time.Duration

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func NewStore[V any]() *Store[V] {
	s := &Store[V]{sweepInterval: defaultSweepInterval}
	for i := range s.shards {
		s.shards[i] = &shard[V]{entries: map[Key]entry[V]{}}
	}
	return s
}

func (s *Store[V]) shardFor(k Key) *shard[V] {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(k.ChatID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.UserID))
	_, _ = h.Write(buf[:])
	return s.shards[h.Sum64()%shardCount]
}

// Put inserts or replaces the entry, restarting its lifetime.
func (s *Store[V]) Put(k Key, v V, ttl time.Duration) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[k] = entry[V]{value: v, deadline: time.Now().Add(ttl)}
}

// PutIfAbsent inserts only when no live entry exists for the key and reports
// whether the insert happened.
func (s *Store[V]) PutIfAbsent(k Key, v V, ttl time.Duration) bool {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[k]; ok && time.Now().Before(e.deadline) {
		return false
	}
	sh.entries[k] = entry[V]{value: v, deadline: time.Now().Add(ttl)}
	return true
}

func (s *Store[V]) Get(k Key) (V, bool) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	if !time.Now().Before(e.deadline) {
		delete(sh.entries, k)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Update is an atomic read-modify-write for the key: fn receives the live
// value (or the zero value when absent) and its result is stored back with a
// refreshed lifetime. No other operation on the key can interleave.
func (s *Store[V]) Update(k Key, ttl time.Duration, fn func(v V, found bool) V) V {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	var cur V
	found := false
	if e, ok := sh.entries[k]; ok && time.Now().Before(e.deadline) {
		cur, found = e.value, true
	}
	next := fn(cur, found)
	sh.entries[k] = entry[V]{value: next, deadline: time.Now().Add(ttl)}
	return next
}

// Mutate applies fn to the live entry in place, keeping its deadline.
// Reports false when no live entry exists.
func (s *Store[V]) Mutate(k Key, fn func(v *V)) bool {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[k]
	if !ok {
		return false
	}
	if !time.Now().Before(e.deadline) {
		delete(sh.entries, k)
		return false
	}
	fn(&e.value)
	sh.entries[k] = e
	return true
}

// Remove deletes the entry and returns it. The boolean result is the commit
// token for mutually exclusive terminal actions: for any key, at most one
// caller ever observes true for a given entry.
func (s *Store[V]) Remove(k Key) (V, bool) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	delete(sh.entries, k)
	if !time.Now().Before(e.deadline) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Sweep evicts entries whose deadline elapsed before now and returns the
// eviction count.
func (s *Store[V]) Sweep(now time.Time) int {
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if !now.Before(e.deadline) {
				delete(sh.entries, k)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

func (s *Store[V]) Len() int {
	total := 0
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.entries {
			if now.Before(e.deadline) {
				total++
			}
		}
		sh.mu.Unlock()
	}
	return total
}

func (s *Store[V]) SetSweepInterval(interval time.Duration) {
	if interval > 0 {
		s.sweepInterval = interval
	}
}

func (s *Store[V]) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					log.WithField("evicted", n).Trace("swept expired entries")
				}
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Store[V]) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workerWG.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

package scheduler

import (
	"sync"
	"time"

	"github.com/saikatwtf/Lemon/internal/expiry"
)

// Scheduler owns cancellable deferred tasks keyed by (chat, user). It backs
// challenge timeouts and delayed message cleanup. Cancellation is best
// effort: a callback that has already started running is not interrupted, so
// callbacks must tolerate racing with the cancel path.
type Scheduler struct {
	mu     sync.Mutex
	timers map[expiry.Key]*time.Timer
}

func New() *Scheduler {
	return &Scheduler{timers: map[expiry.Key]*time.Timer{}}
}

// After schedules fn to run once after d, replacing any pending task for the
// same key.
func (s *Scheduler) After(k expiry.Key, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[k]; ok {
		t.Stop()
	}
	s.timers[k] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, k)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending task for the key, reporting whether a timer was
// found and stopped before firing.
func (s *Scheduler) Cancel(k expiry.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[k]
	if !ok {
		return false
	}
	delete(s.timers, k)
	return t.Stop()
}

// CancelAll stops every pending task. Used on shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

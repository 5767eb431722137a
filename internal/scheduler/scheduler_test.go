package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/saikatwtf/Lemon/internal/expiry"
)

func TestAfterFiresOnce(t *testing.T) {
	t.Parallel()

	s := New()
	k := expiry.Key{ChatID: 1, UserID: 2}

	var fired int32
	s.After(k, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("expected one firing, got %d", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("fired timer must be forgotten")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	t.Parallel()

	s := New()
	k := expiry.Key{ChatID: 3, UserID: 4}

	var fired int32
	s.After(k, 50*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	if !s.Cancel(k) {
		t.Fatalf("cancel of pending timer must succeed")
	}

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("cancelled timer must not fire, fired %d times", got)
	}
}

func TestAfterReplacesPendingTask(t *testing.T) {
	t.Parallel()

	s := New()
	k := expiry.Key{ChatID: 5, UserID: 6}

	var first, second int32
	s.After(k, 20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.After(k, 20*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(120 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Fatalf("replaced task must not fire")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Fatalf("replacement task must fire once")
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	s := New()
	var fired int32
	for i := int64(0); i < 10; i++ {
		s.After(expiry.Key{ChatID: i, UserID: i}, 50*time.Millisecond, func() {
			atomic.AddInt32(&fired, 1)
		})
	}
	s.CancelAll()

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("no timers may fire after CancelAll, fired %d", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending timers remain after CancelAll")
	}
}

func TestCancelOfAbsentKey(t *testing.T) {
	t.Parallel()

	s := New()
	if s.Cancel(expiry.Key{ChatID: 9, UserID: 9}) {
		t.Fatalf("cancel of unknown key must report false")
	}
}

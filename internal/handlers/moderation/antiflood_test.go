package moderation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saikatwtf/Lemon/internal/expiry"
)

func TestRecordMessageCountsUpToLimit(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	for i := 1; i < 5; i++ {
		count, triggered := d.RecordMessage(k, 5, time.Minute)
		if triggered {
			t.Fatalf("message %d should not trigger", i)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
	}
	count, triggered := d.RecordMessage(k, 5, time.Minute)
	if !triggered {
		t.Fatal("message at limit should trigger")
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
}

func TestRecordMessageResetsAfterTrigger(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	for i := 0; i < 3; i++ {
		d.RecordMessage(k, 3, time.Minute)
	}
	count, triggered := d.RecordMessage(k, 3, time.Minute)
	if triggered {
		t.Fatal("first message after trigger must not re-trigger")
	}
	if count != 1 {
		t.Fatalf("count after reset = %d, want 1", count)
	}
}

func TestRecordMessageDisabledLimit(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	for i := 0; i < 100; i++ {
		if count, triggered := d.RecordMessage(k, 0, time.Minute); triggered || count != 0 {
			t.Fatalf("disabled limit must never trigger, got count=%d triggered=%v", count, triggered)
		}
	}
}

func TestRecordMessageWindowExpiry(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	d.RecordMessage(k, 5, 10*time.Millisecond)
	d.RecordMessage(k, 5, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	count, triggered := d.RecordMessage(k, 5, 10*time.Millisecond)
	if triggered {
		t.Fatal("stale counter must not trigger")
	}
	if count != 1 {
		t.Fatalf("count after window expiry = %d, want 1", count)
	}
}

func TestRecordMessageWindowAnchorsAtFirstMessage(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	// A slow steady stream must not keep the window alive: the window is
	// anchored at the first message, not at the latest one.
	window := 50 * time.Millisecond
	d.RecordMessage(k, 5, window)
	time.Sleep(30 * time.Millisecond)
	d.RecordMessage(k, 5, window)
	time.Sleep(30 * time.Millisecond)

	count, _ := d.RecordMessage(k, 5, window)
	if count != 1 {
		t.Fatalf("count = %d, want 1 after the anchored window elapsed", count)
	}
}

func TestRecordMessageTriggersExactlyOnceUnderContention(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 7, UserID: 8}

	const (
		limit   = 10
		workers = 8
		each    = 100
	)
	var triggers atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, triggered := d.RecordMessage(k, limit, time.Minute); triggered {
					triggers.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	want := int64(workers * each / limit)
	if got := triggers.Load(); got != want {
		t.Fatalf("triggered %d times for %d messages with limit %d, want %d", got, workers*each, limit, want)
	}
}

func TestForgetDropsCounter(t *testing.T) {
	t.Parallel()
	d := NewDetector()
	k := expiry.Key{ChatID: 1, UserID: 2}

	d.RecordMessage(k, 5, time.Minute)
	d.RecordMessage(k, 5, time.Minute)
	d.Forget(k)

	count, _ := d.RecordMessage(k, 5, time.Minute)
	if count != 1 {
		t.Fatalf("count after forget = %d, want 1", count)
	}
}

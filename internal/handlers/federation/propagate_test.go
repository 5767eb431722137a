package federation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/db/sqlite"
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
)

func newTestFed(t *testing.T, ctx context.Context, chats []int64) (db.Client, *db.Federation) {
	t.Helper()
	client, err := sqlite.NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("cant create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	fed := &db.Federation{FedID: "fed-test", OwnerID: 100, Name: "test"}
	if err := client.CreateFederation(ctx, fed); err != nil {
		t.Fatalf("cant create federation: %v", err)
	}
	for _, chatID := range chats {
		if err := client.AddFedChat(ctx, fed.FedID, chatID); err != nil {
			t.Fatalf("cant add fed chat %d: %v", chatID, err)
		}
	}
	return client, fed
}

func TestPropagateBanFansOutToAllChats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chats := []int64{-1, -2, -3, -4, -5}
	client, fed := newTestFed(t, ctx, chats)

	var mu sync.Mutex
	banned := map[int64]bool{}
	p := NewPropagator(client, 2,
		func(_ context.Context, chatID, userID int64) error {
			mu.Lock()
			defer mu.Unlock()
			banned[chatID] = true
			return nil
		},
		nil,
	)

	report, err := p.PropagateBan(ctx, &db.FedBan{
		FedID: fed.FedID, UserID: 42, Reason: "spam", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PropagateBan failed: %v", err)
	}
	if report.Attempted != len(chats) || report.Succeeded != len(chats) || len(report.Failed) != 0 {
		t.Fatalf("report = %+v, want all %d chats succeeded", report, len(chats))
	}
	for _, chatID := range chats {
		if !banned[chatID] {
			t.Errorf("chat %d was never banned", chatID)
		}
	}

	ban, err := client.GetFedBan(ctx, fed.FedID, 42)
	if err != nil || ban == nil {
		t.Fatalf("fed ban record missing after propagation: %v", err)
	}
}

func TestPropagateBanRecordsBeforeFanout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, fed := newTestFed(t, ctx, []int64{-1, -2})

	p := NewPropagator(client, 1,
		func(_ context.Context, chatID, userID int64) error {
			// Every chat fails, the record must still exist.
			return errors.New("unreachable")
		},
		nil,
	)

	report, err := p.PropagateBan(ctx, &db.FedBan{
		FedID: fed.FedID, UserID: 42, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PropagateBan failed: %v", err)
	}
	if report.Succeeded != 0 || len(report.Failed) != 2 {
		t.Fatalf("report = %+v, want 0 succeeded, 2 failed", report)
	}
	ban, err := client.GetFedBan(ctx, fed.FedID, 42)
	if err != nil || ban == nil {
		t.Fatal("ban record must exist even when every chat action failed")
	}
}

func TestPropagateBanRejectsDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, fed := newTestFed(t, ctx, []int64{-1})

	p := NewPropagator(client, 1,
		func(context.Context, int64, int64) error { return nil },
		nil,
	)
	if _, err := p.PropagateBan(ctx, &db.FedBan{FedID: fed.FedID, UserID: 42, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("first ban failed: %v", err)
	}
	_, err := p.PropagateBan(ctx, &db.FedBan{FedID: fed.FedID, UserID: 42, CreatedAt: time.Now()})
	if !errors.Is(err, apperrors.ErrAlreadyBanned) {
		t.Fatalf("duplicate ban error = %v, want ErrAlreadyBanned", err)
	}
}

func TestPropagateUnbanClearsRecordAfterFanout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chats := []int64{-1, -2, -3}
	client, fed := newTestFed(t, ctx, chats)

	var unbans atomic.Int64
	p := NewPropagator(client, 2,
		func(context.Context, int64, int64) error { return nil },
		func(context.Context, int64, int64) error {
			unbans.Add(1)
			return nil
		},
	)
	if _, err := p.PropagateBan(ctx, &db.FedBan{FedID: fed.FedID, UserID: 42, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("ban failed: %v", err)
	}

	report, err := p.PropagateUnban(ctx, fed.FedID, 42)
	if err != nil {
		t.Fatalf("PropagateUnban failed: %v", err)
	}
	if report.Succeeded != len(chats) {
		t.Fatalf("report = %+v, want %d succeeded", report, len(chats))
	}
	if unbans.Load() != int64(len(chats)) {
		t.Fatalf("unban ran %d times, want %d", unbans.Load(), len(chats))
	}
	ban, err := client.GetFedBan(ctx, fed.FedID, 42)
	if err != nil {
		t.Fatalf("cant check ban: %v", err)
	}
	if ban != nil {
		t.Fatal("ban record must be cleared after unban fan-out")
	}
}

func TestPropagateUnbanWithoutBan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, fed := newTestFed(t, ctx, []int64{-1})

	p := NewPropagator(client, 1, nil, func(context.Context, int64, int64) error { return nil })
	_, err := p.PropagateUnban(ctx, fed.FedID, 42)
	if !errors.Is(err, apperrors.ErrNotBanned) {
		t.Fatalf("error = %v, want ErrNotBanned", err)
	}
}

func TestFanoutHonorsParallelismLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chats := make([]int64, 20)
	for i := range chats {
		chats[i] = -int64(i + 1)
	}
	client, fed := newTestFed(t, ctx, chats)

	const limit = 3
	var inFlight, peak atomic.Int64
	p := NewPropagator(client, limit,
		func(context.Context, int64, int64) error {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return nil
		},
		nil,
	)
	report, err := p.PropagateBan(ctx, &db.FedBan{FedID: fed.FedID, UserID: 42, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("PropagateBan failed: %v", err)
	}
	if report.Succeeded != len(chats) {
		t.Fatalf("succeeded = %d, want %d", report.Succeeded, len(chats))
	}
	if got := peak.Load(); got > limit {
		t.Fatalf("peak concurrency %d exceeded limit %d", got, limit)
	}
}

package sqlite

import (
	"context"
	"testing"

	"github.com/saikatwtf/Lemon/internal/db"
)

func TestWarnsAccumulateAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	const (
		chatID = int64(-100123)
		userID = int64(777)
	)

	for want := 1; want <= 3; want++ {
		count, err := client.AddWarn(ctx, chatID, userID, "spam")
		if err != nil {
			t.Fatalf("add warn %d: %v", want, err)
		}
		if count != want {
			t.Fatalf("warn count = %d, want %d", count, want)
		}
	}

	warns, err := client.GetWarns(ctx, chatID, userID)
	if err != nil {
		t.Fatalf("get warns: %v", err)
	}
	if len(warns) != 3 {
		t.Fatalf("expected 3 warns, got %d", len(warns))
	}
	for i, w := range warns {
		if w.Seq != i+1 {
			t.Fatalf("warn %d has seq %d", i, w.Seq)
		}
	}

	if err := client.ResetWarns(ctx, chatID, userID); err != nil {
		t.Fatalf("reset warns: %v", err)
	}

	count, err := client.AddWarn(ctx, chatID, userID, "again")
	if err != nil {
		t.Fatalf("add warn after reset: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after reset = %d, want 1", count)
	}
}

func TestWarnsAreScopedPerChat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if _, err := client.AddWarn(ctx, -1, 7, "a"); err != nil {
		t.Fatalf("add warn: %v", err)
	}
	count, err := client.AddWarn(ctx, -2, 7, "b")
	if err != nil {
		t.Fatalf("add warn: %v", err)
	}
	if count != 1 {
		t.Fatalf("warn in another chat must start at 1, got %d", count)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	got, err := client.GetSettings(ctx, -5)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil settings for unknown chat, got %#v", got)
	}

	want := db.DefaultSettings(-5)
	want.FloodLimit = 3
	want.FloodMode = "ban"
	if err := client.SetSettings(ctx, want); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	got, err = client.GetSettings(ctx, -5)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got == nil || got.FloodLimit != 3 || got.FloodMode != "ban" {
		t.Fatalf("unexpected settings: %#v", got)
	}
}

package sqlite

import (
	"context"
	"testing"

	"github.com/saikatwtf/Lemon/internal/db"
)

func TestGreetingsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	got, err := client.GetGreetings(ctx, -5)
	if err != nil {
		t.Fatalf("get greetings: %v", err)
	}
	if got != nil {
		t.Fatalf("unconfigured chat must yield nil, got %#v", got)
	}

	greetings := &db.Greetings{
		ChatID:         -5,
		WelcomeEnabled: true,
		WelcomeText:    "Hi {user}!",
	}
	if err := client.SetGreetings(ctx, greetings); err != nil {
		t.Fatalf("set greetings: %v", err)
	}

	got, err = client.GetGreetings(ctx, -5)
	if err != nil {
		t.Fatalf("get greetings: %v", err)
	}
	if got == nil || !got.WelcomeEnabled || got.WelcomeText != "Hi {user}!" {
		t.Fatalf("greetings round trip mismatch: %#v", got)
	}
	if got.FarewellEnabled || got.FarewellText != "" {
		t.Fatalf("farewell side must stay at defaults: %#v", got)
	}

	// upsert keeps the row unique per chat
	got.FarewellEnabled = true
	got.FarewellText = "Bye {user}."
	if err := client.SetGreetings(ctx, got); err != nil {
		t.Fatalf("update greetings: %v", err)
	}
	got, err = client.GetGreetings(ctx, -5)
	if err != nil {
		t.Fatalf("get greetings: %v", err)
	}
	if got == nil || !got.WelcomeEnabled || !got.FarewellEnabled || got.FarewellText != "Bye {user}." {
		t.Fatalf("greetings upsert mismatch: %#v", got)
	}
}

package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/saikatwtf/Lemon/internal/db"
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
)

func TestFederationMembershipRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	fed := &db.Federation{FedID: "fed-1", OwnerID: 10, Name: "alliance"}
	if err := client.CreateFederation(ctx, fed); err != nil {
		t.Fatalf("create federation: %v", err)
	}

	for _, chatID := range []int64{-1, -2, -3} {
		if err := client.AddFedChat(ctx, fed.FedID, chatID); err != nil {
			t.Fatalf("add fed chat %d: %v", chatID, err)
		}
	}

	chats, err := client.GetFedChats(ctx, fed.FedID)
	if err != nil {
		t.Fatalf("get fed chats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(chats))
	}

	byChat, err := client.GetFederationByChat(ctx, -2)
	if err != nil {
		t.Fatalf("get federation by chat: %v", err)
	}
	if byChat == nil || byChat.FedID != fed.FedID {
		t.Fatalf("unexpected federation: %#v", byChat)
	}

	if err := client.RemoveFedChat(ctx, fed.FedID, -2); err != nil {
		t.Fatalf("remove fed chat: %v", err)
	}
	byChat, err = client.GetFederationByChat(ctx, -2)
	if err != nil {
		t.Fatalf("get federation by chat after removal: %v", err)
	}
	if byChat != nil {
		t.Fatalf("chat must not belong to a federation after removal")
	}
}

func TestFedBanLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	fed := &db.Federation{FedID: "fed-2", OwnerID: 20, Name: "guard"}
	if err := client.CreateFederation(ctx, fed); err != nil {
		t.Fatalf("create federation: %v", err)
	}

	if err := client.AddFedBan(ctx, &db.FedBan{FedID: fed.FedID, UserID: 555, Reason: "spam"}); err != nil {
		t.Fatalf("add fed ban: %v", err)
	}

	ban, err := client.GetFedBan(ctx, fed.FedID, 555)
	if err != nil {
		t.Fatalf("get fed ban: %v", err)
	}
	if ban == nil || ban.Reason != "spam" {
		t.Fatalf("unexpected ban: %#v", ban)
	}

	count, err := client.CountFedBans(ctx, fed.FedID)
	if err != nil {
		t.Fatalf("count fed bans: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ban, got %d", count)
	}

	removed, err := client.RemoveFedBan(ctx, fed.FedID, 555)
	if err != nil {
		t.Fatalf("remove fed ban: %v", err)
	}
	if !removed {
		t.Fatalf("removal of existing ban must report true")
	}
	removed, err = client.RemoveFedBan(ctx, fed.FedID, 555)
	if err != nil {
		t.Fatalf("second remove fed ban: %v", err)
	}
	if removed {
		t.Fatalf("second removal must report false")
	}
}

func TestChatBelongsToAtMostOneFederation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	for _, fedID := range []string{"fed-a", "fed-b"} {
		if err := client.CreateFederation(ctx, &db.Federation{FedID: fedID, OwnerID: 1, Name: fedID}); err != nil {
			t.Fatalf("create federation %s: %v", fedID, err)
		}
	}

	if err := client.AddFedChat(ctx, "fed-a", -9); err != nil {
		t.Fatalf("add fed chat: %v", err)
	}
	// unique(chat_id) keeps the second membership out, and the caller must
	// hear about it instead of a silent success
	if err := client.AddFedChat(ctx, "fed-b", -9); !errors.Is(err, apperrors.ErrAlreadyFederated) {
		t.Fatalf("second AddFedChat error = %v, want ErrAlreadyFederated", err)
	}
	fed, err := client.GetFederationByChat(ctx, -9)
	if err != nil {
		t.Fatalf("get federation by chat: %v", err)
	}
	if fed == nil || fed.FedID != "fed-a" {
		t.Fatalf("chat migrated federations unexpectedly: %#v", fed)
	}
}

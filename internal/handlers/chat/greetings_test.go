package chat

import (
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"
)

func TestRenderGreetingSubstitutesPlaceholders(t *testing.T) {
	t.Parallel()
	member := &api.User{ID: 42, FirstName: "Ada", LastName: "L", UserName: "ada"}

	got := renderGreeting("Hi {user} ({username}, {id}), welcome to {chat}!", member, "Lab")
	want := "Hi Ada L (ada, 42), welcome to Lab!"
	if got != want {
		t.Fatalf("renderGreeting = %q, want %q", got, want)
	}
}

func TestRenderGreetingFallsBackToFirstName(t *testing.T) {
	t.Parallel()
	member := &api.User{ID: 7, FirstName: "Ada"}

	got := renderGreeting("{username}", member, "Lab")
	if got != "Ada" {
		t.Fatalf("username placeholder = %q, want first name fallback", got)
	}
}

func TestRenderGreetingLeavesPlainTextAlone(t *testing.T) {
	t.Parallel()
	member := &api.User{ID: 7, FirstName: "Ada"}

	if got := renderGreeting("no placeholders here", member, "Lab"); got != "no placeholders here" {
		t.Fatalf("renderGreeting = %q, want input unchanged", got)
	}
}

package db

import (
	"context"
)

// Client is the document store. All reads that miss return (nil, nil) so
// callers can fall back to defaults; write errors are always surfaced since
// persisted records are the source of truth.
type Client interface {
	Close() error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	// Warning methods
	GetWarns(ctx context.Context, chatID, userID int64) ([]*Warn, error)
	AddWarn(ctx context.Context, chatID, userID int64, reason string) (int, error)
	ResetWarns(ctx context.Context, chatID, userID int64) error

	// Federation methods
	CreateFederation(ctx context.Context, fed *Federation) error
	GetFederation(ctx context.Context, fedID string) (*Federation, error)
	GetFederationByChat(ctx context.Context, chatID int64) (*Federation, error)
	AddFedChat(ctx context.Context, fedID string, chatID int64) error
	RemoveFedChat(ctx context.Context, fedID string, chatID int64) error
	GetFedChats(ctx context.Context, fedID string) ([]int64, error)
	AddFedAdmin(ctx context.Context, fedID string, userID int64) error
	GetFedAdmins(ctx context.Context, fedID string) ([]int64, error)
	AddFedBan(ctx context.Context, ban *FedBan) error
	RemoveFedBan(ctx context.Context, fedID string, userID int64) (bool, error)
	GetFedBan(ctx context.Context, fedID string, userID int64) (*FedBan, error)
	CountFedBans(ctx context.Context, fedID string) (int, error)

	// Filter and note methods
	AddFilter(ctx context.Context, filter *Filter) error
	RemoveFilter(ctx context.Context, chatID int64, keyword string) (bool, error)
	GetFilters(ctx context.Context, chatID int64) ([]*Filter, error)
	SaveNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, chatID int64, name string) (bool, error)
	GetNote(ctx context.Context, chatID int64, name string) (*Note, error)
	GetNotes(ctx context.Context, chatID int64) ([]*Note, error)

	// Greeting methods
	GetGreetings(ctx context.Context, chatID int64) (*Greetings, error)
	SetGreetings(ctx context.Context, greetings *Greetings) error

	// Approval methods
	ApproveUser(ctx context.Context, chatID, userID int64) error
	DisapproveUser(ctx context.Context, chatID, userID int64) (bool, error)
	IsApproved(ctx context.Context, chatID, userID int64) (bool, error)
	ListApproved(ctx context.Context, chatID int64) ([]int64, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

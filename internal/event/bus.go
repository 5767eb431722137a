package event

import (
	"time"
)

type (
	bus struct {
		q chan Queueable
	}

	Queueable interface {
		Process()
		IsProcessed() bool
		Drop()
		IsDropped() bool
		Expired() bool
		Type() string
	}

	Base struct {
		processed bool
		dropped   bool
		expireAt  time.Time
		eventType string
	}
)

const (
	TypeFloodAction      = "flood_action"
	TypeChallengeOutcome = "challenge_outcome"
	TypeWarnIssued       = "warn_issued"
	TypeFedBan           = "fed_ban"
	TypeFedUnban         = "fed_unban"
	TypeReport           = "report"
)

// FloodAction records a flood limit breach and the action taken.
type FloodAction struct {
	*Base
	ChatID int64
	UserID int64
	Mode   string
	Count  int
}

// ChallengeOutcome records a resolved captcha challenge.
type ChallengeOutcome struct {
	*Base
	ChatID  int64
	UserID  int64
	Outcome string
	Retries int
}

// WarnIssued records a single warning; Escalated is set when the
// warning hit the chat threshold and the user was banned.
type WarnIssued struct {
	*Base
	ChatID    int64
	UserID    int64
	IssuerID  int64
	Reason    string
	Count     int
	Escalated bool
}

// FedEvent records one federation-wide ban or unban propagation.
type FedEvent struct {
	*Base
	FedID     string
	UserID    int64
	IssuerID  int64
	Reason    string
	Attempted int
	Succeeded int
	Failed    int
}

// Report records a user report addressed to the chat admins.
type Report struct {
	*Base
	ChatID     int64
	ReporterID int64
	TargetID   int64
}

func CreateBase(eventType string, expiresAt time.Time) *Base {
	return &Base{
		expireAt:  expiresAt,
		eventType: eventType,
	}
}

func (b *Base) Process() {
	b.processed = true
}

func (b *Base) IsProcessed() bool {
	return b.processed
}

func (b *Base) Drop() {
	b.dropped = true
}

func (b *Base) IsDropped() bool {
	return b.dropped
}

func (b *Base) Expired() bool {
	return time.Until(b.expireAt) < 0
}

func (b *Base) Type() string {
	return b.eventType
}

var Bus = &bus{q: make(chan Queueable, 100000)}

func (b *bus) Enqueue(event Queueable) {
	go func() { b.q <- event }()
}

func (b *bus) dequeue() Queueable {
	select {
	case q := <-b.q:
		return q
	default:
		return nil
	}
}

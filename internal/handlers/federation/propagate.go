package federation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/saikatwtf/Lemon/internal/db"
	apperrors "github.com/saikatwtf/Lemon/internal/errors"
	"github.com/saikatwtf/Lemon/internal/event"
	"github.com/saikatwtf/Lemon/internal/observability"
)

// Report sums up one propagation fan-out. A partially failed fan-out is not
// an error: the ban record is authoritative and chats that failed will catch
// up the next time the member surfaces there.
type Report struct {
	Attempted int
	Succeeded int
	Failed    []ChatError
}

type ChatError struct {
	ChatID int64
	Err    error
}

// Propagator applies federation bans across every member chat. The chat
// level ban and unban operations are injected so the fan-out logic stays
// independent of the transport.
type Propagator struct {
	db          db.Client
	parallelism int
	ban         func(ctx context.Context, chatID, userID int64) error
	unban       func(ctx context.Context, chatID, userID int64) error
}

func NewPropagator(client db.Client, parallelism int, ban, unban func(ctx context.Context, chatID, userID int64) error) *Propagator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Propagator{
		db:          client,
		parallelism: parallelism,
		ban:         ban,
		unban:       unban,
	}
}

// PropagateBan records the federation ban and then bans the member in every
// federated chat. The record is written before any chat action so a crash
// mid-fan-out still leaves the ban authoritative.
func (p *Propagator) PropagateBan(ctx context.Context, ban *db.FedBan) (*Report, error) {
	existing, err := p.db.GetFedBan(ctx, ban.FedID, ban.UserID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant check existing fed ban")
	}
	if existing != nil {
		return nil, apperrors.ErrAlreadyBanned
	}
	if err := p.db.AddFedBan(ctx, ban); err != nil {
		return nil, errors.WithMessage(err, "cant record fed ban")
	}

	chats, err := p.db.GetFedChats(ctx, ban.FedID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant list fed chats")
	}

	report := p.fanOut(ctx, chats, ban.UserID, p.ban, "ban")
	event.Bus.Enqueue(&event.FedEvent{
		Base:      event.CreateBase(event.TypeFedBan, time.Now().Add(time.Hour)),
		FedID:     ban.FedID,
		UserID:    ban.UserID,
		Reason:    ban.Reason,
		Attempted: report.Attempted,
		Succeeded: report.Succeeded,
		Failed:    len(report.Failed),
	})
	return report, nil
}

// PropagateUnban lifts the ban in every federated chat and clears the record
// last, so an interrupted fan-out can simply be retried.
func (p *Propagator) PropagateUnban(ctx context.Context, fedID string, userID int64) (*Report, error) {
	existing, err := p.db.GetFedBan(ctx, fedID, userID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant check existing fed ban")
	}
	if existing == nil {
		return nil, apperrors.ErrNotBanned
	}

	chats, err := p.db.GetFedChats(ctx, fedID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant list fed chats")
	}

	report := p.fanOut(ctx, chats, userID, p.unban, "unban")
	if _, err := p.db.RemoveFedBan(ctx, fedID, userID); err != nil {
		return report, errors.WithMessage(err, "cant clear fed ban record")
	}
	event.Bus.Enqueue(&event.FedEvent{
		Base:      event.CreateBase(event.TypeFedUnban, time.Now().Add(time.Hour)),
		FedID:     fedID,
		UserID:    userID,
		Attempted: report.Attempted,
		Succeeded: report.Succeeded,
		Failed:    len(report.Failed),
	})
	return report, nil
}

// fanOut runs op against every chat with bounded parallelism. Individual
// failures are collected, never propagated, so one unreachable chat cannot
// stop the rest.
func (p *Propagator) fanOut(ctx context.Context, chats []int64, userID int64, op func(ctx context.Context, chatID, userID int64) error, action string) *Report {
	ctx, span := otel.Tracer("federation").Start(ctx, "fan-out")
	defer span.End()
	span.SetAttributes(
		attribute.String("action", action),
		attribute.Int("chats", len(chats)),
	)

	report := &Report{Attempted: len(chats)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, chatID := range chats {
		chatID := chatID
		g.Go(func() error {
			err := op(gctx, chatID, userID)
			observability.RecordFedAction(action, err == nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, ChatError{ChatID: chatID, Err: err})
			} else {
				report.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

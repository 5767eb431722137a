package moderation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/saikatwtf/Lemon/internal/config"
	"github.com/saikatwtf/Lemon/internal/event"
	"github.com/saikatwtf/Lemon/internal/observability"
)

// AddWarning persists one warning and escalates to a ban when the count
// reaches the chat threshold. The count and the ban are not one transaction:
// a crash between them leaves the warnings recorded and the next warning
// escalates again, which is the safe direction.
func (m *Moderation) AddWarning(ctx context.Context, chatID, userID, issuerID int64, reason string) (count int, escalated bool, err error) {
	count, err = m.GetService().GetDB().AddWarn(ctx, chatID, userID, reason)
	if err != nil {
		return 0, false, errors.WithMessage(err, "cant add warn")
	}

	threshold := config.Get().Warnings.Threshold
	if threshold > 0 && count >= threshold {
		if err := m.ops.BanUser(ctx, chatID, userID, 0); err != nil {
			return count, false, errors.WithMessage(err, "cant ban on warn threshold")
		}
		escalated = true
		observability.RecordWarnEscalation()
		if err := m.GetService().GetDB().ResetWarns(ctx, chatID, userID); err != nil {
			return count, true, errors.WithMessage(err, "cant reset warns after escalation")
		}
	}

	event.Bus.Enqueue(&event.WarnIssued{
		Base:      event.CreateBase(event.TypeWarnIssued, time.Now().Add(time.Hour)),
		ChatID:    chatID,
		UserID:    userID,
		IssuerID:  issuerID,
		Reason:    reason,
		Count:     count,
		Escalated: escalated,
	})
	return count, escalated, nil
}

package moderation

import (
	"context"
	"time"

	"github.com/saikatwtf/Lemon/internal/db"
	"github.com/saikatwtf/Lemon/internal/expiry"
)

// counterIdleTTL bounds how long an untouched counter stays in memory. The
// flood window itself lives inside the counter, the TTL is only garbage
// collection.
const counterIdleTTL = 10 * time.Minute

type floodCounter struct {
	count       int
	windowStart time.Time
}

// Detector counts messages per chat member inside a fixed window anchored at
// the first message. Counters live only in memory; losing them on restart
// just restarts the window.
type Detector struct {
	counters *expiry.Store[floodCounter]
}

func NewDetector() *Detector {
	return &Detector{counters: expiry.NewStore[floodCounter]()}
}

func (d *Detector) Store() *expiry.Store[floodCounter] {
	return d.counters
}

// RecordMessage bumps the member's counter and reports the new count plus
// whether this message crossed the limit. The increment, the limit check and
// the counter reset happen under one lock, so for any crossing exactly one
// caller observes triggered=true no matter how many messages race.
func (d *Detector) RecordMessage(k expiry.Key, limit int, window time.Duration) (count int, triggered bool) {
	if limit <= 0 {
		return 0, false
	}
	now := time.Now()
	d.counters.Update(k, counterIdleTTL, func(c floodCounter, found bool) floodCounter {
		if !found || now.Sub(c.windowStart) > window {
			c = floodCounter{windowStart: now}
		}
		c.count++
		count = c.count
		if count >= limit {
			triggered = true
			c.count = 0
			c.windowStart = now
		}
		return c
	})
	return count, triggered
}

// Forget drops the member's counter, e.g. when they leave the chat.
func (d *Detector) Forget(k expiry.Key) {
	d.counters.Remove(k)
}

// applyFloodAction executes the configured penalty for a flooding member.
func (m *Moderation) applyFloodAction(ctx context.Context, settings *db.Settings, chatID, userID int64) error {
	switch settings.FloodMode {
	case db.FloodModeBan:
		return m.ops.BanUser(ctx, chatID, userID, 0)
	case db.FloodModeKick:
		return m.ops.KickUser(ctx, chatID, userID)
	default:
		return m.ops.MuteUser(ctx, chatID, userID, time.Now().Add(settings.GetFloodTime()))
	}
}

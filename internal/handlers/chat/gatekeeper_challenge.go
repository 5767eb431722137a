package chat

import (
	"context"
	"time"

	apperrors "github.com/saikatwtf/Lemon/internal/errors"
	"github.com/saikatwtf/Lemon/internal/expiry"
	"github.com/saikatwtf/Lemon/internal/scheduler"
)

type ChallengeState string

const (
	ChallengeIssued         ChallengeState = "issued"
	ChallengeAwaitingAnswer ChallengeState = "awaiting_answer"
	ChallengeVerified       ChallengeState = "verified"
	ChallengeExpired        ChallengeState = "expired"
)

// Challenge is one pending captcha. It lives only in memory: a restart
// simply drops the gate and the member can be re-challenged.
type Challenge struct {
	Code     string
	State    ChallengeState
	PromptID int
	Username string
	Retries  int
	IssuedAt time.Time
}

// ChallengeService owns the challenge lifecycle. Verification and timeout
// race for the same entry; the store's removal commit guarantees exactly one
// of them resolves the challenge.
type ChallengeService struct {
	store *expiry.Store[Challenge]
	sched *scheduler.Scheduler

	onVerified func(k expiry.Key, ch Challenge)
	onExpired  func(k expiry.Key, ch Challenge)
}

func NewChallengeService(onVerified, onExpired func(k expiry.Key, ch Challenge)) *ChallengeService {
	return &ChallengeService{
		store:      expiry.NewStore[Challenge](),
		sched:      scheduler.New(),
		onVerified: onVerified,
		onExpired:  onExpired,
	}
}

// Issue creates a challenge for the member and arms its timeout. A member
// with a live challenge cannot get a second one.
func (cs *ChallengeService) Issue(k expiry.Key, code, username string, promptID int, timeout time.Duration) error {
	ch := Challenge{
		Code:     code,
		State:    ChallengeIssued,
		PromptID: promptID,
		Username: username,
		IssuedAt: time.Now(),
	}
	// Store lifetime exceeds the timer so the timer always finds its entry;
	// the sweeper only collects entries whose timer was lost.
	if !cs.store.PutIfAbsent(k, ch, timeout+time.Minute) {
		return apperrors.ErrAlreadyPending
	}
	cs.sched.After(k, timeout, func() { cs.expire(k) })
	return nil
}

// BeginAnswer marks the first interaction with the challenge.
func (cs *ChallengeService) BeginAnswer(k expiry.Key) bool {
	return cs.store.Mutate(k, func(ch *Challenge) {
		if ch.State == ChallengeIssued {
			ch.State = ChallengeAwaitingAnswer
		}
	})
}

// SubmitAnswer checks the answer against the pending challenge. A wrong
// answer bumps the retry count and keeps the challenge alive; retries are
// unlimited, only the timeout ends them. Returns solved=true only for the
// one submission that resolves the challenge.
func (cs *ChallengeService) SubmitAnswer(k expiry.Key, answer string) (solved, pending bool) {
	ch, found := cs.store.Get(k)
	if !found {
		return false, false
	}
	if !answerMatches(ch.Code, answer) {
		cs.store.Mutate(k, func(ch *Challenge) {
			ch.Retries++
			if ch.State == ChallengeIssued {
				ch.State = ChallengeAwaitingAnswer
			}
		})
		return false, true
	}

	ch, committed := cs.store.Remove(k)
	if !committed {
		// Timeout got there first.
		return false, false
	}
	cs.sched.Cancel(k)
	ch.State = ChallengeVerified
	if cs.onVerified != nil {
		cs.onVerified(k, ch)
	}
	return true, false
}

func (cs *ChallengeService) expire(k expiry.Key) {
	ch, committed := cs.store.Remove(k)
	if !committed {
		return
	}
	ch.State = ChallengeExpired
	if cs.onExpired != nil {
		cs.onExpired(k, ch)
	}
}

// Revoke drops the challenge without an outcome, e.g. when the member
// leaves or an admin approves them manually.
func (cs *ChallengeService) Revoke(k expiry.Key) bool {
	cs.sched.Cancel(k)
	_, committed := cs.store.Remove(k)
	return committed
}

func (cs *ChallengeService) Pending(k expiry.Key) (Challenge, bool) {
	return cs.store.Get(k)
}

func (cs *ChallengeService) Start(ctx context.Context) error {
	return cs.store.Start(ctx)
}

func (cs *ChallengeService) Stop(ctx context.Context) error {
	cs.sched.CancelAll()
	return cs.store.Stop(ctx)
}

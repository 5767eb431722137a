package chat

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/saikatwtf/Lemon/internal/errors"
	"github.com/saikatwtf/Lemon/internal/expiry"
)

func TestIssueRejectsDuplicateChallenge(t *testing.T) {
	t.Parallel()
	cs := NewChallengeService(nil, nil)
	k := expiry.Key{ChatID: 1, UserID: 2}

	if err := cs.Issue(k, "ABC234", "alice", 10, time.Minute); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	if err := cs.Issue(k, "XYZ789", "alice", 11, time.Minute); err != apperrors.ErrAlreadyPending {
		t.Fatalf("second issue error = %v, want ErrAlreadyPending", err)
	}
}

func TestSubmitAnswerVerifies(t *testing.T) {
	t.Parallel()
	var verified atomic.Int64
	cs := NewChallengeService(func(k expiry.Key, ch Challenge) {
		if ch.State != ChallengeVerified {
			t.Errorf("state = %s, want verified", ch.State)
		}
		verified.Add(1)
	}, nil)
	k := expiry.Key{ChatID: 1, UserID: 2}

	if err := cs.Issue(k, "ABC234", "alice", 10, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	solved, pending := cs.SubmitAnswer(k, "  abc234 ")
	if !solved || pending {
		t.Fatalf("SubmitAnswer = (%v, %v), want (true, false)", solved, pending)
	}
	if verified.Load() != 1 {
		t.Fatalf("verified callback ran %d times, want 1", verified.Load())
	}
	if _, stillPending := cs.Pending(k); stillPending {
		t.Fatal("challenge should be gone after verification")
	}
	if solved, pending := cs.SubmitAnswer(k, "ABC234"); solved || pending {
		t.Fatal("resolved challenge must reject further submissions")
	}
	if err := cs.Issue(k, "XYZ789", "alice", 11, time.Minute); err != nil {
		t.Fatalf("re-issue after verification failed: %v", err)
	}
}

func TestSubmitAnswerRetriesAreUnlimited(t *testing.T) {
	t.Parallel()
	cs := NewChallengeService(nil, nil)
	k := expiry.Key{ChatID: 1, UserID: 2}

	if err := cs.Issue(k, "ABC234", "alice", 10, time.Minute); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		solved, pending := cs.SubmitAnswer(k, "nope")
		if solved || !pending {
			t.Fatalf("attempt %d: SubmitAnswer = (%v, %v), want (false, true)", i, solved, pending)
		}
	}
	ch, ok := cs.Pending(k)
	if !ok {
		t.Fatal("challenge must survive wrong answers")
	}
	if ch.Retries != 50 {
		t.Fatalf("retries = %d, want 50", ch.Retries)
	}
	if ch.State != ChallengeAwaitingAnswer {
		t.Fatalf("state = %s, want awaiting_answer", ch.State)
	}

	if solved, _ := cs.SubmitAnswer(k, "ABC234"); !solved {
		t.Fatal("correct answer after wrong ones must still verify")
	}
}

func TestTimeoutExpiresChallenge(t *testing.T) {
	t.Parallel()
	expired := make(chan Challenge, 1)
	cs := NewChallengeService(nil, func(k expiry.Key, ch Challenge) {
		expired <- ch
	})
	k := expiry.Key{ChatID: 1, UserID: 2}

	if err := cs.Issue(k, "ABC234", "alice", 10, 20*time.Millisecond); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	select {
	case ch := <-expired:
		if ch.State != ChallengeExpired {
			t.Fatalf("state = %s, want expired", ch.State)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}
	if solved, pending := cs.SubmitAnswer(k, "ABC234"); solved || pending {
		t.Fatal("answer after expiry must be a no-op")
	}
}

func TestVerifyAndTimeoutResolveExactlyOnce(t *testing.T) {
	t.Parallel()

	for round := 0; round < 100; round++ {
		var outcomes atomic.Int64
		cs := NewChallengeService(
			func(expiry.Key, Challenge) { outcomes.Add(1) },
			func(expiry.Key, Challenge) { outcomes.Add(1) },
		)
		k := expiry.Key{ChatID: 3, UserID: int64(round)}

		if err := cs.Issue(k, "ABC234", "bob", 10, time.Millisecond); err != nil {
			t.Fatalf("round %d: issue failed: %v", round, err)
		}

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cs.SubmitAnswer(k, "ABC234")
			}()
		}
		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		if got := outcomes.Load(); got != 1 {
			t.Fatalf("round %d: %d outcomes, want exactly 1", round, got)
		}
	}
}

func TestRevokeSilencesChallenge(t *testing.T) {
	t.Parallel()
	var fired atomic.Int64
	cs := NewChallengeService(
		func(expiry.Key, Challenge) { fired.Add(1) },
		func(expiry.Key, Challenge) { fired.Add(1) },
	)
	k := expiry.Key{ChatID: 1, UserID: 2}

	if err := cs.Issue(k, "ABC234", "alice", 10, 20*time.Millisecond); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !cs.Revoke(k) {
		t.Fatal("revoke of a live challenge must report true")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("callbacks fired %d times after revoke, want 0", fired.Load())
	}
}

func TestGenerateCaptchaCode(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := generateCaptchaCode(6)
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(captchaCharset, r) {
				t.Fatalf("code %q contains %q outside the charset", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 50 {
		t.Fatalf("only %d distinct codes out of 100, generator looks broken", len(seen))
	}
}

func TestAnswerMatches(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code, answer string
		want         bool
	}{
		{"ABC234", "ABC234", true},
		{"ABC234", "abc234", true},
		{"ABC234", "  Abc234\n", true},
		{"ABC234", "ABC23", false},
		{"ABC234", "", false},
		{"ABC234", "ABC 234", false},
	}
	for _, tc := range cases {
		if got := answerMatches(tc.code, tc.answer); got != tc.want {
			t.Errorf("answerMatches(%q, %q) = %v, want %v", tc.code, tc.answer, got, tc.want)
		}
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

func newOrchestrator(t *testing.T, c llm.Completer) *ChatOrchestrator {
	t.Helper()
	db := newTestDB(t)
	return &ChatOrchestrator{DB: db, Ledger: &Ledger{DB: db}, LLM: c, MaxMessageRunes: 2000, HistoryTurns: 10}
}

func TestSend_SuccessDebitsAndPersists(t *testing.T) {
	fc := &fakeCompleter{reply: "Try a spicy chicken stir fry."}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 5)
	sess := seedSession(t, o.DB, "c1")

	res, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: sess.SessionID, Message: "spicy chicken ideas?"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Fallback || res.Text != "Try a spicy chicken stir fry." || res.CreditsRemaining != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := balanceOf(t, o.DB, "c1"); got != 4 {
		t.Fatalf("balance = %d, want 4", got)
	}

	msgs, err := repo.ListMessagesPage(context.Background(), o.DB, sess.ID, 0, 10)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("messages = %d err=%v, want 2", len(msgs), err)
	}
	if msgs[0].Sender != domain.SenderUser || msgs[1].Sender != domain.SenderAI {
		t.Fatalf("order: %s then %s", msgs[0].Sender, msgs[1].Sender)
	}
	if res.MessageID != msgs[1].ID {
		t.Fatalf("MessageID %q should be the AI message %q", res.MessageID, msgs[1].ID)
	}

	got, _ := repo.GetSession(context.Background(), o.DB, sess.SessionID, "c1")
	if got.MessageCount != 2 {
		t.Fatalf("message_count = %d, want 2", got.MessageCount)
	}
	if got.Title != "Chicken Spicy Recipe" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestSend_ProviderFailureRefundsOnce(t *testing.T) {
	fc := &fakeCompleter{err: rateLimited("pasta please")}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 3)
	sess := seedSession(t, o.DB, "c1")

	res, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: sess.SessionID, Message: "pasta please"})
	pe, ok := llm.AsProviderError(err)
	if !ok || !pe.RateLimited() {
		t.Fatalf("expected rate-limited provider error, got %v", err)
	}
	if res == nil || !res.Fallback || res.CreditsRemaining != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Text, "Pasta") {
		t.Fatalf("fallback text should match the message, got %q", res.Text)
	}
	if got := balanceOf(t, o.DB, "c1"); got != 3 {
		t.Fatalf("balance = %d, want 3 (refunded)", got)
	}

	msgs, _ := repo.ListMessagesPage(context.Background(), o.DB, sess.ID, 0, 10)
	if len(msgs) != 2 || !msgs[1].Fallback {
		t.Fatalf("fallback turn not persisted: %+v", msgs)
	}
}

func TestSend_PermanentFailureAlsoRefunds(t *testing.T) {
	fc := &fakeCompleter{err: &llm.ProviderError{Kind: llm.Permanent, Status: 400, Fallback: "canned"}}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 1)

	res, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "hello"})
	if _, ok := llm.AsProviderError(err); !ok {
		t.Fatalf("expected provider error, got %v", err)
	}
	if res.Text != "canned" || res.CreditsRemaining != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSend_NoCreditsNeverCallsProvider(t *testing.T) {
	fc := &fakeCompleter{reply: "x"}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 0)

	_, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "hi"})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if fc.count() != 0 {
		t.Fatalf("provider called %d times", fc.count())
	}
	if got := balanceOf(t, o.DB, "c1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestSend_ValidatesMessage(t *testing.T) {
	fc := &fakeCompleter{reply: "x"}
	o := newOrchestrator(t, fc)
	o.MaxMessageRunes = 5
	seedCustomer(t, o.DB, "c1", 2)

	if _, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "ñññññ"}); err != nil {
		t.Fatalf("five runes should pass, got %v", err)
	}
	if _, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "toolong"}); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if got := balanceOf(t, o.DB, "c1"); got != 1 {
		t.Fatalf("balance = %d, want 1", got)
	}
}

func TestSend_ForeignSessionIsNotFound(t *testing.T) {
	fc := &fakeCompleter{reply: "x"}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 2)
	seedCustomer(t, o.DB, "c2", 2)
	sess := seedSession(t, o.DB, "c2")

	_, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: sess.SessionID, Message: "hi"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if got := balanceOf(t, o.DB, "c1"); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}
}

func TestSend_IdempotentReplayDoesNotDebit(t *testing.T) {
	fc := &fakeCompleter{reply: "Lemon risotto."}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 5)
	sess := seedSession(t, o.DB, "c1")
	in := SendInput{CustomerID: "c1", SessionID: sess.SessionID, Message: "risotto?", IdempotencyKey: "k-1"}

	first, err := o.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("first Send: %v", err)
	}
	second, err := o.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("replay Send: %v", err)
	}
	if !second.Replayed || second.MessageID != first.MessageID || second.Text != first.Text {
		t.Fatalf("replay mismatch: first=%+v second=%+v", first, second)
	}
	if fc.count() != 1 {
		t.Fatalf("provider called %d times, want 1", fc.count())
	}
	if got := balanceOf(t, o.DB, "c1"); got != 4 {
		t.Fatalf("balance = %d, want 4", got)
	}
}

func TestSend_IdempotencyKeyIsScopedToSession(t *testing.T) {
	fc := &fakeCompleter{reply: "Try a frittata."}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 5)
	a := seedSession(t, o.DB, "c1")
	b := seedSession(t, o.DB, "c1")

	first, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: a.SessionID, Message: "eggs?", IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("Send in a: %v", err)
	}
	other, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: b.SessionID, Message: "eggs?", IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("Send in b: %v", err)
	}
	if other.Replayed || other.MessageID == first.MessageID || other.SessionID != b.SessionID {
		t.Fatalf("key reused across sessions must not replay: first=%+v other=%+v", first, other)
	}
	if fc.count() != 2 || balanceOf(t, o.DB, "c1") != 3 {
		t.Fatalf("calls=%d balance=%d, want 2 and 3", fc.count(), balanceOf(t, o.DB, "c1"))
	}
	if n, _ := repo.CountMessages(context.Background(), o.DB, b.ID); n != 2 {
		t.Fatalf("session b messages = %d, want 2", n)
	}
}

func TestSend_HistoryAndProfile(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 5)
	if err := repo.UpdateProfile(context.Background(), o.DB, "c1", domain.Profile{SkillLevel: "beginner", Allergies: []string{"peanuts"}}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	sess := seedSession(t, o.DB, "c1")

	for _, m := range []string{"first", "second"} {
		if _, err := o.Send(context.Background(), SendInput{CustomerID: "c1", SessionID: sess.SessionID, Message: m}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	last := fc.reqs[len(fc.reqs)-1]
	if len(last.History) != 2 || last.History[0].Text != "first" || last.History[1].Sender != domain.SenderAI {
		t.Fatalf("history from session: %+v", last.History)
	}
	if last.Profile == nil || last.Profile.SkillLevel != "beginner" || last.Profile.Allergies[0] != "peanuts" {
		t.Fatalf("stored profile not used: %+v", last.Profile)
	}

	// Without a session the caller's history and profile are used verbatim.
	override := &domain.Profile{SkillLevel: "advanced"}
	hist := []llm.Turn{{Sender: domain.SenderUser, Text: "earlier"}}
	if _, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "now", History: hist, Profile: override}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	last = fc.reqs[len(fc.reqs)-1]
	if len(last.History) != 1 || last.Profile.SkillLevel != "advanced" {
		t.Fatalf("request history/profile ignored: %+v", last)
	}
}

func TestSend_ConcurrentDebitsNeverOverspend(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	o := newOrchestrator(t, fc)
	seedCustomer(t, o.DB, "c1", 3)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, low int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Send(context.Background(), SendInput{CustomerID: "c1", Message: "hi"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientCredits):
				low++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 3 || low != 5 {
		t.Fatalf("ok=%d insufficient=%d, want 3 and 5", ok, low)
	}
	if got := balanceOf(t, o.DB, "c1"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

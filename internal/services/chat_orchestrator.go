// Package services – ChatOrchestrator
//
// One AI turn: validate, resolve the session, debit one credit, call the
// model, then either persist the exchange or refund the credit and answer
// with canned fallback text. The refund happens in exactly one place
// (spend) after the provider call has resolved, so a failed turn is refunded
// once and a successful turn never is.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

// ChatOrchestrator runs credit-metered chat turns.
type ChatOrchestrator struct {
	DB     *gorm.DB
	Ledger *Ledger
	LLM    llm.Completer

	// MaxMessageRunes rejects longer messages; 0 disables the check.
	MaxMessageRunes int
	// HistoryTurns is how many stored messages are sent as context.
	HistoryTurns int
	// IdempotencyTTL is how long a replay key stays valid.
	IdempotencyTTL time.Duration
}

// SendInput is one chat turn request.
type SendInput struct {
	CustomerID string
	// SessionID, when set, selects a stored session: its messages are the
	// history and the turn is appended to it.
	SessionID string
	Message   string
	// History is used only when SessionID is empty.
	History []llm.Turn
	// Profile overrides the stored profile when non-nil.
	Profile        *domain.Profile
	IdempotencyKey string
}

// TurnResult is the outcome of a turn. Fallback is set when Text is canned.
type TurnResult struct {
	Text             string
	Fallback         bool
	CreditsRemaining int
	SessionID        string
	MessageID        string
	Model            string
	TokensUsed       int
	Replayed         bool
}

// Send executes one turn. On a provider failure it returns both a result
// carrying the fallback text and refunded balance, and the *llm.ProviderError.
// Debit failures (ErrInsufficientCredits, ErrCustomerNotFound) return a nil
// result and no provider call is made.
func (o *ChatOrchestrator) Send(ctx context.Context, in SendInput) (*TurnResult, error) {
	ctx, span := otel.Tracer("services/ChatOrchestrator").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("customer.id", in.CustomerID),
			attribute.String("session.id", in.SessionID),
		))
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}
	if o.MaxMessageRunes > 0 && utf8.RuneCountInString(msg) > o.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}

	var sess *domain.ChatSession
	if in.SessionID != "" {
		s, err := repo.GetSession(ctx, o.DB, in.SessionID, in.CustomerID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if err != nil {
			return nil, err
		}
		sess = s
		if res, ok, err := o.replay(ctx, in, sess); err != nil || ok {
			return res, err
		}
	}

	req, err := o.buildRequest(ctx, in, sess, msg)
	if err != nil {
		return nil, err
	}

	comp, balance, perr, err := spend(ctx, o.Ledger, o.LLM, in.CustomerID, req)
	if err != nil {
		return nil, err
	}

	// The credit is spent (or refunded); persistence must not be abandoned
	// because the client went away.
	pctx := context.WithoutCancel(ctx)
	res := &TurnResult{CreditsRemaining: balance}
	if sess != nil {
		res.SessionID = sess.SessionID
	}

	if perr != nil {
		span.SetStatus(codes.Error, perr.Kind.String())
		res.Text, res.Fallback = perr.Fallback, true
		if sess != nil {
			ai := &domain.Message{Text: perr.Fallback, Fallback: true, Model: perr.Model}
			if _, err := AppendExchange(pctx, o.DB, sess, Exchange{UserText: msg, AI: ai}); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("session_id", sess.SessionID).Msg("persist fallback turn failed")
			} else {
				res.MessageID = ai.ID
			}
		}
		return res, perr
	}

	res.Text, res.Model, res.TokensUsed = comp.Text, comp.Model, comp.TokensUsed
	if sess != nil {
		ai := &domain.Message{Text: comp.Text, Model: comp.Model, TokensUsed: comp.TokensUsed}
		if _, err := AppendExchange(pctx, o.DB, sess, Exchange{UserText: msg, AI: ai}); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("session_id", sess.SessionID).Msg("persist turn failed after debit")
			return res, nil
		}
		res.MessageID = ai.ID
		if in.IdempotencyKey != "" {
			_, err := repo.CreateIdempotency(pctx, o.DB, in.CustomerID, sess.SessionID, in.IdempotencyKey, ai.ID, http.StatusOK, o.ttl())
			if err != nil && !errors.Is(err, repo.ErrDuplicate) {
				log.Ctx(ctx).Warn().Err(err).Msg("store idempotency record failed")
			}
		}
	}
	return res, nil
}

// replay answers a retried turn from its stored AI message without a debit.
// Keys are scoped to the resolved session, however the request named it.
func (o *ChatOrchestrator) replay(ctx context.Context, in SendInput, sess *domain.ChatSession) (*TurnResult, bool, error) {
	if in.IdempotencyKey == "" {
		return nil, false, nil
	}
	rec, err := repo.GetIdempotency(ctx, o.DB, in.CustomerID, sess.SessionID, in.IdempotencyKey, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, err := repo.GetMessage(ctx, o.DB, rec.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	balance, err := o.Ledger.Balance(ctx, in.CustomerID)
	if err != nil {
		return nil, false, err
	}
	return &TurnResult{
		Text:             m.Text,
		Fallback:         m.Fallback,
		CreditsRemaining: balance,
		SessionID:        sess.SessionID,
		MessageID:        m.ID,
		Model:            m.Model,
		TokensUsed:       m.TokensUsed,
		Replayed:         true,
	}, true, nil
}

func (o *ChatOrchestrator) buildRequest(ctx context.Context, in SendInput, sess *domain.ChatSession, msg string) (llm.Request, error) {
	req := llm.Request{Message: msg, History: in.History}
	if sess != nil {
		n := o.HistoryTurns
		if n <= 0 {
			n = 10
		}
		stored, err := repo.RecentMessages(ctx, o.DB, sess.ID, n)
		if err != nil {
			return req, err
		}
		req.History = make([]llm.Turn, 0, len(stored))
		for _, m := range stored {
			req.History = append(req.History, llm.Turn{Sender: m.Sender, Text: m.Text})
		}
	}
	p, err := resolveProfile(ctx, o.DB, in.CustomerID, in.Profile)
	if err != nil {
		return req, err
	}
	req.Profile = p
	return req, nil
}

func (o *ChatOrchestrator) ttl() time.Duration {
	if o.IdempotencyTTL > 0 {
		return o.IdempotencyTTL
	}
	return 24 * time.Hour
}

// resolveProfile returns the override when given, else the stored profile.
func resolveProfile(ctx context.Context, db *gorm.DB, customerID string, override *domain.Profile) (*llm.Profile, error) {
	var p domain.Profile
	if override != nil {
		p = *override
	} else {
		c, err := repo.GetCustomer(ctx, db, customerID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		if err != nil {
			return nil, err
		}
		p = c.Profile
	}
	return &llm.Profile{
		SkillLevel: p.SkillLevel,
		Dietary:    p.DietaryPreferences,
		Allergies:  p.Allergies,
		Likes:      p.FavoriteIngredients,
		Dislikes:   p.DislikedIngredients,
	}, nil
}

// spend debits one credit and runs the completion. When the provider fails
// it refunds the credit exactly once and returns the provider error with the
// balance after the refund. err is non-nil only when the debit itself failed,
// in which case the provider is never called.
func spend(ctx context.Context, ledger *Ledger, c llm.Completer, customerID string, req llm.Request) (comp *llm.Completion, balance int, perr *llm.ProviderError, err error) {
	balance, err = ledger.DebitOne(ctx, customerID)
	if err != nil {
		return nil, 0, nil, err
	}

	comp, cerr := c.Complete(ctx, req)
	if cerr == nil {
		return comp, balance, nil, nil
	}

	pe, ok := llm.AsProviderError(cerr)
	if !ok {
		pe = &llm.ProviderError{Kind: llm.Transient, Err: cerr, Fallback: llm.FallbackResponse(req.Message)}
	}
	observability.LLMFallbacks.Inc()

	lg := log.Ctx(ctx).With().Str("customer_id", customerID).Str("kind", pe.Kind.String()).Int("status", pe.Status).Logger()
	level := zerolog.WarnLevel
	if pe.Kind == llm.Permanent {
		level = zerolog.ErrorLevel
	}
	lg.WithLevel(level).Err(pe.Err).Msg("completion failed, refunding credit")

	refunded, rerr := ledger.Credit(context.WithoutCancel(ctx), customerID, 1, SourceRefund)
	if rerr != nil {
		lg.Error().Err(rerr).Msg("refund failed")
		return nil, balance, pe, nil
	}
	return nil, refunded, pe, nil
}

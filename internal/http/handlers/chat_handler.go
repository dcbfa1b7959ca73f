// Chat turn HTTP handlers.
//
// This file exposes the credit-metered AI endpoints:
//   - POST /chat                   (one turn, stateless or against session_id)
//   - POST /sessions/{id}/messages (one turn appended to a stored session)
//
// Every turn costs one credit. Failures of the model provider are refunded
// by the service and answered with a canned fallback reply, so the response
// body carries fallback_response and the refunded balance even on 429/500.
//
// Idempotency:
// A retried turn with the same Idempotency-Key in the same session is answered
// from the stored reply without a second debit and sets
// `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/http/middleware"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/services"
)

//
// DTOs
//

// HistoryTurn is one prior message supplied by a stateless client.
type HistoryTurn struct {
	Sender  string `json:"sender"  example:"user"`
	Message string `json:"message" example:"I have chicken and rice"`
}

// ChatRequest is the JSON payload for one chat turn.
//
// ConversationHistory is used only without a session; a stored session
// supplies its own history. UserProfile overrides the stored profile.
type ChatRequest struct {
	SessionID           string          `json:"session_id,omitempty"           example:"6f1c7d2e-8a7b-4c36-9d51-0f3b2a9e4c11"`
	Message             string          `json:"message"                        binding:"required" example:"I have chicken and want something spicy"`
	ConversationHistory []HistoryTurn   `json:"conversation_history,omitempty"`
	UserProfile         *domain.Profile `json:"user_profile,omitempty"`
}

// PostMessageRequest is the JSON payload for a turn inside a session.
type PostMessageRequest struct {
	Message string `json:"message" binding:"required" example:"Make it vegetarian please"`
}

// ChatResponse is the body of a successful turn.
type ChatResponse struct {
	Success          bool   `json:"success" example:"true"`
	Message          string `json:"message"`
	CreditsRemaining int    `json:"credits_remaining" example:"4"`
	SessionID        string `json:"session_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
	Model            string `json:"model,omitempty" example:"gemini-1.5-flash"`
	TokensUsed       int    `json:"tokens_used,omitempty"`
}

// ChatFailureResponse is the body of a turn the provider could not answer.
// The credit has already been refunded.
type ChatFailureResponse struct {
	Success          bool   `json:"success" example:"false"`
	Code             string `json:"code" example:"provider_rate_limited"`
	Message          string `json:"message" example:"Service temporarily busy. Please try again shortly."`
	FallbackResponse string `json:"fallback_response"`
	CreditsRemaining int    `json:"credits_remaining" example:"5"`
	SessionID        string `json:"session_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func toTurns(in []HistoryTurn) []llm.Turn {
	if len(in) == 0 {
		return nil
	}
	out := make([]llm.Turn, 0, len(in))
	for _, t := range in {
		text := sanitizeContent(t.Message)
		if text == "" {
			continue
		}
		sender := domain.SenderAI
		if strings.EqualFold(t.Sender, domain.SenderUser) {
			sender = domain.SenderUser
		}
		out = append(out, llm.Turn{Sender: sender, Text: text})
	}
	return out
}

//
// Handlers
//

// PostChat godoc
// @ID          postChat
// @Summary     Send a chat message
// @Description Debits one credit and asks the AI chef. On provider failure the credit is refunded and a fallback reply is returned with status 429 (rate limited) or 500.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (requires session_id)"
// @Param       body             body    handlers.ChatRequest  true  "Chat turn"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse       "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse       "Insufficient credits"
// @Failure     404  {object}  handlers.ErrorResponse       "Session not found"
// @Failure     429  {object}  handlers.ChatFailureResponse "Provider rate limited (credit refunded)"
// @Failure     500  {object}  handlers.ChatFailureResponse "Provider failure (credit refunded)"
// @Router      /chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.Query("session_id"))
	}
	if sessionID != "" {
		if _, err := uuid.Parse(sessionID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id must be a UUID")
			return
		}
	}

	h.runTurn(c, services.SendInput{
		CustomerID: cid,
		SessionID:  sessionID,
		Message:    req.Message,
		History:    toTurns(req.ConversationHistory),
		Profile:    req.UserProfile,
	})
}

// PostSessionMessage godoc
// @ID          postSessionMessage
// @Summary     Send a message in a session
// @Description Same as POST /chat with the session taken from the path; the session history is the context.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Session ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "User message"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse       "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse       "Insufficient credits"
// @Failure     404  {object}  handlers.ErrorResponse       "Session not found"
// @Failure     429  {object}  handlers.ChatFailureResponse "Provider rate limited (credit refunded)"
// @Failure     500  {object}  handlers.ChatFailureResponse "Provider failure (credit refunded)"
// @Router      /sessions/{id}/messages [post]
func (h *Handlers) PostSessionMessage(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	sessionID, okSID := pathID(c, "session")
	if !okSID {
		return
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	h.runTurn(c, services.SendInput{
		CustomerID: cid,
		SessionID:  sessionID,
		Message:    req.Message,
	})
}

// runTurn normalizes the message, runs the turn and writes the outcome.
func (h *Handlers) runTurn(c *gin.Context, in services.SendInput) {
	in.Message = sanitizeContent(in.Message)
	if in.Message == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	if h.maxMessageRunes > 0 && utf8.RuneCountInString(in.Message) > h.maxMessageRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		return
	}
	if in.SessionID != "" {
		in.IdempotencyKey, _ = middleware.GetIdempotencyKey(c)
	}

	res, err := h.chat.Send(c.Request.Context(), in)
	if err != nil {
		var pe *llm.ProviderError
		if errors.As(err, &pe) && res != nil {
			status, code, msg := http.StatusInternalServerError, ErrCodeProviderFailed, "Error generating AI response"
			if pe.RateLimited() {
				status, code, msg = http.StatusTooManyRequests, ErrCodeProviderRateLimited, "Service temporarily busy. Please try again shortly."
			}
			c.JSON(status, ChatFailureResponse{
				Code:             code,
				Message:          msg,
				FallbackResponse: res.Text,
				CreditsRemaining: res.CreditsRemaining,
				SessionID:        res.SessionID,
				MessageID:        res.MessageID,
			})
			return
		}
		writeError(c, err, ErrCodeInternal)
		return
	}

	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusOK, ChatResponse{
		Success:          true,
		Message:          res.Text,
		CreditsRemaining: res.CreditsRemaining,
		SessionID:        res.SessionID,
		MessageID:        res.MessageID,
		Model:            res.Model,
		TokensUsed:       res.TokensUsed,
	})
}

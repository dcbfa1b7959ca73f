// Package handlers exposes the REST API: accounts, chat turns, sessions,
// recipes, feedback and credit purchases.
//
// Handlers are transport-thin: they bind and normalize input, call
// application services, and translate results into HTTP responses. Business
// rules (credit accounting, ownership, reconciliation) live in services.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/http/middleware"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/services"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CustomerService covers signup, login and the profile of the current customer.
type CustomerService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
	UpdateProfile(ctx context.Context, id string, in services.ProfileInput) (*domain.Customer, error)
}

// SessionService defines chat session operations consumed by HTTP handlers.
// Every method scopes by customer; foreign sessions are reported as missing.
type SessionService interface {
	Create(ctx context.Context, customerID, title string) (*domain.ChatSession, error)
	List(ctx context.Context, customerID string, page, pageSize int) ([]domain.ChatSession, int64, error)
	Get(ctx context.Context, customerID, sessionID string) (*domain.ChatSession, error)
	Messages(ctx context.Context, customerID, sessionID string, limit, skip int) ([]domain.Message, int64, error)
	Rename(ctx context.Context, customerID, sessionID, title string) (*domain.ChatSession, error)
	Delete(ctx context.Context, customerID, sessionID string) error
	Search(ctx context.Context, customerID, term string, limit int) ([]domain.ChatSession, error)
}

// ChatService runs one credit-metered AI turn.
type ChatService interface {
	Send(ctx context.Context, in services.SendInput) (*services.TurnResult, error)
}

// RecipeService generates and lists saved recipes.
type RecipeService interface {
	Generate(ctx context.Context, customerID string, in services.RecipeInput) (*services.RecipeResult, error)
	List(ctx context.Context, customerID string, page, pageSize int) ([]domain.Recipe, error)
	Get(ctx context.Context, customerID, id string) (*domain.Recipe, error)
}

// FeedbackService defines operations to capture customer feedback on messages.
type FeedbackService interface {
	// Leave submits a feedback value (-1 or 1) for messageID by customerID.
	Leave(ctx context.Context, customerID, messageID string, value int) error
}

// PaymentService covers credit purchases and gateway notifications.
type PaymentService interface {
	Config() []services.GatewayConfig
	Create(ctx context.Context, customerID string, in services.PurchaseInput) (*services.Purchase, error)
	Status(ctx context.Context, customerID, transactionID string) (*domain.PaymentTransaction, error)
	Callback(ctx context.Context, gateway, transactionID string) string
	History(ctx context.Context, customerID string, limit int) ([]domain.PaymentTransaction, error)
	HandleWebhook(ctx context.Context, gateway string, payload []byte, header http.Header) (*payments.Notification, error)
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on.
type Deps struct {
	Customers CustomerService
	Sessions  SessionService
	Chat      ChatService
	Recipes   RecipeService
	Feedback  FeedbackService
	Payments  PaymentService

	// MaxMessageRunes rejects oversized chat messages at the edge; 0 disables.
	MaxMessageRunes int
}

// Handlers groups all HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	customers CustomerService
	sessions  SessionService
	chat      ChatService
	recipes   RecipeService
	feedback  FeedbackService
	payments  PaymentService

	maxMessageRunes int
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		customers:       d.Customers,
		sessions:        d.Sessions,
		chat:            d.Chat,
		recipes:         d.Recipes,
		feedback:        d.Feedback,
		payments:        d.Payments,
		maxMessageRunes: d.MaxMessageRunes,
	}
}

// customerID returns the authenticated customer or writes a 401. Routes
// behind RequireAuth always have one; the check keeps handlers safe when
// mounted elsewhere.
func customerID(c *gin.Context) (string, bool) {
	if id, ok := middleware.CustomerID(c); ok {
		return id, true
	}
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	return "", false
}

//
// Pagination
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context, defaultPageSize int) (page, pageSize int) {
	const maxPageSize = 100
	p := utils.NewPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)
	return p.Number, p.Size
}

// pathID returns the :id route parameter, or answers 400 and reports false
// when it is not a UUID. what names the resource in the error message.
func pathID(c *gin.Context, what string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

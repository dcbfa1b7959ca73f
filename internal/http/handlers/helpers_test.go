package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/http/middleware"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/services"
)

// ---------- service stubs ----------

type stubCustomers struct {
	signup func(context.Context, services.SignupInput) (*services.AuthResult, error)
	login  func(context.Context, string, string) (*services.AuthResult, error)
	get    func(context.Context, string) (*domain.Customer, error)
	update func(context.Context, string, services.ProfileInput) (*domain.Customer, error)
}

func (s stubCustomers) Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error) {
	return s.signup(ctx, in)
}

func (s stubCustomers) Login(ctx context.Context, email, pw string) (*services.AuthResult, error) {
	return s.login(ctx, email, pw)
}

func (s stubCustomers) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.get(ctx, id)
}

func (s stubCustomers) UpdateProfile(ctx context.Context, id string, in services.ProfileInput) (*domain.Customer, error) {
	return s.update(ctx, id, in)
}

type stubSessions struct {
	create   func(context.Context, string, string) (*domain.ChatSession, error)
	list     func(context.Context, string, int, int) ([]domain.ChatSession, int64, error)
	get      func(context.Context, string, string) (*domain.ChatSession, error)
	messages func(context.Context, string, string, int, int) ([]domain.Message, int64, error)
	rename   func(context.Context, string, string, string) (*domain.ChatSession, error)
	del      func(context.Context, string, string) error
	search   func(context.Context, string, string, int) ([]domain.ChatSession, error)
}

func (s stubSessions) Create(ctx context.Context, cid, title string) (*domain.ChatSession, error) {
	return s.create(ctx, cid, title)
}

func (s stubSessions) List(ctx context.Context, cid string, page, size int) ([]domain.ChatSession, int64, error) {
	return s.list(ctx, cid, page, size)
}

func (s stubSessions) Get(ctx context.Context, cid, sid string) (*domain.ChatSession, error) {
	return s.get(ctx, cid, sid)
}

func (s stubSessions) Messages(ctx context.Context, cid, sid string, limit, skip int) ([]domain.Message, int64, error) {
	return s.messages(ctx, cid, sid, limit, skip)
}

func (s stubSessions) Rename(ctx context.Context, cid, sid, title string) (*domain.ChatSession, error) {
	return s.rename(ctx, cid, sid, title)
}

func (s stubSessions) Delete(ctx context.Context, cid, sid string) error {
	return s.del(ctx, cid, sid)
}

func (s stubSessions) Search(ctx context.Context, cid, term string, limit int) ([]domain.ChatSession, error) {
	return s.search(ctx, cid, term, limit)
}

type stubChat func(context.Context, services.SendInput) (*services.TurnResult, error)

func (f stubChat) Send(ctx context.Context, in services.SendInput) (*services.TurnResult, error) {
	return f(ctx, in)
}

type stubRecipes struct {
	generate func(context.Context, string, services.RecipeInput) (*services.RecipeResult, error)
	list     func(context.Context, string, int, int) ([]domain.Recipe, error)
	get      func(context.Context, string, string) (*domain.Recipe, error)
}

func (s stubRecipes) Generate(ctx context.Context, cid string, in services.RecipeInput) (*services.RecipeResult, error) {
	return s.generate(ctx, cid, in)
}

func (s stubRecipes) List(ctx context.Context, cid string, page, size int) ([]domain.Recipe, error) {
	return s.list(ctx, cid, page, size)
}

func (s stubRecipes) Get(ctx context.Context, cid, id string) (*domain.Recipe, error) {
	return s.get(ctx, cid, id)
}

type stubFeedback func(context.Context, string, string, int) error

func (f stubFeedback) Leave(ctx context.Context, cid, mid string, v int) error { return f(ctx, cid, mid, v) }

type stubPayments struct {
	config   func() []services.GatewayConfig
	create   func(context.Context, string, services.PurchaseInput) (*services.Purchase, error)
	status   func(context.Context, string, string) (*domain.PaymentTransaction, error)
	callback func(context.Context, string, string) string
	history  func(context.Context, string, int) ([]domain.PaymentTransaction, error)
	webhook  func(context.Context, string, []byte, http.Header) (*payments.Notification, error)
}

func (s stubPayments) Config() []services.GatewayConfig { return s.config() }

func (s stubPayments) Create(ctx context.Context, cid string, in services.PurchaseInput) (*services.Purchase, error) {
	return s.create(ctx, cid, in)
}

func (s stubPayments) Status(ctx context.Context, cid, txn string) (*domain.PaymentTransaction, error) {
	return s.status(ctx, cid, txn)
}

func (s stubPayments) Callback(ctx context.Context, gw, txn string) string {
	return s.callback(ctx, gw, txn)
}

func (s stubPayments) History(ctx context.Context, cid string, limit int) ([]domain.PaymentTransaction, error) {
	return s.history(ctx, cid, limit)
}

func (s stubPayments) HandleWebhook(ctx context.Context, gw string, payload []byte, h http.Header) (*payments.Notification, error) {
	return s.webhook(ctx, gw, payload, h)
}

// ---------- router + request helpers ----------

const testCustomer = "cust-1"

// newTestRouter mounts every handler the way the production router does,
// with the customer taken from X-User-ID. Extra middleware runs after
// authentication.
func newTestRouter(h *Handlers, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(middleware.AuthOptions{TrustUserHeader: true}))
	r.Use(mw...)

	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/webhooks/:gateway", h.Webhook)
	r.GET("/payments/callback/:gateway", h.PaymentCallback)
	r.POST("/payments/callback/:gateway", h.PaymentCallback)

	p := r.Group("", middleware.RequireAuth())
	p.GET("/me", h.Me)
	p.PUT("/me/profile", h.UpdateProfile)
	p.POST("/chat", h.PostChat)
	p.POST("/sessions", h.CreateSession)
	p.GET("/sessions", h.ListSessions)
	p.GET("/sessions/search", h.SearchSessions)
	p.GET("/sessions/:id", h.GetSession)
	p.PUT("/sessions/:id/title", h.UpdateSessionTitle)
	p.DELETE("/sessions/:id", h.DeleteSession)
	p.GET("/sessions/:id/messages", h.ListSessionMessages)
	p.POST("/sessions/:id/messages", h.PostSessionMessage)
	p.POST("/recipes", h.GenerateRecipe)
	p.GET("/recipes", h.ListRecipes)
	p.GET("/recipes/:id", h.GetRecipe)
	p.POST("/messages/:id/feedback", h.LeaveFeedback)
	p.GET("/payments/config", h.PaymentConfig)
	p.POST("/payments", h.CreatePayment)
	p.GET("/payments/history", h.PaymentHistory)
	p.GET("/payments/:id", h.PaymentStatus)
	return r
}

// do sends a request; body may be nil, a string (sent raw) or any value
// (sent as JSON). An empty customer sends an anonymous request.
func do(t *testing.T, r http.Handler, method, path string, body any, customer string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if customer != "" {
		req.Header.Set(middleware.HeaderUserID, customer)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q, want %q", er.Code, code)
	}
	return er
}

// Payment HTTP handlers.
//
// This file exposes REST endpoints for credit purchases:
//   - GET  /payments/config              (configured gateways and pack prices)
//   - POST /payments                     (start a purchase, returns redirect_url)
//   - GET  /payments/history             (customer's transactions)
//   - GET  /payments/{id}                (transaction status, polls the gateway)
//   - GET  /payments/callback/{gateway}  (browser return, redirects to the purchase page)
//   - POST /webhooks/{gateway}           (signed gateway notifications, public)
//
// Webhooks are acknowledged with 200 for everything that must not be
// redelivered (processed, replayed, unknown transaction, ignorable event),
// 400 for payloads that fail verification, and 5xx when processing failed and
// the gateway should retry.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/http/middleware"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/services"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
	"github.com/tbourn/recipe-chat-backend/internal/validation"
)

// maxWebhookBody bounds notification payloads; both gateways send a few KiB.
const maxWebhookBody = 64 << 10

// PaymentConfigResponse lists the purchasable packs per configured gateway.
type PaymentConfigResponse struct {
	Gateways []services.GatewayConfig `json:"gateways"`
}

// CreatePaymentResponse is returned when a purchase was started.
type CreatePaymentResponse struct {
	TransactionID string `json:"transaction_id" example:"TXN_6f1c7d2e-8a7b-4c36-9d51-0f3b2a9e4c11"`
	RedirectURL   string `json:"redirect_url"   example:"https://checkout.stripe.com/c/pay/cs_test_123"`
}

// PaymentHistoryResponse lists transactions, newest first.
type PaymentHistoryResponse struct {
	Transactions []domain.PaymentTransaction `json:"transactions"`
}

// WebhookResponse acknowledges a gateway notification.
type WebhookResponse struct {
	Received bool   `json:"received" example:"true"`
	Outcome  string `json:"outcome,omitempty" example:"success"`
}

// PaymentConfig godoc
// @ID          paymentConfig
// @Summary     Payment configuration
// @Description Lists configured gateways with their currency and pack prices. Unconfigured gateways are omitted.
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.PaymentConfigResponse
// @Router      /payments/config [get]
func (h *Handlers) PaymentConfig(c *gin.Context) {
	gws := h.payments.Config()
	if gws == nil {
		gws = []services.GatewayConfig{}
	}
	ok(c, http.StatusOK, PaymentConfigResponse{Gateways: gws})
}

// CreatePayment godoc
// @ID          createPayment
// @Summary     Buy a credit pack
// @Description Stores a PENDING transaction and returns the gateway page to redirect the browser to.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.PurchaseInput  true  "Gateway and pack"
// @Success     201   {object}  handlers.CreatePaymentResponse
// @Failure     400   {object}  handlers.ErrorResponse "Validation failed"
// @Failure     501   {object}  handlers.ErrorResponse "Gateway not configured"
// @Failure     502   {object}  handlers.ErrorResponse "Gateway error"
// @Router      /payments [post]
func (h *Handlers) CreatePayment(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	var req services.PurchaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	req.Gateway = strings.ToLower(strings.TrimSpace(req.Gateway))
	if err := validation.Struct(req); err != nil {
		writeError(c, err, ErrCodeBadRequest)
		return
	}

	p, err := h.payments.Create(c.Request.Context(), cid, req)
	if err != nil {
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, CreatePaymentResponse{TransactionID: p.TransactionID, RedirectURL: p.RedirectURL})
}

// PaymentHistory godoc
// @ID          paymentHistory
// @Summary     Purchase history
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query  int  false  "Max transactions"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.PaymentHistoryResponse
// @Router      /payments/history [get]
func (h *Handlers) PaymentHistory(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	items, err := h.payments.History(c.Request.Context(), cid, utils.AtoiDefault(c.Query("limit"), 20))
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.PaymentTransaction{}
	}
	ok(c, http.StatusOK, PaymentHistoryResponse{Transactions: items})
}

// PaymentStatus godoc
// @ID          paymentStatus
// @Summary     Transaction status
// @Description Returns the stored transaction. A PENDING transaction is checked with its gateway first when the gateway supports polling.
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Transaction ID"  example(TXN_6f1c7d2e-8a7b-4c36-9d51-0f3b2a9e4c11)
// @Success     200  {object}  domain.PaymentTransaction
// @Failure     404  {object}  handlers.ErrorResponse "Transaction not found"
// @Router      /payments/{id} [get]
func (h *Handlers) PaymentStatus(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	txn, err := h.payments.Status(c.Request.Context(), cid, c.Param("id"))
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, txn)
}

// PaymentCallback godoc
// @ID          paymentCallback
// @Summary     Gateway return URL
// @Description The browser lands here after the gateway page. The transaction is reconciled and the browser is redirected to the purchase page tagged with status=success|pending|failed.
// @Tags        Payments
// @Param       gateway  path   string  true  "Gateway"  Enums(stripe, phonepe)
// @Param       txn            query  string  false  "Transaction ID"
// @Param       transactionId  query  string  false  "Transaction ID (PhonePe)"
// @Success     302  {string}  string  "Redirect"
// @Router      /payments/callback/{gateway} [get]
func (h *Handlers) PaymentCallback(c *gin.Context) {
	txn := callbackTxn(c)
	c.Redirect(http.StatusFound, h.payments.Callback(c.Request.Context(), c.Param("gateway"), txn))
}

// callbackTxn reads the transaction ID from the return URL or, for PhonePe,
// the posted return form. Empty when the gateway sent none.
func callbackTxn(c *gin.Context) string {
	for _, v := range []string{c.Query("txn"), c.Query("transactionId"), c.PostForm("transactionId")} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Webhook godoc
// @ID          paymentWebhook
// @Summary     Gateway notification
// @Description Verifies the gateway signature (Stripe-Signature or X-VERIFY) and applies the notification exactly once.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       gateway  path  string  true  "Gateway"  Enums(stripe, phonepe)
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid signature or payload"
// @Failure     500  {object}  handlers.ErrorResponse "Processing failed, gateway should retry"
// @Router      /webhooks/{gateway} [post]
func (h *Handlers) Webhook(c *gin.Context) {
	gateway := c.Param("gateway")
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	n, err := h.payments.HandleWebhook(c.Request.Context(), gateway, payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, payments.ErrMalformedNotification) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed notification")
			return
		}
		writeError(c, err, ErrCodeInternal)
		return
	}

	resp := WebhookResponse{Received: true}
	if n != nil {
		resp.Outcome = n.Outcome.String()
	}
	middleware.LoggerFrom(c).Debug().Str("gateway", gateway).Str("outcome", resp.Outcome).Msg("webhook acknowledged")
	ok(c, http.StatusOK, resp)
}

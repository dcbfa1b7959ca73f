package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/tbourn/recipe-chat-backend/internal/config"
)

// Stripe event types handled by Verify.
const (
	stripeSessionCompleted      = "checkout.session.completed"
	stripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	stripeAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	stripeSessionExpired        = "checkout.session.expired"
)

// CheckoutSessions is the subset of the Stripe API used by the adapter.
// The V1CheckoutSessions service of a *stripe.Client satisfies it.
type CheckoutSessions interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	Retrieve(ctx context.Context, id string, params *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error)
}

// Stripe sells credit packs through hosted Checkout Sessions.
type Stripe struct {
	cfg        config.StripeConfig
	prices     priceTable
	sessions   CheckoutSessions
	successURL string
	cancelURL  string
}

// NewStripe returns nil and ErrNotConfigured when the secret key or webhook
// secret is missing. Each gateway owns its API client; the package-level
// stripe.Key is left alone.
func NewStripe(cfg config.StripeConfig, baseURL string) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: stripe", ErrNotConfigured)
	}
	return newStripe(cfg, baseURL, stripe.NewClient(cfg.SecretKey).V1CheckoutSessions), nil
}

func newStripe(cfg config.StripeConfig, baseURL string, api CheckoutSessions) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Stripe{
		cfg:        cfg,
		prices:     priceTable(cfg.Amounts),
		sessions:   api,
		successURL: baseURL + "/buy-credits?status=success&txn={txn}",
		cancelURL:  baseURL + "/buy-credits?status=cancel&txn={txn}",
	}
}

func (s *Stripe) Name() string     { return GatewayStripe }
func (s *Stripe) Currency() string { return strings.ToUpper(s.cfg.Currency) }
func (s *Stripe) Packs() []int     { return s.prices.packs() }

func (s *Stripe) Price(credits int) (decimal.Decimal, error) {
	return s.prices.price(credits)
}

// CreatePayment opens a Checkout Session for one pack. A configured price ID
// is preferred; otherwise an inline price is sent.
func (s *Stripe) CreatePayment(ctx context.Context, req CreateRequest) (*Checkout, error) {
	amount, err := s.Price(req.Credits)
	if err != nil {
		return nil, err
	}
	item := &stripe.CheckoutSessionCreateLineItemParams{Quantity: stripe.Int64(1)}
	if id := s.cfg.PriceIDs[req.Credits]; id != "" {
		item.Price = stripe.String(id)
	} else {
		item.PriceData = &stripe.CheckoutSessionCreateLineItemPriceDataParams{
			Currency:   stripe.String(strings.ToLower(s.cfg.Currency)),
			UnitAmount: stripe.Int64(amount.Shift(2).Round(0).IntPart()),
			ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
				Name: stripe.String(fmt.Sprintf("%d recipe credits", req.Credits)),
			},
		}
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         []*stripe.CheckoutSessionCreateLineItemParams{item},
		ClientReferenceID: stripe.String(req.TransactionID),
		SuccessURL:        stripe.String(strings.ReplaceAll(s.successURL, "{txn}", req.TransactionID)),
		CancelURL:         stripe.String(strings.ReplaceAll(s.cancelURL, "{txn}", req.TransactionID)),
		Metadata: map[string]string{
			"transaction_id": req.TransactionID,
			"customer_id":    req.CustomerID,
			"credits":        strconv.Itoa(req.Credits),
		},
	}
	cs, err := s.sessions.Create(ctx, params)
	if err != nil {
		return nil, &GatewayError{Gateway: GatewayStripe, Op: "create checkout session", Err: err}
	}
	if cs == nil || cs.URL == "" {
		return nil, &GatewayError{Gateway: GatewayStripe, Op: "create checkout session", Err: errors.New("no redirect url")}
	}
	return &Checkout{RedirectURL: cs.URL, ProviderRef: cs.ID}, nil
}

// Verify checks the Stripe-Signature header and decodes checkout events.
func (s *Stripe) Verify(_ context.Context, payload []byte, header http.Header) (*Notification, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature", ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	n := &Notification{EventID: event.ID, Kind: string(event.Type)}
	switch string(event.Type) {
	case stripeSessionCompleted, stripeAsyncPaymentSucceeded, stripeAsyncPaymentFailed, stripeSessionExpired:
	default:
		return n, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedNotification, event.ID)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	fillFromSession(n, &cs)
	if n.TransactionID == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no transaction id", ErrMalformedNotification, cs.ID)
	}

	switch string(event.Type) {
	case stripeSessionCompleted:
		n.Outcome = OutcomePending
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			n.Outcome = OutcomeSuccess
		}
	case stripeAsyncPaymentSucceeded:
		n.Outcome = OutcomeSuccess
	default:
		n.Outcome = OutcomeFailed
	}
	return n, nil
}

// CheckStatus retrieves the checkout session behind a pending transaction.
func (s *Stripe) CheckStatus(ctx context.Context, transactionID, providerRef string) (*Notification, error) {
	if providerRef == "" {
		return &Notification{TransactionID: transactionID, Outcome: OutcomePending}, nil
	}
	cs, err := s.sessions.Retrieve(ctx, providerRef, nil)
	if err != nil {
		return nil, &GatewayError{Gateway: GatewayStripe, Op: "get checkout session", Err: err}
	}
	n := &Notification{Kind: "poll"}
	fillFromSession(n, cs)
	if n.TransactionID == "" {
		n.TransactionID = transactionID
	}
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		n.Outcome = OutcomeSuccess
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		n.Outcome = OutcomeFailed
	default:
		n.Outcome = OutcomePending
	}
	return n, nil
}

func fillFromSession(n *Notification, cs *stripe.CheckoutSession) {
	n.ProviderRef = cs.ID
	n.TransactionID = cs.Metadata["transaction_id"]
	if n.TransactionID == "" {
		n.TransactionID = cs.ClientReferenceID
	}
	n.CustomerID = cs.Metadata["customer_id"]
	if cs.AmountTotal > 0 {
		n.Amount = decimal.New(cs.AmountTotal, -2)
		n.HasAmount = true
	}
}

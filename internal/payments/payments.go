// Package payments adapts the card and mobile-wallet gateways used to buy
// credit packs to a single Gateway interface.
//
// Adapters verify inbound notifications themselves and normalize them into a
// Notification; they never touch balances. Reconciliation against stored
// transactions lives in the services package.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"
)

// Gateway names as used in routes and stored transactions.
const (
	GatewayStripe  = "stripe"
	GatewayPhonePe = "phonepe"
)

// Outcome is the normalized result carried by a notification.
type Outcome int

const (
	// OutcomeIgnored marks events that carry no transaction state.
	OutcomeIgnored Outcome = iota
	OutcomeSuccess
	OutcomePending
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePending:
		return "pending"
	case OutcomeFailed:
		return "failed"
	}
	return "ignored"
}

var (
	// ErrNotConfigured is returned for gateways whose credentials are absent.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrSignatureInvalid is returned when a notification fails verification.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
	// ErrUnknownPack is returned for credit packs without a price.
	ErrUnknownPack = errors.New("unknown credit pack")
	// ErrMalformedNotification is returned for verified payloads that cannot be
	// decoded into a transaction update.
	ErrMalformedNotification = errors.New("malformed payment notification")
)

// GatewayError wraps a failed call to a payment provider.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// CreateRequest describes a checkout for one pending transaction.
type CreateRequest struct {
	TransactionID string
	CustomerID    string
	Credits       int
	Amount        decimal.Decimal
	Phone         string
}

// Checkout is where the browser goes to pay.
type Checkout struct {
	RedirectURL string
	ProviderRef string
}

// Notification is a verified gateway message about one transaction.
// Amount is in major units; HasAmount is false when the provider omitted it.
type Notification struct {
	EventID       string
	TransactionID string
	CustomerID    string
	Outcome       Outcome
	Amount        decimal.Decimal
	HasAmount     bool
	ProviderRef   string
	Kind          string // provider event type or code, for logs
}

// Gateway is implemented by every payment provider adapter.
type Gateway interface {
	Name() string
	Currency() string
	Price(credits int) (decimal.Decimal, error)
	Packs() []int
	CreatePayment(ctx context.Context, req CreateRequest) (*Checkout, error)
	Verify(ctx context.Context, payload []byte, header http.Header) (*Notification, error)
}

// StatusChecker is implemented by gateways that can be polled.
type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID, providerRef string) (*Notification, error)
}

// Registry holds the configured gateways by name.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry registers the non-nil gateways.
func NewRegistry(gs ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gs))}
	for _, g := range gs {
		if g != nil {
			r.gateways[g.Name()] = g
		}
	}
	return r
}

// Get returns the named gateway or ErrNotConfigured.
func (r *Registry) Get(name string) (Gateway, error) {
	if r != nil {
		if g, ok := r.gateways[name]; ok {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
}

// Available lists the configured gateway names in sorted order.
func (r *Registry) Available() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// priceTable resolves pack prices from a static map.
type priceTable map[int]decimal.Decimal

func (p priceTable) price(credits int) (decimal.Decimal, error) {
	amt, ok := p[credits]
	if !ok || !amt.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownPack, credits)
	}
	return amt, nil
}

func (p priceTable) packs() []int {
	out := make([]int, 0, len(p))
	for k, v := range p {
		if v.IsPositive() {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

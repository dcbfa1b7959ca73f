// Package services – PaymentService
//
// Credit purchases. Create opens a PENDING transaction and hands the browser
// to the gateway; gateway notifications arrive through HandleWebhook and are
// applied by Reconcile. The only path that credits a purchase is the
// PENDING -> COMPLETED claim inside Reconcile, which runs in the same database
// transaction as the credit, so a replayed or concurrent notification can
// never credit twice.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

// PaymentService creates and reconciles credit purchases.
type PaymentService struct {
	DB       *gorm.DB
	Ledger   *Ledger
	Gateways *payments.Registry
	Guard    payments.EventGuard
	// Packs restricts purchasable pack sizes; empty allows every priced pack.
	Packs []int
	// BaseURL is the public site used for the browser return redirect.
	BaseURL string
}

// PurchaseInput is a request to buy one credit pack.
type PurchaseInput struct {
	Gateway    string `json:"gateway"     validate:"required,oneof=stripe phonepe"`
	CreditPack int    `json:"credit_pack" validate:"required,gt=0"`
	Phone      string `json:"phone"       validate:"omitempty,e164"`
}

// Purchase is the result of Create.
type Purchase struct {
	TransactionID string
	RedirectURL   string
}

// PackPrice is one purchasable pack of a gateway.
type PackPrice struct {
	Credits int             `json:"credits"`
	Amount  decimal.Decimal `json:"amount"`
}

// GatewayConfig describes a configured gateway for the purchase page.
type GatewayConfig struct {
	Name     string      `json:"name"`
	Currency string      `json:"currency"`
	Packs    []PackPrice `json:"packs"`
}

// Create validates the pack, stores a PENDING transaction and creates the
// gateway payment. A gateway failure marks the transaction FAILED.
func (s *PaymentService) Create(ctx context.Context, customerID string, in PurchaseInput) (*Purchase, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("gateway", in.Gateway),
			attribute.Int("credits", in.CreditPack),
		))
	defer span.End()

	gw, err := s.Gateways.Get(in.Gateway)
	if err != nil {
		return nil, err
	}
	if len(s.Packs) > 0 && !slices.Contains(s.Packs, in.CreditPack) {
		return nil, fmt.Errorf("%w: %d", payments.ErrUnknownPack, in.CreditPack)
	}
	amount, err := gw.Price(in.CreditPack)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &domain.PaymentTransaction{
		ID:            uuid.NewString(),
		TransactionID: "TXN_" + uuid.NewString(),
		CustomerID:    customerID,
		Credits:       in.CreditPack,
		Amount:        amount,
		Currency:      gw.Currency(),
		Gateway:       gw.Name(),
		Status:        domain.TxnPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.CreateTransaction(ctx, s.DB, txn); err != nil {
		return nil, err
	}

	co, err := gw.CreatePayment(ctx, payments.CreateRequest{
		TransactionID: txn.TransactionID,
		CustomerID:    customerID,
		Credits:       txn.Credits,
		Amount:        amount,
		Phone:         in.Phone,
	})
	if err != nil {
		span.SetStatus(codes.Error, "create payment")
		if _, terr := repo.TransitionTransaction(context.WithoutCancel(ctx), s.DB, txn.TransactionID, domain.TxnFailed, time.Now().UTC()); terr != nil {
			log.Ctx(ctx).Error().Err(terr).Str("transaction_id", txn.TransactionID).Msg("mark transaction failed")
		}
		log.Ctx(ctx).Warn().Err(err).Str("transaction_id", txn.TransactionID).Str("gateway", gw.Name()).Msg("create payment failed")
		return nil, err
	}
	if co.ProviderRef != "" {
		if err := repo.SetProviderRef(ctx, s.DB, txn.TransactionID, co.ProviderRef); err != nil {
			return nil, err
		}
	}
	log.Ctx(ctx).Info().
		Str("transaction_id", txn.TransactionID).
		Str("gateway", gw.Name()).
		Int("credits", txn.Credits).
		Str("amount", amount.StringFixed(2)).
		Msg("payment created")
	return &Purchase{TransactionID: txn.TransactionID, RedirectURL: co.RedirectURL}, nil
}

// HandleWebhook verifies a gateway notification and applies it. A replayed
// event is acknowledged without reprocessing. Verification failures have no
// side effects.
func (s *PaymentService) HandleWebhook(ctx context.Context, gateway string, payload []byte, header http.Header) (*payments.Notification, error) {
	gw, err := s.Gateways.Get(gateway)
	if err != nil {
		return nil, err
	}
	n, err := gw.Verify(ctx, payload, header)
	if err != nil {
		result := "error"
		if errors.Is(err, payments.ErrSignatureInvalid) {
			result = "invalid_signature"
		}
		observability.PaymentEvents.WithLabelValues(gateway, result).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("gateway", gateway).Msg("webhook rejected")
		return nil, err
	}
	if n.Outcome == payments.OutcomeIgnored {
		observability.PaymentEvents.WithLabelValues(gateway, n.Outcome.String()).Inc()
		return n, nil
	}

	if n.EventID != "" && s.Guard != nil {
		seen, err := s.Guard.CheckAndMark(ctx, gateway, n.EventID)
		if err != nil {
			// The guard is an optimization; reconciliation is idempotent.
			log.Ctx(ctx).Warn().Err(err).Str("gateway", gateway).Msg("event guard unavailable")
		} else if seen {
			observability.PaymentEvents.WithLabelValues(gateway, "duplicate").Inc()
			log.Ctx(ctx).Info().Str("gateway", gateway).Str("event_id", n.EventID).Msg("duplicate webhook ignored")
			return n, nil
		}
	}

	if err := s.Reconcile(ctx, gateway, n); err != nil {
		if n.EventID != "" && s.Guard != nil {
			if rerr := s.Guard.Release(context.WithoutCancel(ctx), gateway, n.EventID); rerr != nil {
				log.Ctx(ctx).Warn().Err(rerr).Str("event_id", n.EventID).Msg("release event guard")
			}
		}
		observability.PaymentEvents.WithLabelValues(gateway, "error").Inc()
		return nil, err
	}
	observability.PaymentEvents.WithLabelValues(gateway, n.Outcome.String()).Inc()
	return n, nil
}

// Reconcile applies a verified notification to its stored transaction.
//
//   - Success claims PENDING -> COMPLETED and credits the pack in one database
//     transaction. An unknown or already terminal transaction is a no-op.
//   - A notification amount that differs from the stored amount, or a foreign
//     customer, flags the transaction for review and credits nothing.
//   - Failed claims PENDING -> FAILED. Pending is a no-op.
func (s *PaymentService) Reconcile(ctx context.Context, gateway string, n *payments.Notification) error {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("gateway", gateway),
			attribute.String("transaction.id", n.TransactionID),
			attribute.String("outcome", n.Outcome.String()),
		))
	defer span.End()

	lg := log.Ctx(ctx).With().Str("gateway", gateway).Str("transaction_id", n.TransactionID).Str("event", n.Kind).Logger()

	txn, err := repo.GetTransaction(ctx, s.DB, n.TransactionID)
	if errors.Is(err, repo.ErrNotFound) {
		lg.Warn().Msg("notification for unknown transaction")
		return nil
	}
	if err != nil {
		return err
	}
	if txn.Gateway != gateway {
		lg.Warn().Str("stored_gateway", txn.Gateway).Msg("notification from a different gateway ignored")
		return nil
	}
	if txn.Terminal() {
		lg.Debug().Str("status", txn.Status).Msg("transaction already terminal")
		return nil
	}

	switch n.Outcome {
	case payments.OutcomeSuccess:
		if reason := mismatch(txn, n); reason != "" {
			lg.Error().Str("reason", reason).Msg("payment anomaly, flagged for review")
			span.SetStatus(codes.Error, "anomaly")
			return repo.FlagTransaction(ctx, s.DB, txn.TransactionID, reason)
		}
		return s.complete(ctx, txn, lg)

	case payments.OutcomeFailed:
		moved, err := repo.TransitionTransaction(ctx, s.DB, txn.TransactionID, domain.TxnFailed, time.Now().UTC())
		if err != nil {
			return err
		}
		if moved {
			lg.Info().Msg("payment failed")
		}
		return nil
	}
	return nil
}

func (s *PaymentService) complete(ctx context.Context, txn *domain.PaymentTransaction, lg zerolog.Logger) error {
	var balance int
	credited := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := repo.TransitionTransaction(ctx, tx, txn.TransactionID, domain.TxnCompleted, time.Now().UTC())
		if err != nil || !claimed {
			return err
		}
		balance, err = s.Ledger.WithTx(tx).Credit(ctx, txn.CustomerID, txn.Credits, txn.Gateway)
		credited = err == nil
		return err
	})
	if err != nil {
		lg.Error().Err(err).Msg("reconcile failed, transaction left pending")
		return err
	}
	if credited {
		lg.Info().Str("customer_id", txn.CustomerID).Int("credits", txn.Credits).Int("balance", balance).Msg("credits purchased")
	}
	return nil
}

// mismatch returns a review reason when n disagrees with the stored txn.
func mismatch(txn *domain.PaymentTransaction, n *payments.Notification) string {
	if n.HasAmount && !n.Amount.Equal(txn.Amount) {
		return fmt.Sprintf("amount mismatch: paid %s, expected %s %s", n.Amount.StringFixed(2), txn.Amount.StringFixed(2), txn.Currency)
	}
	if n.CustomerID != "" && n.CustomerID != txn.CustomerID {
		return "customer mismatch: notification for " + n.CustomerID
	}
	return ""
}

// Status returns the customer's transaction. A PENDING transaction is polled
// at its gateway first when the gateway supports it.
func (s *PaymentService) Status(ctx context.Context, customerID, transactionID string) (*domain.PaymentTransaction, error) {
	txn, err := repo.GetTransaction(ctx, s.DB, transactionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if txn.CustomerID != customerID {
		return nil, ErrTransactionNotFound
	}
	return s.poll(ctx, txn)
}

// Callback handles the browser returning from a gateway. It polls and
// reconciles the transaction, then returns the purchase page URL tagged with
// status=success|pending|failed. A return without a transaction ID is
// reported as failed.
func (s *PaymentService) Callback(ctx context.Context, gateway, transactionID string) string {
	if transactionID == "" {
		return s.BaseURL + "/buy-credits?status=failed"
	}
	status := "pending"
	txn, err := repo.GetTransaction(ctx, s.DB, transactionID)
	if err == nil && txn.Gateway == gateway {
		if t, err := s.poll(ctx, txn); err == nil {
			txn = t
		}
		switch txn.Status {
		case domain.TxnCompleted:
			status = "success"
		case domain.TxnFailed:
			status = "failed"
		}
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Ctx(ctx).Warn().Err(err).Str("transaction_id", transactionID).Msg("callback lookup failed")
	}
	q := url.Values{}
	q.Set("status", status)
	q.Set("txn", transactionID)
	return s.BaseURL + "/buy-credits?" + q.Encode()
}

// History lists the customer's transactions, newest first.
func (s *PaymentService) History(ctx context.Context, customerID string, limit int) ([]domain.PaymentTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return repo.ListTransactions(ctx, s.DB, customerID, limit)
}

// Config lists the configured gateways with their currencies and packs.
func (s *PaymentService) Config() []GatewayConfig {
	names := s.Gateways.Available()
	out := make([]GatewayConfig, 0, len(names))
	for _, name := range names {
		gw, err := s.Gateways.Get(name)
		if err != nil {
			continue
		}
		gc := GatewayConfig{Name: name, Currency: gw.Currency(), Packs: []PackPrice{}}
		for _, pack := range gw.Packs() {
			if len(s.Packs) > 0 && !slices.Contains(s.Packs, pack) {
				continue
			}
			if amt, err := gw.Price(pack); err == nil {
				gc.Packs = append(gc.Packs, PackPrice{Credits: pack, Amount: amt})
			}
		}
		out = append(out, gc)
	}
	return out
}

// poll asks a polling-capable gateway about a PENDING transaction, applies
// the answer and returns the fresh row. Gateway errors leave txn unchanged.
func (s *PaymentService) poll(ctx context.Context, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
	if txn.Status != domain.TxnPending {
		return txn, nil
	}
	gw, err := s.Gateways.Get(txn.Gateway)
	if err != nil {
		return txn, nil
	}
	sc, ok := gw.(payments.StatusChecker)
	if !ok {
		return txn, nil
	}
	n, err := sc.CheckStatus(ctx, txn.TransactionID, txn.ProviderRef)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("transaction_id", txn.TransactionID).Msg("status poll failed")
		return txn, nil
	}
	if err := s.Reconcile(ctx, txn.Gateway, n); err != nil {
		return nil, err
	}
	return repo.GetTransaction(ctx, s.DB, txn.TransactionID)
}

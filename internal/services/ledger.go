// Package services – Ledger
//
// The Ledger is the only writer of customer balances. Every mutation is one
// conditional UPDATE in the repo package, so concurrent debits from many
// requests serialize in the database and no balance is ever read, changed and
// written back by application code.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

// Credit sources, used as the credits_granted_total label.
const (
	SourceRefund  = "refund"
	SourceWelcome = "welcome"
)

// Ledger debits and credits customer balances.
type Ledger struct {
	DB *gorm.DB
}

// WithTx returns a Ledger bound to tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{DB: tx}
}

// DebitOne removes exactly one credit and returns the new balance.
// ErrInsufficientCredits means the balance was zero and nothing changed.
func (l *Ledger) DebitOne(ctx context.Context, customerID string) (int, error) {
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "DebitOne",
		trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	var balance int
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DebitCredit(ctx, tx, customerID); err != nil {
			return err
		}
		b, err := repo.GetCredits(ctx, tx, customerID)
		balance = b
		return err
	})
	switch {
	case err == nil:
		observability.CreditsDebited.Inc()
		return balance, nil
	case errors.Is(err, repo.ErrNoCredits):
		return 0, ErrInsufficientCredits
	case errors.Is(err, repo.ErrNotFound):
		return 0, ErrCustomerNotFound
	default:
		span.RecordError(err)
		return 0, err
	}
}

// Credit adds amount to the balance and returns the new balance. source is
// SourceRefund, SourceWelcome or a gateway name.
func (l *Ledger) Credit(ctx context.Context, customerID string, amount int, source string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	ctx, span := otel.Tracer("services/Ledger").Start(ctx, "Credit",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.Int("credits", amount),
			attribute.String("source", source),
		))
	defer span.End()

	var balance int
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AddCredits(ctx, tx, customerID, amount); err != nil {
			return err
		}
		b, err := repo.GetCredits(ctx, tx, customerID)
		balance = b
		return err
	})
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrCustomerNotFound
	}
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if source == SourceRefund {
		observability.CreditsRefunded.Add(float64(amount))
	} else {
		observability.CreditsGranted.WithLabelValues(source).Add(float64(amount))
	}
	return balance, nil
}

// Balance returns the current balance.
func (l *Ledger) Balance(ctx context.Context, customerID string) (int, error) {
	b, err := repo.GetCredits(ctx, l.DB, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrCustomerNotFound
	}
	return b, err
}

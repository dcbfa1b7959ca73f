package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// CreateTransaction appends a payment transaction row.
func CreateTransaction(ctx context.Context, db *gorm.DB, t *domain.PaymentTransaction) error {
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetTransaction fetches a transaction by its public transaction ID.
func GetTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// SetProviderRef stores the gateway's reference (checkout session ID) on a
// pending transaction.
func SetProviderRef(ctx context.Context, db *gorm.DB, transactionID, ref string) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("transaction_id = ?", transactionID).
		Update("provider_ref", ref).Error
}

// TransitionTransaction moves a PENDING transaction to status. It reports
// whether this call performed the transition; false means the row is unknown
// or already terminal.
func TransitionTransaction(ctx context.Context, db *gorm.DB, transactionID, status string, at time.Time) (bool, error) {
	updates := map[string]any{"status": status, "updated_at": at}
	if status == domain.TxnCompleted {
		updates["completed_at"] = at
	}
	res := db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, domain.TxnPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FlagTransaction records a review reason on a still-pending transaction.
func FlagTransaction(ctx context.Context, db *gorm.DB, transactionID, reason string) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, domain.TxnPending).
		Update("review_reason", reason).Error
}

// ListTransactions returns a customer's transactions, newest first.
func ListTransactions(ctx context.Context, db *gorm.DB, customerID string, limit int) ([]domain.PaymentTransaction, error) {
	var out []domain.PaymentTransaction
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

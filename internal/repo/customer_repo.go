// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the customer queries and the credit
// ledger primitives.
//
// The ledger primitives are single UPDATE statements. DebitCredit carries its
// guard in the WHERE clause ("credits > 0") so concurrent debits serialize in
// the database and the balance can never go negative; AddCredits is a plain
// increment. Neither reads the balance before writing it.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// ErrNoCredits is returned by DebitCredit when the guarded update matched no
// row because the balance is already zero.
var ErrNoCredits = errors.New("no credits")

// CreateCustomer inserts c, filling ID and normalizing the email. A unique
// violation on email or Google ID is reported as ErrDuplicate.
func CreateCustomer(ctx context.Context, db *gorm.DB, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = normalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = domain.CustomerActive
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetCustomer fetches a customer by ID or returns ErrNotFound.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByEmail looks a customer up by email, case-insensitively.
func GetCustomerByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateProfile replaces the customer's profile block.
func UpdateProfile(ctx context.Context, db *gorm.DB, id string, p domain.Profile) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{ID: id}).
		Select("SkillLevel", "DietaryPreferences", "Allergies", "FavoriteIngredients", "DislikedIngredients", "PhoneNumber", "Age").
		Updates(&domain.Customer{ID: id, Profile: p})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin records a successful login.
func TouchLogin(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// DebitCredit removes one credit iff the balance is positive. It returns
// ErrNoCredits when the guard fails and ErrNotFound when the customer does
// not exist.
func DebitCredit(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ? AND credits > 0", id).
		UpdateColumn("credits", gorm.Expr("credits - ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Customer{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNoCredits
}

// AddCredits atomically increments the balance by amount.
func AddCredits(ctx context.Context, db *gorm.DB, id string, amount int) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", id).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCredits reads the current balance.
func GetCredits(ctx context.Context, db *gorm.DB, id string) (int, error) {
	var row struct{ Credits int }
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Select("credits").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return row.Credits, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

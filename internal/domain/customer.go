package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer account statuses. Customers are never hard-deleted.
const (
	CustomerActive    = "active"
	CustomerInactive  = "inactive"
	CustomerSuspended = "suspended"
)

// Customer is an account holder with a credit balance and a cooking profile.
//
// Credits is mutated only through the conditional UPDATE statements in the
// repo package; application code never writes a balance it has read.
type Customer struct {
	ID           string  `json:"id"         gorm:"type:char(36);primaryKey"`
	Email        string  `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string  `json:"-"          gorm:"type:varchar(255)"`
	GoogleID     *string `json:"-"          gorm:"type:varchar(255);uniqueIndex"`
	FirstName    string  `json:"first_name" gorm:"type:varchar(100)"`
	LastName     string  `json:"last_name"  gorm:"type:varchar(100)"`
	Credits      int     `json:"credits"    gorm:"not null;default:0;check:credits >= 0"`
	Status       string  `json:"status"     gorm:"type:varchar(16);not null;default:'active'"`

	Profile `gorm:"embedded"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Profile holds the cooking preferences used to personalize prompts.
type Profile struct {
	SkillLevel          string   `json:"skill_level,omitempty"          gorm:"type:varchar(16)"`
	DietaryPreferences  []string `json:"dietary_preferences,omitempty"  gorm:"type:text;serializer:json"`
	Allergies           []string `json:"allergies,omitempty"            gorm:"type:text;serializer:json"`
	FavoriteIngredients []string `json:"favorite_ingredients,omitempty" gorm:"type:text;serializer:json"`
	DislikedIngredients []string `json:"disliked_ingredients,omitempty" gorm:"type:text;serializer:json"`
	PhoneNumber         string   `json:"phone_number,omitempty"         gorm:"type:varchar(32)"`
	Age                 *int     `json:"age,omitempty"`
}

// Payment transaction statuses. COMPLETED and FAILED are terminal.
const (
	TxnPending   = "PENDING"
	TxnCompleted = "COMPLETED"
	TxnFailed    = "FAILED"
)

// PaymentTransaction records one credit purchase attempt. Rows are never
// rewritten except for the PENDING -> terminal status transition and the
// review flag.
type PaymentTransaction struct {
	ID            string          `json:"-"                       gorm:"type:char(36);primaryKey"`
	TransactionID string          `json:"transaction_id"          gorm:"type:varchar(64);not null;uniqueIndex"`
	CustomerID    string          `json:"customer_id"             gorm:"type:char(36);not null;index"`
	Credits       int             `json:"credits"                 gorm:"not null"`
	Amount        decimal.Decimal `json:"amount"                  gorm:"type:numeric(12,2);not null"`
	Currency      string          `json:"currency"                gorm:"type:varchar(8);not null"`
	Gateway       string          `json:"gateway"                 gorm:"type:varchar(16);not null"`
	ProviderRef   string          `json:"provider_ref,omitempty"  gorm:"type:varchar(255)"`
	Status        string          `json:"status"                  gorm:"type:varchar(16);not null;index"`
	ReviewReason  string          `json:"review_reason,omitempty" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// TableName returns the database table name for PaymentTransaction.
func (PaymentTransaction) TableName() string { return "payment_transactions" }

// Terminal reports whether the transaction reached COMPLETED or FAILED.
func (t PaymentTransaction) Terminal() bool {
	return t.Status == TxnCompleted || t.Status == TxnFailed
}

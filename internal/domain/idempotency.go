package domain

import "time"

// Idempotency records the outcome of a chat turn keyed by
// (customer_id, session_id, key). A retried POST with the same key replays the
// stored AI message instead of debiting and calling the provider again.
type Idempotency struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	CustomerID string    `gorm:"type:char(36);not null;uniqueIndex:ux_customer_session_key,priority:1"`
	SessionID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_customer_session_key,priority:2"`
	Key        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_customer_session_key,priority:3"`
	MessageID  string    `gorm:"type:char(36);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

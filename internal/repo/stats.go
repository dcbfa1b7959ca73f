package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// Version is the row count and newest timestamp of a collection. Handlers
// hash it into an ETag; any insert, delete or update moves one of the two.
type Version struct {
	Count  int64
	Latest *time.Time
}

// SessionsStats versions a customer's session list by updated_at, which
// moves on rename and on every appended turn.
func SessionsStats(ctx context.Context, db *gorm.DB, customerID string) (int64, *time.Time, error) {
	v, err := version(db.WithContext(ctx).Model(&domain.ChatSession{}).Where("customer_id = ?", customerID), "updated_at")
	return v.Count, v.Latest, err
}

// MessagesStats versions a session's history by created_at. Messages are
// never edited.
func MessagesStats(ctx context.Context, db *gorm.DB, sessionPK string) (int64, *time.Time, error) {
	v, err := version(db.WithContext(ctx).Model(&domain.Message{}).Where("chat_session_id = ?", sessionPK), "created_at")
	return v.Count, v.Latest, err
}

// version counts q and reads the newest value of column. The newest row is
// fetched by ordering rather than MAX(), which SQLite returns as TEXT.
func version(q *gorm.DB, column string) (Version, error) {
	var v Version
	if err := q.Session(&gorm.Session{}).Count(&v.Count).Error; err != nil || v.Count == 0 {
		return Version{}, err
	}
	var ts []time.Time
	if err := q.Session(&gorm.Session{}).Order(column+" DESC").Limit(1).Pluck(column, &ts).Error; err != nil {
		return Version{}, err
	}
	if len(ts) > 0 {
		v.Latest = &ts[0]
	}
	return v, nil
}

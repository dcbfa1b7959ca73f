package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// CreateMessage inserts m, assigning an ID when empty. Callers set CreatedAt.
// A zero Seq is replaced by the next position in the session; callers
// appending inside a locked session transaction set it themselves.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Seq == 0 {
		var last int
		if err := db.WithContext(ctx).Model(&domain.Message{}).
			Where("chat_session_id = ?", m.ChatSessionID).
			Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
			return err
		}
		m.Seq = last + 1
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListMessagesPage returns messages of a session in append order. Seq is
// the order key; timestamps can tie when turns land close together.
func ListMessagesPage(ctx context.Context, db *gorm.DB, sessionPK string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_session_id = ?", sessionPK).
		Order("seq ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecentMessages returns the last n messages of a session, oldest first.
func RecentMessages(ctx context.Context, db *gorm.DB, sessionPK string, n int) ([]domain.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_session_id = ?", sessionPK).
		Order("seq DESC").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages returns the number of messages stored for a session.
func CountMessages(ctx context.Context, db *gorm.DB, sessionPK string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_session_id = ?", sessionPK).
		Count(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOwnedMessage fetches a message only if its session belongs to customerID.
func GetOwnedMessage(ctx context.Context, db *gorm.DB, id, customerID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Joins("JOIN chat_sessions ON chat_sessions.id = messages.chat_session_id").
		Where("messages.id = ? AND chat_sessions.customer_id = ?", id, customerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// CreateFeedback stores a rating; a second rating by the same customer on the
// same message is reported as ErrDuplicate.
func CreateFeedback(ctx context.Context, db *gorm.DB, messageID, customerID string, value int) error {
	fb := &domain.Feedback{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		CustomerID: customerID,
		Value:      value,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

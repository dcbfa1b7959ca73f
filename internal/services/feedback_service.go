package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

// FeedbackService records thumbs-up/down ratings on assistant replies.
type FeedbackService struct {
	DB *gorm.DB
}

// Leave rates messageID for customerID. value is -1 or 1. The message must
// be an AI reply in one of the customer's sessions; anything else reads as
// ErrMessageNotFound (foreign or missing) or ErrForbiddenFeedback (user
// message). A customer rates a message at most once.
func (s *FeedbackService) Leave(ctx context.Context, customerID, messageID string, value int) (err error) {
	ctx, span := otel.Tracer("services/FeedbackService").Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("message.id", messageID),
			attribute.Int("feedback.value", value),
		),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetOwnedMessage(ctx, tx, messageID, customerID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return ErrMessageNotFound
		case err != nil:
			return err
		case msg.Sender != domain.SenderAI:
			return ErrForbiddenFeedback
		}
		if err := repo.CreateFeedback(ctx, tx, messageID, customerID, value); errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicateFeedback
		} else if err != nil {
			return err
		}
		return nil
	})
	if err == nil {
		observability.FeedbackVotes.WithLabelValues(voteLabel(value)).Inc()
	}
	return err
}

func voteLabel(value int) string {
	if value > 0 {
		return "up"
	}
	return "down"
}

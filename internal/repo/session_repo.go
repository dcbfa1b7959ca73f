// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat sessions.
//
// Sessions are always addressed by (public session ID, customer ID); a session
// owned by someone else is indistinguishable from a missing one and yields
// ErrNotFound.
package repo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// CreateSession inserts a new session with fresh storage and public IDs.
func CreateSession(ctx context.Context, db *gorm.DB, customerID, title string) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	s := &domain.ChatSession{
		ID:            uuid.NewString(),
		SessionID:     uuid.NewString(),
		CustomerID:    customerID,
		Title:         title,
		Keywords:      []string{},
		FoodNames:     []string{},
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by public ID and owner.
func GetSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("session_id = ? AND customer_id = ?", sessionID, customerID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountSessions returns the number of sessions owned by customerID.
func CountSessions(ctx context.Context, db *gorm.DB, customerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error
	return total, err
}

// ListSessionsPage returns a page of sessions, most recently active first.
func ListSessionsPage(ctx context.Context, db *gorm.DB, customerID string, offset, limit int) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("last_message_at desc, created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SearchSessions matches term as a case-insensitive substring of the title,
// keywords or food names. LIKE wildcards in term are matched literally.
func SearchSessions(ctx context.Context, db *gorm.DB, customerID, term string, limit int) ([]domain.ChatSession, error) {
	term = strings.ToLower(term)
	match := db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(term)+"%")
	// Keywords and food names are stored as JSON arrays; JSON syntax in the
	// needle would match the encoding instead of a value.
	if needle := stripJSON(term); needle != "" {
		pattern := "%" + escapeLike(needle) + "%"
		match = match.
			Or(`LOWER(keywords) LIKE ? ESCAPE '\'`, pattern).
			Or(`LOWER(food_names) LIKE ? ESCAPE '\'`, pattern)
	}
	var out []domain.ChatSession
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where(match).
		Order("last_message_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RenameSession sets an explicit title and locks it against auto-generation.
func RenameSession(ctx context.Context, db *gorm.DB, sessionID, customerID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("session_id = ? AND customer_id = ?", sessionID, customerID).
		Updates(map[string]any{"title": title, "title_locked": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and its messages. The customer row is
// never touched.
func DeleteSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := GetSession(ctx, tx, sessionID, customerID)
		if err != nil {
			return err
		}
		var ids []string
		if err := tx.Model(&domain.Message{}).Where("chat_session_id = ?", s.ID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Where("message_id IN ?", ids).Delete(&domain.Feedback{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("chat_session_id = ?", s.ID).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ChatSession{}, "id = ?", s.ID).Error
	})
}

// SessionUpdate carries the derived fields written after an append.
type SessionUpdate struct {
	Title         string
	Keywords      []string
	FoodNames     []string
	Added         int
	LastMessageAt time.Time
}

// ApplySessionUpdate bumps message_count by u.Added in the same statement that
// writes the derived fields, so the counter never drifts from the log.
func ApplySessionUpdate(ctx context.Context, db *gorm.DB, id string, u SessionUpdate) error {
	// Map updates bypass the json serializer, so encode the lists here.
	kw, err := json.Marshal(nonNil(u.Keywords))
	if err != nil {
		return err
	}
	fn, err := json.Marshal(nonNil(u.FoodNames))
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":           u.Title,
			"keywords":        string(kw),
			"food_names":      string(fn),
			"message_count":   gorm.Expr("message_count + ?", u.Added),
			"last_message_at": u.LastMessageAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func stripJSON(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '"', ',', '[', ']', '{', '}', ':', '\\':
			return -1
		}
		return r
	}, s))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

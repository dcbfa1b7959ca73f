// Package services – SessionService
//
// This file implements the SessionService, which manages the lifecycle of
// chat sessions. It validates and normalizes titles, enforces ownership
// rules, and coordinates repository operations for creating, listing (with
// pagination), searching, renaming and deleting sessions. Appending the
// messages of a turn lives in AppendExchange, shared by the chat and recipe
// paths.
//
// A session owned by another customer is reported as ErrSessionNotFound so
// its existence is never revealed.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/keywords"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/search"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
)

// SessionRepo defines the repository contract required by SessionService.
type SessionRepo interface {
	// CreateSession inserts a new session for the customer.
	CreateSession(ctx context.Context, db *gorm.DB, customerID, title string) (*domain.ChatSession, error)

	// GetSession fetches a session by public ID ensuring it belongs to the customer.
	GetSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) (*domain.ChatSession, error)

	// CountSessions returns the total number of sessions for pagination.
	CountSessions(ctx context.Context, db *gorm.DB, customerID string) (int64, error)

	// ListSessionsPage returns a page of sessions, most recently active first.
	ListSessionsPage(ctx context.Context, db *gorm.DB, customerID string, offset, limit int) ([]domain.ChatSession, error)

	// SearchSessions matches a term against titles, keywords and food names.
	SearchSessions(ctx context.Context, db *gorm.DB, customerID, term string, limit int) ([]domain.ChatSession, error)

	// RenameSession sets an explicit title.
	RenameSession(ctx context.Context, db *gorm.DB, sessionID, customerID, title string) error

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) error
}

// SessionService provides session-level operations.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the session repository used by this service.
	Repo SessionRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// PageMax caps page sizes and search limits.
	PageMax int
}

// NewSessionService constructs a SessionService with sane defaults.
func NewSessionService(db *gorm.DB, r SessionRepo) *SessionService {
	return &SessionService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 100,
		PageMax:     100,
	}
}

// Create inserts a new session. A blank title becomes "New Chat".
func (s *SessionService) Create(ctx context.Context, customerID, title string) (*domain.ChatSession, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	return s.Repo.CreateSession(ctx, s.DB, customerID, s.clip(title))
}

// List returns a page of sessions, most recently active first, and the total.
func (s *SessionService) List(ctx context.Context, customerID string, page, pageSize int) ([]domain.ChatSession, int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.NewPage(page, pageSize, 50, s.PageMax)

	total, err := s.Repo.CountSessions(ctx, s.DB, customerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatSession{}, 0, nil
	}
	items, err := s.Repo.ListSessionsPage(ctx, s.DB, customerID, pg.Offset(), pg.Size)
	return items, total, err
}

// Get returns one session owned by the customer.
func (s *SessionService) Get(ctx context.Context, customerID, sessionID string) (*domain.ChatSession, error) {
	sess, err := s.Repo.GetSession(ctx, s.DB, sessionID, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// Messages returns messages of a session in append order. limit defaults to
// 100; skip is the number of leading messages to omit.
func (s *SessionService) Messages(ctx context.Context, customerID, sessionID string, limit, skip int) ([]domain.Message, int64, error) {
	sess, err := s.Get(ctx, customerID, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 100
	}
	if s.PageMax > 0 && limit > s.PageMax {
		limit = s.PageMax
	}
	if skip < 0 {
		skip = 0
	}
	total, err := repo.CountMessages(ctx, s.DB, sess.ID)
	if err != nil {
		return nil, 0, err
	}
	msgs, err := repo.ListMessagesPage(ctx, s.DB, sess.ID, skip, limit)
	return msgs, total, err
}

// Rename sets an explicit title, which locks it against auto-generation.
func (s *SessionService) Rename(ctx context.Context, customerID, sessionID, title string) (*domain.ChatSession, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if err := s.Repo.RenameSession(ctx, s.DB, sessionID, customerID, s.clip(title)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s.Get(ctx, customerID, sessionID)
}

// Delete removes a session and its messages. The customer is untouched.
func (s *SessionService) Delete(ctx context.Context, customerID, sessionID string) error {
	if err := s.Repo.DeleteSession(ctx, s.DB, sessionID, customerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Search returns sessions whose title, keywords or food names contain term.
// Matches are ranked by token overlap with term, most recently active first
// among equals. A blank term yields no results.
func (s *SessionService) Search(ctx context.Context, customerID, term string, limit int) ([]domain.ChatSession, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []domain.ChatSession{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if s.PageMax > 0 && limit > s.PageMax {
		limit = s.PageMax
	}
	found, err := s.Repo.SearchSessions(ctx, s.DB, customerID, term, limit*searchCandidates)
	if err != nil {
		return nil, err
	}
	ranked := search.Items(search.Rank(term, found, sessionText))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// searchCandidates widens the substring query so ranking sees more than
// the page it returns.
const searchCandidates = 4

func sessionText(s domain.ChatSession) string {
	return s.Title + " " + strings.Join(s.Keywords, " ") + " " + strings.Join(s.FoodNames, " ")
}

// clip truncates a title to the configured maximum rune length.
func (s *SessionService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

// Exchange is one turn to append: the user's message followed by the reply.
type Exchange struct {
	UserText string
	AI       *domain.Message
	// Now is the server timestamp for the turn; zero means time.Now.
	Now time.Time
}

// AppendExchange stores the user message and the AI reply of one turn in
// order, inside a single transaction, and refreshes the session's derived
// fields. Keywords and food names are extracted from the user message only.
// The title is generated while the session still has the default title and
// was never renamed.
//
// Messages take consecutive Seq values from the session's message_count,
// which is the order they are listed in. Timestamps are clamped to land
// strictly after the last stored message so LastMessageAt never decreases.
func AppendExchange(ctx context.Context, db *gorm.DB, sess *domain.ChatSession, ex Exchange) (*domain.Message, error) {
	now := ex.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var userMsg *domain.Message
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Write first so the row is locked before it is read; concurrent turns
		// on one session then apply in sequence.
		if err := tx.Model(&domain.ChatSession{}).Where("id = ?", sess.ID).
			Update("updated_at", now).Error; err != nil {
			return err
		}
		var cur domain.ChatSession
		if err := tx.Where("id = ?", sess.ID).First(&cur).Error; err != nil {
			return err
		}
		ts := now
		if ts.Before(cur.LastMessageAt) {
			ts = cur.LastMessageAt
		}
		if cur.MessageCount > 0 && !ts.After(cur.LastMessageAt) {
			ts = cur.LastMessageAt.Add(time.Millisecond)
		}

		userMsg = &domain.Message{
			ChatSessionID: cur.ID,
			Sender:        domain.SenderUser,
			Text:          ex.UserText,
			Seq:           cur.MessageCount + 1,
			CreatedAt:     ts,
		}
		if err := repo.CreateMessage(ctx, tx, userMsg); err != nil {
			return err
		}
		added := 1
		if ex.AI != nil {
			ex.AI.ChatSessionID = cur.ID
			ex.AI.Sender = domain.SenderAI
			ex.AI.Seq = cur.MessageCount + 2
			ex.AI.CreatedAt = ts.Add(time.Millisecond)
			if err := repo.CreateMessage(ctx, tx, ex.AI); err != nil {
				return err
			}
			added++
			ts = ex.AI.CreatedAt
		}

		found := keywords.Extract(ex.UserText)
		upd := repo.SessionUpdate{
			Title:         cur.Title,
			Keywords:      keywords.Merge(cur.Keywords, found.Keywords),
			FoodNames:     keywords.Merge(cur.FoodNames, found.FoodNames),
			Added:         added,
			LastMessageAt: ts,
		}
		if !cur.TitleLocked && cur.Title == domain.DefaultSessionTitle {
			if t, ok := keywords.Title(keywords.Result{Keywords: upd.Keywords, FoodNames: upd.FoodNames}); ok {
				upd.Title = t
			}
		}
		if err := repo.ApplySessionUpdate(ctx, tx, cur.ID, upd); err != nil {
			return err
		}

		sess.Title = upd.Title
		sess.Keywords = upd.Keywords
		sess.FoodNames = upd.FoodNames
		sess.MessageCount = cur.MessageCount + added
		sess.LastMessageAt = upd.LastMessageAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return userMsg, nil
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

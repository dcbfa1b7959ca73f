package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
)

// newTestDB opens a file-backed SQLite database in a temp dir with every
// table migrated. File-backed so concurrent tests exercise real locking.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB, id string, credits int) *domain.Customer {
	t.Helper()
	c := &domain.Customer{ID: id, Email: id + "@example.com", FirstName: "Test", Credits: credits, Status: domain.CustomerActive}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func seedSession(t *testing.T, db *gorm.DB, customerID string) *domain.ChatSession {
	t.Helper()
	s, err := repo.CreateSession(context.Background(), db, customerID, domain.DefaultSessionTitle)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func balanceOf(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	b, err := repo.GetCredits(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetCredits: %v", err)
	}
	return b
}

// fakeCompleter returns reply, or err when set, and counts calls.
type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	reqs  []llm.Request
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.reply, TokensUsed: 12, Model: "test-model"}, nil
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rateLimited(msg string) error {
	return &llm.ProviderError{Kind: llm.Transient, Status: 429, Model: "test-model", Fallback: llm.FallbackResponse(msg)}
}

package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

// CreateRecipe inserts r, assigning an ID when empty.
func CreateRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(r).Error
}

// ListRecipes returns a customer's recipes, newest first.
func ListRecipes(ctx context.Context, db *gorm.DB, customerID string, offset, limit int) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetRecipe fetches a recipe owned by customerID.
func GetRecipe(ctx context.Context, db *gorm.DB, id, customerID string) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := db.WithContext(ctx).Where("id = ? AND customer_id = ?", id, customerID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

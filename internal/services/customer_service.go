// Package services – CustomerService
//
// Signup, login and profile management. Passwords are stored as bcrypt
// hashes; successful signup and login return a signed access token. New
// customers receive the configured welcome grant in the same insert that
// creates them.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/auth"
	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/validation"
)

// CustomerService implements account and profile use-cases.
type CustomerService struct {
	DB           *gorm.DB
	Tokens       *auth.Tokens
	WelcomeGrant int
}

// SignupInput is the validated signup form.
type SignupInput struct {
	Email     string `json:"email"      validate:"required,email,max=255"`
	Password  string `json:"password"   validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
}

// ProfileInput is the validated profile form. Nil slices clear the field.
type ProfileInput struct {
	SkillLevel          string   `json:"skill_level"          validate:"omitempty,skill"`
	DietaryPreferences  []string `json:"dietary_preferences"  validate:"max=10,dive,diet"`
	Allergies           []string `json:"allergies"            validate:"max=20,dive,notblank,max=50"`
	FavoriteIngredients []string `json:"favorite_ingredients" validate:"max=30,dive,notblank,max=50"`
	DislikedIngredients []string `json:"disliked_ingredients" validate:"max=30,dive,notblank,max=50"`
	PhoneNumber         string   `json:"phone_number"         validate:"omitempty,e164"`
	Age                 *int     `json:"age"                  validate:"omitempty,min=13,max=120"`
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Customer *domain.Customer
	Token    string
}

// Signup registers a customer and issues a token.
func (s *CustomerService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	c := &domain.Customer{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Credits:      s.WelcomeGrant,
		Status:       domain.CustomerActive,
	}
	if err := repo.CreateCustomer(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if s.WelcomeGrant > 0 {
		observability.CreditsGranted.WithLabelValues(SourceWelcome).Add(float64(s.WelcomeGrant))
	}
	log.Ctx(ctx).Info().Str("customer_id", c.ID).Int("credits", c.Credits).Msg("customer signed up")
	return s.issue(c)
}

// Login verifies credentials, records the login and issues a token.
func (s *CustomerService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	c, err := repo.GetCustomerByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if c.PasswordHash == "" || !auth.CheckPassword(c.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if c.Status != domain.CustomerActive {
		return nil, ErrAccountDisabled
	}
	now := time.Now().UTC()
	if err := repo.TouchLogin(ctx, s.DB, c.ID, now); err != nil {
		return nil, err
	}
	c.LastLoginAt = &now
	return s.issue(c)
}

// Get returns the customer record.
func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := repo.GetCustomer(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	return c, err
}

// UpdateProfile validates and replaces the cooking profile.
func (s *CustomerService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*domain.Customer, error) {
	in.SkillLevel = strings.ToLower(strings.TrimSpace(in.SkillLevel))
	in.DietaryPreferences = normalizeList(in.DietaryPreferences, true)
	in.Allergies = normalizeList(in.Allergies, false)
	in.FavoriteIngredients = normalizeList(in.FavoriteIngredients, false)
	in.DislikedIngredients = normalizeList(in.DislikedIngredients, false)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	p := domain.Profile{
		SkillLevel:          in.SkillLevel,
		DietaryPreferences:  in.DietaryPreferences,
		Allergies:           in.Allergies,
		FavoriteIngredients: in.FavoriteIngredients,
		DislikedIngredients: in.DislikedIngredients,
		PhoneNumber:         in.PhoneNumber,
		Age:                 in.Age,
	}
	if err := repo.UpdateProfile(ctx, s.DB, id, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *CustomerService) issue(c *domain.Customer) (*AuthResult, error) {
	tok, err := s.Tokens.Issue(c.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Customer: c, Token: tok}, nil
}

// normalizeList trims entries, drops blanks and duplicates, and optionally
// lower-cases. Order is preserved.
func normalizeList(in []string, lower bool) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

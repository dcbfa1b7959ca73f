// Package services – RecipeService
//
// Complete recipe generation. A generation costs one credit and follows the
// chat turn discipline: debit, call the model, refund once on failure. A
// successful recipe is stored and, when a session is given, the exchange is
// appended to it with the AI message linked to the recipe.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
	"github.com/tbourn/recipe-chat-backend/internal/validation"
)

// RecipeService generates and lists recipes.
type RecipeService struct {
	DB     *gorm.DB
	Ledger *Ledger
	LLM    llm.Completer
	// PageMax caps List page sizes.
	PageMax int
}

// RecipeInput is the validated generation request.
type RecipeInput struct {
	Ingredients []string `json:"ingredients"  validate:"required,min=1,max=30,dive,notblank,max=50"`
	Preferences string   `json:"preferences"  validate:"max=200"`
	Cuisine     string   `json:"cuisine"      validate:"max=50"`
	CookingTime string   `json:"cooking_time" validate:"max=50"`
	Servings    int      `json:"servings"     validate:"omitempty,min=1,max=20"`
	SessionID   string   `json:"session_id"   validate:"omitempty,max=64"`
}

// RecipeResult is the outcome of Generate. Recipe is nil when Fallback is set.
type RecipeResult struct {
	Recipe           *domain.Recipe
	Text             string
	Fallback         bool
	CreditsRemaining int
	MessageID        string
}

// Generate produces a recipe for the input. As with ChatOrchestrator.Send, a
// provider failure returns both a fallback result and the *llm.ProviderError.
func (s *RecipeService) Generate(ctx context.Context, customerID string, in RecipeInput) (*RecipeResult, error) {
	ctx, span := otel.Tracer("services/RecipeService").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	in.Ingredients = normalizeList(in.Ingredients, false)
	in.Preferences = strings.TrimSpace(in.Preferences)
	in.Cuisine = strings.TrimSpace(in.Cuisine)
	in.CookingTime = strings.TrimSpace(in.CookingTime)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var sess *domain.ChatSession
	if in.SessionID != "" {
		ss, err := repo.GetSession(ctx, s.DB, in.SessionID, customerID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if err != nil {
			return nil, err
		}
		sess = ss
	}

	profile, err := resolveProfile(ctx, s.DB, customerID, nil)
	if err != nil {
		return nil, err
	}
	req := llm.Request{
		Profile: profile,
		Message: recipeAsk(in),
		Recipe: &llm.RecipeSpec{
			Ingredients: in.Ingredients,
			Preferences: in.Preferences,
			Cuisine:     in.Cuisine,
			CookingTime: in.CookingTime,
			Servings:    in.Servings,
		},
	}

	comp, balance, perr, err := spend(ctx, s.Ledger, s.LLM, customerID, req)
	if err != nil {
		return nil, err
	}
	pctx := context.WithoutCancel(ctx)
	res := &RecipeResult{CreditsRemaining: balance}

	if perr != nil {
		res.Text, res.Fallback = perr.Fallback, true
		if sess != nil {
			ai := &domain.Message{Text: perr.Fallback, Fallback: true, Model: perr.Model}
			if _, err := AppendExchange(pctx, s.DB, sess, Exchange{UserText: req.Message, AI: ai}); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("persist fallback recipe turn failed")
			} else {
				res.MessageID = ai.ID
			}
		}
		return res, perr
	}

	rec := &domain.Recipe{
		CustomerID:  customerID,
		Title:       recipeTitle(comp.Text, in.Ingredients),
		Body:        comp.Text,
		Ingredients: in.Ingredients,
		Model:       comp.Model,
	}
	if err := repo.CreateRecipe(pctx, s.DB, rec); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("customer_id", customerID).Msg("store recipe failed after debit")
		res.Text = comp.Text
		return res, nil
	}
	res.Recipe, res.Text = rec, comp.Text

	if sess != nil {
		id := rec.ID
		ai := &domain.Message{Text: comp.Text, Model: comp.Model, TokensUsed: comp.TokensUsed, RecipeGenerated: true, RecipeID: &id}
		if _, err := AppendExchange(pctx, s.DB, sess, Exchange{UserText: req.Message, AI: ai}); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("session_id", sess.SessionID).Msg("persist recipe turn failed")
		} else {
			res.MessageID = ai.ID
		}
	}
	return res, nil
}

// List returns the customer's recipes, newest first.
func (s *RecipeService) List(ctx context.Context, customerID string, page, pageSize int) ([]domain.Recipe, error) {
	pg := utils.NewPage(page, pageSize, 20, s.PageMax)
	return repo.ListRecipes(ctx, s.DB, customerID, pg.Offset(), pg.Size)
}

// Get returns one recipe owned by the customer.
func (s *RecipeService) Get(ctx context.Context, customerID, id string) (*domain.Recipe, error) {
	r, err := repo.GetRecipe(ctx, s.DB, id, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRecipeNotFound
	}
	return r, err
}

// recipeAsk is the user-side text recorded for a generation.
func recipeAsk(in RecipeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a recipe with: %s", strings.Join(in.Ingredients, ", "))
	if in.Cuisine != "" {
		fmt.Fprintf(&b, " (%s)", in.Cuisine)
	}
	if in.Preferences != "" {
		fmt.Fprintf(&b, ". Preferences: %s", in.Preferences)
	}
	return b.String()
}

// recipeTitle takes the first heading or line of the generated text.
func recipeTitle(text string, ingredients []string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "#*"))
		line = strings.TrimPrefix(line, "Recipe:")
		line = strings.TrimSpace(line)
		if line != "" {
			return clipRunes(line, 255)
		}
	}
	return clipRunes("Recipe with "+strings.Join(ingredients, ", "), 255)
}

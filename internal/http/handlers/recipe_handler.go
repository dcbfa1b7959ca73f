// Recipe HTTP handlers.
//
// This file exposes REST endpoints for generated recipes:
//   - POST /recipes        (generate a complete recipe, costs one credit)
//   - GET  /recipes        (list saved recipes, newest first)
//   - GET  /recipes/{id}   (fetch one)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/services"
)

// RecipeResponse is the body of a successful generation.
type RecipeResponse struct {
	Success          bool           `json:"success" example:"true"`
	Recipe           *domain.Recipe `json:"recipe"`
	CreditsRemaining int            `json:"credits_remaining" example:"4"`
	MessageID        string         `json:"message_id,omitempty"`
}

// ListRecipesResponse wraps a page of recipes.
type ListRecipesResponse struct {
	Recipes []domain.Recipe `json:"recipes"`
	Page    int             `json:"page"`
}

// GenerateRecipe godoc
// @ID          generateRecipe
// @Summary     Generate a recipe
// @Description Debits one credit and generates a complete recipe from the given ingredients. Provider failures are refunded and answered with a fallback like POST /chat.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.RecipeInput  true  "Ingredients and preferences"
// @Success     201   {object}  handlers.RecipeResponse
// @Failure     400   {object}  handlers.ErrorResponse       "Validation failed"
// @Failure     402   {object}  handlers.ErrorResponse       "Insufficient credits"
// @Failure     429   {object}  handlers.ChatFailureResponse "Provider rate limited (credit refunded)"
// @Failure     500   {object}  handlers.ChatFailureResponse "Provider failure (credit refunded)"
// @Router      /recipes [post]
func (h *Handlers) GenerateRecipe(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	var req services.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.recipes.Generate(c.Request.Context(), cid, req)
	if err != nil {
		var pe *llm.ProviderError
		if errors.As(err, &pe) && res != nil {
			status, code, msg := http.StatusInternalServerError, ErrCodeProviderFailed, "Error generating recipe"
			if pe.RateLimited() {
				status, code, msg = http.StatusTooManyRequests, ErrCodeProviderRateLimited, "Service temporarily busy. Please try again shortly."
			}
			c.JSON(status, ChatFailureResponse{
				Code:             code,
				Message:          msg,
				FallbackResponse: res.Text,
				CreditsRemaining: res.CreditsRemaining,
				SessionID:        req.SessionID,
				MessageID:        res.MessageID,
			})
			return
		}
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, RecipeResponse{
		Success:          true,
		Recipe:           res.Recipe,
		CreditsRemaining: res.CreditsRemaining,
		MessageID:        res.MessageID,
	})
}

// ListRecipes godoc
// @ID          listRecipes
// @Summary     List saved recipes
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListRecipesResponse
// @Router      /recipes [get]
func (h *Handlers) ListRecipes(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	page, pageSize := clampPagination(c, 20)
	items, err := h.recipes.List(c.Request.Context(), cid, page, pageSize)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Recipe{}
	}
	ok(c, http.StatusOK, ListRecipesResponse{Recipes: items, Page: page})
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a saved recipe
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Recipe ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Recipe
// @Failure     404  {object}  handlers.ErrorResponse "Recipe not found"
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	id, okRID := pathID(c, "recipe")
	if !okRID {
		return
	}
	rec, err := h.recipes.Get(c.Request.Context(), cid, id)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, rec)
}

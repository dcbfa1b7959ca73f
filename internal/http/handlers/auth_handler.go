// Account HTTP handlers.
//
// This file exposes REST endpoints for customer accounts:
//   - POST /auth/signup   (register, returns a bearer token)
//   - POST /auth/login    (authenticate, returns a bearer token)
//   - GET  /me            (current customer with credit balance)
//   - PUT  /me/profile    (update cooking profile)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/services"
)

//
// DTOs
//

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required" example:"cook@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// AuthResponse carries the issued token and the customer it belongs to.
type AuthResponse struct {
	Token    string           `json:"token"`
	Customer *domain.Customer `json:"customer"`
}

// Signup godoc
// @ID          signup
// @Summary     Register a customer
// @Description Creates an account with the welcome credit grant and returns a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      services.SignupInput  true  "Signup payload"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse "Email already registered"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req services.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.customers.Signup(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, AuthResponse{Token: res.Token, Customer: res.Customer})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse "Invalid credentials"
// @Failure     403   {object}  handlers.ErrorResponse "Account not active"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	res, err := h.customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, AuthResponse{Token: res.Token, Customer: res.Customer})
}

// Me godoc
// @ID          me
// @Summary     Current customer
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Customer
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Customer not found"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	cust, err := h.customers.Get(c.Request.Context(), cid)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cust)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update cooking profile
// @Description Replaces the skill level, dietary preferences, allergies and ingredient likes of the current customer.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ProfileInput  true  "Profile"
// @Success     200   {object}  domain.Customer
// @Failure     400   {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse "Unauthorized"
// @Router      /me/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	var req services.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cust, err := h.customers.UpdateProfile(c.Request.Context(), cid, req)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cust)
}

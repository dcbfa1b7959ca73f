// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling customer. Authenticate reads a Bearer token
// (and, for trusted internal callers, the X-User-ID header) and stores the
// customer ID under the "userID" Gin key; it never rejects anonymous
// requests so that public routes and the rate limiter can share it.
// RequireAuth guards the routes that need a customer.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries a customer ID from trusted internal callers.
const HeaderUserID = "X-User-ID"

const userIDKey = "userID"

// TokenParser validates a bearer token and returns the customer ID in it.
type TokenParser interface {
	Parse(raw string) (string, error)
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	Tokens TokenParser
	// TrustUserHeader accepts X-User-ID when no bearer token is sent. Enable
	// only behind a gateway that strips the header from public traffic.
	TrustUserHeader bool
}

// Authenticate resolves the customer of a request.
//
//   - A valid "Authorization: Bearer <jwt>" sets the customer ID.
//   - An invalid or expired bearer token is rejected with 401.
//   - Without a token, X-User-ID is used when TrustUserHeader is set.
//   - Otherwise the request continues anonymously.
//
// The request-scoped logger is enriched with customer_id.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if raw, ok := bearer(c.GetHeader("Authorization")); ok {
			if opts.Tokens == nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			cid, err := opts.Tokens.Parse(raw)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			id = cid
		} else if opts.TrustUserHeader {
			id = strings.TrimSpace(c.GetHeader(HeaderUserID))
		}

		if id != "" {
			c.Set(userIDKey, id)
			setLogger(c, LoggerFrom(c).With().Str("customer_id", id).Logger())
		}
		c.Next()
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if customerIDFromCtx(c) == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// CustomerID returns the authenticated customer ID and whether one is set.
func CustomerID(c *gin.Context) (string, bool) {
	id := customerIDFromCtx(c)
	return id, id != ""
}

func customerIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

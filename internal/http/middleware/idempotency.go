// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key handling for chat turns. The
// validator checks the header, stashes the key for handlers, and when a
// lookup is configured asks whether a completed turn already exists for
// (customer, session, key). A detected replay is flagged so the rate limiter
// lets it through; serving the stored reply stays with the chat service,
// which never debits a replayed turn.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored result exists
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed result for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope returns the session a key belongs to. Nil uses the :id path
	// parameter, then session_id in a JSON body, then the query parameter.
	Scope func(*gin.Context) string
}

// IdempotencyLookup answers whether a still-valid result exists for
// (customerID, sessionID, key). Errors do not block the request.
type IdempotencyLookup func(ctx context.Context, customerID, sessionID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// responds 400 "bad_idempotency_key" for malformed keys. Anonymous requests
// and requests without a session scope are never looked up.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	scope := opts.Scope
	if scope == nil {
		scope = defaultIdemScope
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			cid := customerIDFromCtx(c)
			sid := scope(c)
			if cid != "" && sid != "" {
				exists, err := lookup(c.Request.Context(), cid, sid, key, time.Now().UTC())
				if err != nil {
					LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
				}
				if exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// defaultIdemScope resolves the session the way the chat handlers do: the
// :id path parameter, then session_id in a JSON body, then the query.
func defaultIdemScope(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if id := bodySessionID(c); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("session_id"))
}

// bodySessionID peeks session_id from a JSON body and puts the body back
// for the handler.
func bodySessionID(c *gin.Context) string {
	if c.Request.Body == nil || c.ContentType() != gin.MIMEJSON {
		return ""
	}
	raw, err := c.GetRawData()
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var peek struct {
		SessionID string `json:"session_id"`
	}
	if json.Unmarshal(raw, &peek) != nil {
		return ""
	}
	return strings.TrimSpace(peek.SessionID)
}

// Message HTTP handlers.
//
// This file exposes the read side of a session's message log:
//   - GET /sessions/{id}/messages   (ascending, limit/skip, ETag support)
//
// Appending goes through the chat turn endpoints in chat_handler.go.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

// ListMessagesResponse contains a window of session messages.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Skip     int              `json:"skip"`
}

// clampWindow parses limit/skip from query parameters with defaults and caps.
func clampWindow(c *gin.Context) (limit, skip int) {
	limit = utils.AtoiDefault(c.Query("limit"), defaultMessageLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	skip = utils.AtoiDefault(c.Query("skip"), 0)
	if skip < 0 {
		skip = 0
	}
	return
}

// ListSessionMessages godoc
// @ID          listSessionMessages
// @Summary     List messages in a session
// @Description Returns messages in arrival order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string  true   "Session ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       limit          query   int     false  "Max messages"  minimum(1) maximum(500) default(100)
// @Param       skip           query   int     false  "Messages to skip"  minimum(0) default(0)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/messages [get]
func (h *Handlers) ListSessionMessages(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	sid, okSID := pathID(c, "session")
	if !okSID {
		return
	}
	ctx := c.Request.Context()
	limit, skip := clampWindow(c)

	// Ownership first; the ETag must not leak the existence of foreign sessions.
	sess, err := h.sessions.Get(ctx, cid, sid)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}

	if db := sessionDB(h.sessions); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, sess.ID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, sid, count, ts, limit, skip)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	msgs, total, err := h.sessions.Messages(ctx, cid, sid, limit, skip)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs, Total: total, Limit: limit, Skip: skip})
}

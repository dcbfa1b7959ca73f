// Session HTTP handlers.
//
// This file exposes REST endpoints for chat sessions:
//   - POST   /sessions              (create)
//   - GET    /sessions              (list, paginated, ETag support)
//   - GET    /sessions/search?q=    (search titles, keywords and food names)
//   - GET    /sessions/{id}         (fetch one)
//   - PUT    /sessions/{id}/title   (rename)
//   - DELETE /sessions/{id}         (delete with its messages)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/services"
	"github.com/tbourn/recipe-chat-backend/internal/utils"
)

//
// DTOs
//

// CreateSessionRequest is the JSON payload for creating a session.
type CreateSessionRequest struct {
	// Title optionally sets the session title; "New Chat" is used when empty.
	Title string `json:"title" example:"Weeknight dinners"`
}

// UpdateSessionTitleRequest is the JSON payload for renaming a session.
type UpdateSessionTitleRequest struct {
	// Title is the new session name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Spicy Chicken Recipe"`
}

// ListSessionsResponse wraps a page of sessions and pagination information.
type ListSessionsResponse struct {
	Sessions   []domain.ChatSession `json:"sessions"`
	Pagination Pagination           `json:"pagination"`
}

// SearchSessionsResponse wraps search hits, most recent first.
type SearchSessionsResponse struct {
	Sessions []domain.ChatSession `json:"sessions"`
}

// sessionDB reaches the concrete service's handle for conditional responses.
func sessionDB(svc SessionService) *gorm.DB {
	if s, ok := svc.(*services.SessionService); ok {
		return s.DB
	}
	return nil
}


//
// Handlers
//

// CreateSession godoc
// @ID          createSession
// @Summary     Create a chat session
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateSessionRequest  false  "Create session payload"
// @Success     201   {object}  domain.ChatSession
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	sess, err := h.sessions.Create(c.Request.Context(), cid, strings.TrimSpace(req.Title))
	if err != nil {
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, sess)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List chat sessions (paginated)
// @Description Returns a page of the customer's sessions, most recently active first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(50)
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c, 50)

	// ETag pre-check (best effort).
	if db := sessionDB(h.sessions); db != nil {
		count, maxTS, err := repo.SessionsStats(ctx, db, cid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"sessions:%s:%d:%d:%d:%d"`, cid, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.sessions.List(ctx, cid, page, pageSize)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.ChatSession{}
	}
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// SearchSessions godoc
// @ID          searchSessions
// @Summary     Search chat sessions
// @Description Case-insensitive substring match against titles, keywords and food names.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
// @Param       q      query  string  true   "Search term"
// @Param       limit  query  int     false  "Max results"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.SearchSessionsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /sessions/search [get]
func (h *Handlers) SearchSessions(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 20)

	items, err := h.sessions.Search(c.Request.Context(), cid, term, limit)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.ChatSession{}
	}
	ok(c, http.StatusOK, SearchSessionsResponse{Sessions: items})
}

// GetSession godoc
// @ID          getSession
// @Summary     Get a chat session
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Session ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.ChatSession
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	sid, okSID := pathID(c, "session")
	if !okSID {
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), cid, sid)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, sess)
}

// UpdateSessionTitle godoc
// @ID          updateSessionTitle
// @Summary     Rename a chat session
// @Description Sets an explicit title; generated titles no longer replace it.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path    string  true  "Session ID (UUID)"  format(uuid)
// @Param       body  body    handlers.UpdateSessionTitleRequest  true  "New title"
// @Success     200   {object} domain.ChatSession
// @Failure     400   {object} handlers.ErrorResponse "Bad request"
// @Failure     404   {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id}/title [put]
func (h *Handlers) UpdateSessionTitle(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	sid, okSID := pathID(c, "session")
	if !okSID {
		return
	}
	var req UpdateSessionTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	sess, err := h.sessions.Rename(c.Request.Context(), cid, sid, req.Title)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, sess)
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a chat session
// @Description Removes the session and its messages. The customer and its credits are untouched.
// @Tags        Sessions
// @Security    BearerAuth
// @Param       id   path    string  true  "Session ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /sessions/{id} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	cid, okID := customerID(c)
	if !okID {
		return
	}
	sid, okSID := pathID(c, "session")
	if !okSID {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), cid, sid); err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

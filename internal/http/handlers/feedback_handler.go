package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LeaveFeedbackRequest rates an assistant reply: 1 for a thumbs-up, -1 for
// a thumbs-down.
type LeaveFeedbackRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Rate an assistant reply
// @Description Records a thumbs-up (1) or thumbs-down (-1) on an AI message in one of the customer's sessions. Each message can be rated once.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Message ID (UUID)"  format(uuid)
// @Param       body  body  handlers.LeaveFeedbackRequest true "Rating"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     403  {object} handlers.ErrorResponse "Message is not an AI reply"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     409  {object} handlers.ErrorResponse "Already rated"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /messages/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	cid, okCID := customerID(c)
	if !okCID {
		return
	}
	mid, okMID := pathID(c, "message")
	if !okMID {
		return
	}
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}
	if err := h.feedback.Leave(c.Request.Context(), cid, mid, req.Value); err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// TurnRequest is the body of POST /api/assistant/sessions/:id/turns
type TurnRequest struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// GetSession handles GET /api/assistant/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	session, err := h.services.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get session")
		return
	}
	ok(c, http.StatusOK, session)
}

// ClearSession handles DELETE /api/assistant/sessions/:id
func (h *Handlers) ClearSession(c *gin.Context) {
	if err := h.services.Sessions.Clear(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "clear session")
		return
	}
	ok(c, http.StatusOK, gin.H{"cleared": true})
}

// AppendTurn handles POST /api/assistant/sessions/:id/turns
func (h *Handlers) AppendTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "role and content are required")
		return
	}

	session, err := h.services.Sessions.AppendTurn(c.Request.Context(), c.Param("id"), req.Role, req.Content)
	if err != nil {
		h.writeError(c, err, "append turn")
		return
	}
	ok(c, http.StatusOK, session)
}

// SetPending handles PUT /api/assistant/sessions/:id/pending
func (h *Handlers) SetPending(c *gin.Context) {
	var pending entity.PendingAction
	if err := c.ShouldBindJSON(&pending); err != nil {
		fail(c, http.StatusBadRequest, "invalid pending action")
		return
	}

	session, err := h.services.Sessions.SetPending(c.Request.Context(), c.Param("id"), pending)
	if err != nil {
		h.writeError(c, err, "set pending action")
		return
	}
	ok(c, http.StatusOK, session)
}

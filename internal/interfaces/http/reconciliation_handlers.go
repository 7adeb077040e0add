package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SyncBooks handles POST /api/reconciliation/:realmId/sync
func (h *Handlers) SyncBooks(c *gin.Context) {
	result, err := h.services.Reconciliation.SyncBookTransactions(c.Request.Context(), c.Param("realmId"))
	if err != nil {
		h.writeError(c, err, "sync books")
		return
	}
	ok(c, http.StatusOK, result)
}

// ListGhosts handles GET /api/reconciliation/:realmId/ghosts
func (h *Handlers) ListGhosts(c *gin.Context) {
	ghosts, err := h.services.Reconciliation.DetectGhosts(c.Request.Context(), c.Param("realmId"))
	if err != nil {
		h.writeError(c, err, "detect ghosts")
		return
	}
	ok(c, http.StatusOK, ghosts)
}

// ExportGhosts handles GET /api/reconciliation/:realmId/ghosts/export
func (h *Handlers) ExportGhosts(c *gin.Context) {
	realmID := c.Param("realmId")
	ghosts, err := h.services.Reconciliation.DetectGhosts(c.Request.Context(), realmID)
	if err != nil {
		h.writeError(c, err, "detect ghosts")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteGhostReport(&buf, realmID, ghosts, h.now()); err != nil {
		h.writeError(c, err, "export ghosts")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ghosts-%s.xlsx"`, realmID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// PreviewVat handles POST /api/v1/vat/preview. The response is advisory:
// the engine recomputes VAT from live prices during order creation and a
// stale preview simply fails reconciliation there.
func (h *Handlers) PreviewVat(c *gin.Context) {
	var req models.VatPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.JSON(http.StatusOK, h.service.PreviewVat(&req))
}

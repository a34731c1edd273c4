package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetRunStats handles GET /api/machines/:id/stats/runs. The denial is
// collapsed with "no such machine", same as the detail view.
func (h *Handler) GetRunStats(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	id, ok := machineID(c)
	if !ok {
		return
	}

	hasAccess, err := h.guard.HasMachineAccess(c.Request.Context(), claims.UserID, id)
	if err != nil {
		serverError(c, err, "Server error")
		return
	}
	if !hasAccess {
		c.JSON(http.StatusNotFound, gin.H{"message": "Machine not found or access denied"})
		return
	}

	windowDays := 30
	if daysParam := c.Query("days"); daysParam != "" {
		days, err := strconv.Atoi(daysParam)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid days parameter"})
			return
		}
		windowDays = days
	}

	stats, err := h.store.GetRunStats(c.Request.Context(), id, windowDays)
	if err != nil {
		serverError(c, err, "Failed to compute run stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

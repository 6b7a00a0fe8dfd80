package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(c *gin.Context) {
	if err := h.checker.HealthCheck(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Index describes the service.
func (h *Handler) Index(c *gin.Context) {
	success(c, http.StatusOK, gin.H{
		"message": "Grievance intake service is running",
		"endpoints": []string{
			"POST /process_grievance",
			"POST /webhook/whatsapp",
			"GET /api/grievances/:id",
			"GET /health",
		},
	})
}

// Health reports dependency status. A failing database makes it 503.
func (h *Handler) Health(c *gin.Context) {
	database := "up"
	code := http.StatusOK
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			database = "down"
			code = http.StatusServiceUnavailable
		}
	}

	status := "healthy"
	if code != http.StatusOK {
		status = "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":           status,
		"database":         database,
		"whatsapp_enabled": h.Twilio != nil,
		"llm_enabled":      h.Options.LLMEnabled,
		"time":             time.Now().UTC().Format(time.RFC3339),
	})
}

// TestTwilio checks that the configured Twilio credentials work.
func (h *Handler) TestTwilio(c *gin.Context) {
	if h.Twilio == nil {
		fail(c, http.StatusServiceUnavailable, "Twilio is not configured")
		return
	}
	status, err := h.Twilio.AccountStatus(c.Request.Context())
	if err != nil {
		h.log.Warn("Twilio account check failed", zap.Error(err))
		fail(c, http.StatusBadGateway, "Twilio account check failed: "+err.Error())
		return
	}
	success(c, http.StatusOK, gin.H{"account_status": status})
}

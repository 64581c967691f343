package handler

import (
	"net/http"
	"time"

	"carelink/internal/services"
	"carelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// DebugHandler exposes the operator surface: test sends, delivery metrics
// and delivery-log cleanup. Admin-only, wired behind RequireRole.
type DebugHandler struct {
	dispatcher *services.NotificationDispatcher
	telemetry  *services.TelemetryService
}

func NewDebugHandler(dispatcher *services.NotificationDispatcher, telemetry *services.TelemetryService) *DebugHandler {
	return &DebugHandler{dispatcher: dispatcher, telemetry: telemetry}
}

func (h *DebugHandler) TestSend(c *gin.Context) {
	var req httpdto.TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient_id", "INVALID_REQUEST"))
		return
	}

	n, err := h.dispatcher.Dispatch(c.Request.Context(), recipientID, services.NotificationInput{
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		IsActionable: req.IsActionable,
		ActionURL:    req.ActionURL,
		ExpiresAt:    req.ExpiresAt,
	}, nil)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromNotification(n)))
}

func (h *DebugHandler) Metrics(c *gin.Context) {
	window := time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid window", "INVALID_REQUEST"))
			return
		}
		window = parsed
	}

	metrics, err := h.telemetry.Metrics(c.Request.Context(), window)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(metrics))
}

func (h *DebugHandler) Cleanup(c *gin.Context) {
	olderThan := 30 * 24 * time.Hour
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid older_than", "INVALID_REQUEST"))
			return
		}
		olderThan = parsed
	}

	removed, err := h.telemetry.Cleanup(c.Request.Context(), olderThan)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": removed}))
}

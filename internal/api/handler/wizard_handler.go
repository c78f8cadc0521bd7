package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sitequeue/internal/api/middleware"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/service"
)

// WizardHandler serves the customer wizard: submission and status polling.
type WizardHandler struct {
	queue   *service.QueueService
	polling *service.PollingService
}

// NewWizardHandler creates a new wizard handler.
// Parameters:
//   - queue: queue service used for submission.
//   - polling: polling service used for status reads.
// Returns:
//   - *WizardHandler: initialized handler.
func NewWizardHandler(queue *service.QueueService, polling *service.PollingService) *WizardHandler {
	return &WizardHandler{queue: queue, polling: polling}
}

// SubmitResponse is returned when a request is accepted.
type SubmitResponse struct {
	RequestID         string               `json:"request_id"`
	Status            domain.RequestStatus `json:"status"`
	ExpiresAt         time.Time            `json:"expires_at"`
	PollIntervalMs    int64                `json:"poll_interval_ms"`
	MaxPollDurationMs int64                `json:"max_poll_duration_ms"`
}

// Submit handles POST /api/v1/wizard/requests.
func (h *WizardHandler) Submit(c *gin.Context) {
	var in service.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	req, err := h.queue.Submit(c.Request.Context(), in)
	if err != nil {
		respondCustomerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitResponse{
		RequestID:         req.ID,
		Status:            req.Status,
		ExpiresAt:         req.ExpiresAt,
		PollIntervalMs:    h.polling.Interval().Milliseconds(),
		MaxPollDurationMs: h.polling.MaxDuration().Milliseconds(),
	})
}

// GetStatus handles GET /api/v1/wizard/requests/:id/status.
func (h *WizardHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	ctx := logger.SetAIRequestID(c.Request.Context(), id)

	view, err := h.polling.GetStatus(ctx, id)
	if err != nil {
		respondCustomerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Events handles GET /api/v1/wizard/requests/:id/events.
// It streams a "status" event on every status change until the request is
// terminal, then closes. A "timeout" event ends streams that outlive the max
// poll duration.
func (h *WizardHandler) Events(c *gin.Context) {
	id := c.Param("id")
	ctx := logger.SetAIRequestID(c.Request.Context(), id)

	// fail fast with a plain 404 before switching to a stream
	if _, err := h.polling.GetStatus(ctx, id); err != nil {
		respondCustomerError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	err := h.polling.Watch(ctx, id, func(v *service.StatusView) error {
		c.SSEvent("status", v)
		c.Writer.Flush()
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrWatchTimeout):
		c.SSEvent("timeout", gin.H{"request_id": id})
	case ctx.Err() != nil:
		// client went away
	default:
		middleware.GetLogger(c).WithError(err).Warn("Status stream ended with error")
		c.SSEvent("error", gin.H{"error": "status temporarily unavailable"})
	}
	c.Writer.Flush()
}

// GetSessionStatus handles GET /api/v1/wizard/sessions/:sessionId/status.
func (h *WizardHandler) GetSessionStatus(c *gin.Context) {
	sessionID := c.Param("sessionId")
	ctx := logger.SetSessionID(c.Request.Context(), sessionID)

	view, err := h.polling.GetSessionStatus(ctx, sessionID, c.Query("request_type"))
	if err != nil {
		respondCustomerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSessionContent handles GET /api/v1/wizard/sessions/:sessionId/content.
func (h *WizardHandler) GetSessionContent(c *gin.Context) {
	sessionID := c.Param("sessionId")
	ctx := logger.SetSessionID(c.Request.Context(), sessionID)

	view, err := h.polling.GetSessionContent(ctx, sessionID)
	if err != nil {
		respondCustomerError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sitequeue/internal/api/middleware"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/prompts"
	"github.com/timmy/sitequeue/internal/repository"
	"github.com/timmy/sitequeue/internal/service"
)

// AdminHandler serves the operator portal.
type AdminHandler struct {
	queue      *service.QueueService
	workflow   *service.WorkflowService
	completion *service.CompletionService
	sweeper    *service.Sweeper
	generation *service.GenerationService
	assets     *service.AssetService
}

// AdminServices bundles the services behind the admin routes.
type AdminServices struct {
	Queue      *service.QueueService
	Workflow   *service.WorkflowService
	Completion *service.CompletionService
	Sweeper    *service.Sweeper
	Generation *service.GenerationService
	Assets     *service.AssetService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc AdminServices) *AdminHandler {
	return &AdminHandler{
		queue:      svc.Queue,
		workflow:   svc.Workflow,
		completion: svc.Completion,
		sweeper:    svc.Sweeper,
		generation: svc.Generation,
		assets:     svc.Assets,
	}
}

// ListRequests handles GET /api/v1/admin/requests.
// Query: view=unassigned|mine|all, status (comma separated), request_type,
// business_type, customer_id, wizard_session_id, order=asc|desc, limit, offset.
func (h *AdminHandler) ListRequests(c *gin.Context) {
	view, ok := service.ParseOperatorView(c.Query("view"))
	if !ok {
		respondError(c, domain.NewValidationError("view", "must be unassigned, mine or all"))
		return
	}

	filter := repository.ListFilter{
		BusinessType:    c.Query("business_type"),
		CustomerID:      c.Query("customer_id"),
		WizardSessionID: c.Query("wizard_session_id"),
		Ascending:       strings.EqualFold(c.Query("order"), "asc"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := domain.ParseRequestStatus(part)
			if !ok {
				respondError(c, domain.NewValidationError("status", "unknown status %q", part))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if raw := c.Query("request_type"); raw != "" {
		rt, ok := domain.ParseRequestType(raw)
		if !ok {
			respondError(c, domain.NewValidationError("request_type", "unknown type %q", raw))
			return
		}
		filter.RequestType = rt
	}

	page, err := h.queue.ListForOperator(c.Request.Context(), middleware.AdminID(c), view, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetRequest handles GET /api/v1/admin/requests/:id.
func (h *AdminHandler) GetRequest(c *gin.Context) {
	req, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetPrompt handles GET /api/v1/admin/requests/:id/prompt.
func (h *AdminHandler) GetPrompt(c *gin.Context) {
	req, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	prompt, err := prompts.Render(prompts.Brief{
		RequestType:  string(req.RequestType),
		BusinessType: req.BusinessType,
		Terminology:  req.Terminology,
		RequestData:  req.RequestData,
	})
	if err != nil {
		respondError(c, domain.NewValidationError("request_data", "%v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": req.ID, "prompt": prompt})
}

// Assign handles POST /api/v1/admin/requests/:id/assign.
func (h *AdminHandler) Assign(c *gin.Context) {
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.queue.Assign(c.Request.Context(), id, adminID)
	})
}

// NoteRequest carries an optional note or reason.
type NoteRequest struct {
	Note       string `json:"note"`
	Reason     string `json:"reason"`
	AdminNotes string `json:"admin_notes"`
}

// Release handles POST /api/v1/admin/requests/:id/release.
func (h *AdminHandler) Release(c *gin.Context) {
	body, ok := bindOptional(c)
	if !ok {
		return
	}
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.workflow.Release(c.Request.Context(), id, adminID, body.Note)
	})
}

// Start handles POST /api/v1/admin/requests/:id/start.
func (h *AdminHandler) Start(c *gin.Context) {
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.workflow.Start(c.Request.Context(), id, adminID)
	})
}

// Complete handles POST /api/v1/admin/requests/:id/complete.
func (h *AdminHandler) Complete(c *gin.Context) {
	var in service.CompleteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, domain.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.completion.Complete(c.Request.Context(), id, adminID, in)
	})
}

// Reject handles POST /api/v1/admin/requests/:id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	body, ok := bindOptional(c)
	if !ok {
		return
	}
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.completion.Reject(c.Request.Context(), id, adminID, body.Reason, body.AdminNotes)
	})
}

// Fail handles POST /api/v1/admin/requests/:id/fail.
func (h *AdminHandler) Fail(c *gin.Context) {
	body, ok := bindOptional(c)
	if !ok {
		return
	}
	h.respond(c, func(id, adminID string) (*domain.AIRequest, error) {
		return h.workflow.Fail(c.Request.Context(), id, adminID, body.Reason)
	})
}

// Resubmit handles POST /api/v1/admin/requests/:id/resubmit.
func (h *AdminHandler) Resubmit(c *gin.Context) {
	ctx := logger.SetAIRequestID(c.Request.Context(), c.Param("id"))
	req, err := h.queue.Resubmit(ctx, c.Param("id"), middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// Draft handles POST /api/v1/admin/requests/:id/draft.
func (h *AdminHandler) Draft(c *gin.Context) {
	ctx := logger.SetAIRequestID(c.Request.Context(), c.Param("id"))
	draft, err := h.generation.GenerateDraft(ctx, c.Param("id"), middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerSweep handles POST /api/v1/admin/sweep.
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	middleware.GetLogger(c).Info("Manual sweep triggered")
	stats, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UploadAsset handles POST /api/v1/admin/assets (multipart: request_id, name, alt, file).
func (h *AdminHandler) UploadAsset(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, domain.NewValidationError("file", "is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	name := c.PostForm("name")
	if name == "" {
		name = strings.TrimSuffix(fileHeader.Filename, fileExt(fileHeader.Filename))
	}

	requestID := c.PostForm("request_id")
	ctx := logger.SetAIRequestID(c.Request.Context(), requestID)
	asset, err := h.assets.Upload(ctx, service.AssetUpload{
		RequestID: requestID,
		AdminID:   middleware.AdminID(c),
		Name:      name,
		Alt:       c.PostForm("alt"),
		Reader:    file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// respond runs a transition for the :id in the path and writes the updated request.
func (h *AdminHandler) respond(c *gin.Context, fn func(id, adminID string) (*domain.AIRequest, error)) {
	id := c.Param("id")
	c.Request = c.Request.WithContext(logger.SetAIRequestID(c.Request.Context(), id))

	req, err := fn(id, middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// bindOptional binds a NoteRequest, accepting an empty body.
func bindOptional(c *gin.Context) (NoteRequest, bool) {
	var body NoteRequest
	if c.Request.ContentLength == 0 {
		return body, true
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, domain.NewValidationError("body", "invalid JSON: %v", err))
		return body, false
	}
	return body, true
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

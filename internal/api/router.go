package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/sitequeue/internal/api/handler"
	"github.com/timmy/sitequeue/internal/api/middleware"
	"github.com/timmy/sitequeue/internal/config"
	"github.com/timmy/sitequeue/internal/logger"
	"gorm.io/gorm"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Health *handler.HealthHandler
	Wizard *handler.WizardHandler
	Admin  *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Health check and metrics
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Customer wizard
	wizard := v1.Group("/wizard")
	{
		wizard.POST("/requests", h.Wizard.Submit)
		wizard.GET("/requests/:id/status", h.Wizard.GetStatus)
		wizard.GET("/requests/:id/events", h.Wizard.Events)
		wizard.GET("/sessions/:sessionId/status", h.Wizard.GetSessionStatus)
		wizard.GET("/sessions/:sessionId/content", h.Wizard.GetSessionContent)
	}

	// Operator portal
	admin := v1.Group("/admin", middleware.AdminIdentity())
	{
		admin.GET("/requests", h.Admin.ListRequests)
		admin.GET("/requests/:id", h.Admin.GetRequest)
		admin.GET("/requests/:id/prompt", h.Admin.GetPrompt)
		admin.POST("/requests/:id/assign", h.Admin.Assign)
		admin.POST("/requests/:id/release", h.Admin.Release)
		admin.POST("/requests/:id/start", h.Admin.Start)
		admin.POST("/requests/:id/complete", h.Admin.Complete)
		admin.POST("/requests/:id/reject", h.Admin.Reject)
		admin.POST("/requests/:id/fail", h.Admin.Fail)
		admin.POST("/requests/:id/resubmit", h.Admin.Resubmit)
		admin.POST("/requests/:id/draft", h.Admin.Draft)
		admin.POST("/assets", h.Admin.UploadAsset)
		admin.GET("/stats", h.Admin.Stats)
		admin.POST("/sweep", h.Admin.TriggerSweep)
	}

	return r
}

// NewHandlers builds the handler set from wired services.
func NewHandlers(db *gorm.DB, wizard *handler.WizardHandler, admin *handler.AdminHandler) *Handlers {
	return &Handlers{
		Health: handler.NewHealthHandler(db),
		Wizard: wizard,
		Admin:  admin,
	}
}

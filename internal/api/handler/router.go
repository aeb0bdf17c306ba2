package handler

import (
	"grievance/backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires middleware and every route.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), metrics.Middleware(), Recovery(log))

	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/test_twilio", h.TestTwilio)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/process_grievance", h.ProcessGrievance)
	r.GET("/webhook/whatsapp", h.WhatsAppWebhookStatus)
	r.POST("/webhook/whatsapp", h.WhatsAppWebhook)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/admin/signup", h.AdminSignup)

		g := api.Group("/grievances")
		g.GET("/all", h.GetAllGrievances)
		g.GET("/user/:id", h.GetUserGrievances)
		g.GET("/department/:name", h.GetDepartmentGrievances)
		g.GET("/:id", h.GetGrievance)
		g.GET("/:id/history", h.GetHistory)
		g.PUT("/:id/status", h.RequireAdmin(), h.UpdateStatus)
		g.POST("/:id/close", h.RequireAdmin(), h.CloseGrievance)

		api.GET("/departments", h.GetDepartments)
		api.GET("/status-stages", h.GetStatusStages)
		api.GET("/admin/profile/:id", h.GetAdminProfile)
		api.GET("/dashboard/stats/:id", h.GetDashboardStats)
	}

	r.GET("/ws/feed", h.RequireAdmin(), h.ServeFeed)

	return r
}

package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/middleware"
	"github.com/noah-isme/campus-ops-api/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix. Uploads is
// nil when images live in an object store that signs its own links.
type Handlers struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Complaints *ComplaintHandler
	Library    *LibraryHandler
	Usage      *UsageHandler
	Alerts     *AlertHandler
	Events     *EventHandler
	Food       *FoodHandler
	Insights   *InsightHandler
	Realtime   *RealtimeHandler
	Uploads    *UploadHandler
	Metrics    *MetricsHandler
}

// RouteOptions carries the cross-cutting dependencies of the route table.
type RouteOptions struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditRecorder
	Logger *zap.Logger
}

var (
	anyRole        = []models.UserRole{models.RoleStudent, models.RoleAdmin, models.RoleEmployee, models.RoleSecurity}
	complaintRoles = []models.UserRole{models.RoleStudent, models.RoleAdmin, models.RoleEmployee}
	operatorRoles  = []models.UserRole{models.RoleAdmin, models.RoleEmployee}
)

// RegisterRoutes mounts every API route on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, opts RouteOptions) {
	auth := middleware.JWT(opts.Tokens)
	admin := middleware.RequireRoles(models.RoleAdmin)
	student := middleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.Audit, opts.Logger, action, resource)
	}

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/signup", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", auth, middleware.RequireRoles(anyRole...), h.Auth.Me)

	users := api.Group("/users", auth, admin)
	users.GET("", h.Users.List)
	users.GET("/pending", h.Users.Pending)
	users.GET("/stats", h.Users.Stats)
	users.PUT("/:id/approve", h.Users.Approve)
	users.PUT("/:id/reject", h.Users.Reject)
	users.PUT("/:id/access", h.Users.Access)
	users.GET("/:id/audit", h.Users.AuditTrail)

	complaints := api.Group("/complaints", auth)
	complaints.POST("", student, h.Complaints.Create)
	complaints.GET("", middleware.RequireRoles(complaintRoles...), h.Complaints.List)
	complaints.GET("/:id", middleware.RequireRoles(complaintRoles...), h.Complaints.Get)
	complaints.PUT("/:id/status", middleware.RequireRoles(complaintRoles...), h.Complaints.UpdateStatus)
	complaints.POST("/:id/assign", middleware.RequireRoles(operatorRoles...), h.Complaints.Assign)
	complaints.POST("/:id/escalate", student, h.Complaints.Escalate)
	complaints.POST("/:id/message", middleware.RequireRoles(complaintRoles...), h.Complaints.AddMessage)

	library := api.Group("/library")
	library.GET("", h.Library.List)
	library.GET("/my-booking", auth, student, h.Library.MyBooking)
	library.POST("/book", auth, student, h.Library.Book)
	library.POST("/cancel", auth, student, h.Library.Cancel)
	library.POST("", auth, admin, h.Library.Create)
	library.DELETE("/:id", auth, admin, h.Library.Delete)

	resources := api.Group("/resources", auth)
	operators := middleware.RequireRoles(operatorRoles...)
	resources.POST("/upload", operators, h.Usage.Upload)
	resources.POST("/daily-log", operators, h.Usage.DailyLog)
	resources.GET("/stats", operators, h.Usage.Stats)
	resources.GET("/hostels", operators, h.Usage.Hostels)
	resources.GET("/my-logs", operators, h.Usage.Recent)
	resources.GET("/pending-logs", admin, h.Usage.Pending)
	resources.PUT("/logs/:id/status", admin, audit(models.AuditActionUsageDecide, "resource_usage"), h.Usage.Decide)
	resources.GET("/analytics", admin, h.Usage.Analytics)
	resources.GET("/export", admin, h.Usage.Export)
	resources.POST("/hostels", admin, audit(models.AuditActionHostelAdmin, "hostels"), h.Usage.CreateHostel)
	resources.DELETE("/hostels/:id", admin, audit(models.AuditActionHostelAdmin, "hostels"), h.Usage.DeleteHostel)

	alerts := api.Group("/alerts", auth, admin)
	alerts.GET("", h.Alerts.List)
	alerts.PUT("/:id/resolve", audit(models.AuditActionAlertResolve, "alerts"), h.Alerts.Resolve)
	alerts.POST("/test", h.Alerts.Test)

	events := api.Group("/events")
	events.GET("", h.Events.List)
	events.POST("", auth, admin, audit(models.AuditActionEventCreate, "events"), h.Events.Create)
	events.POST("/book", auth, middleware.RequireRoles(anyRole...), h.Events.Book)
	events.GET("/my-bookings", auth, middleware.RequireRoles(anyRole...), h.Events.MyBookings)
	events.GET("/:id/attendees", auth, admin, h.Events.Attendees)

	food := api.Group("/food", auth, middleware.RequireRoles(operatorRoles...))
	food.POST("", h.Food.Submit)
	food.GET("", h.Food.List)
	food.PUT("/:id/action", audit(models.AuditActionFoodAction, "food_logs"), h.Food.UpdateAction)

	api.GET("/insights", auth, middleware.RequireRoles(anyRole...), h.Insights.List)

	api.GET("/ws", middleware.QueryJWT(opts.Tokens), middleware.RequireRoles(anyRole...), h.Realtime.Connect)
	if h.Uploads != nil {
		api.GET("/uploads/:token", h.Uploads.Serve)
	}
	api.GET("/system/metrics", auth, admin, h.Metrics.Snapshot)
}

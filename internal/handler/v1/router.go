package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/pkg/auth"
	"github.com/carebook/carebook/pkg/metrics"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth         *AuthHandler
	Doctor       *DoctorHandler
	Appointment  *AppointmentHandler
	Notification *NotificationHandler
	Chat         *ChatHandler
}

// NewRouter wires middleware and routes into a gin engine.
func NewRouter(
	cfg *config.Config,
	h Handlers,
	jwtManager *auth.JWTManager,
	m *metrics.Collector,
	log *zap.Logger,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(Metrics(m))
	r.Use(CORS(cfg.CORS))
	r.Use(RateLimit(cfg.RateLimit))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")

	authn := api.Group("/auth")
	authn.Use(AuthRateLimit(cfg.RateLimit))
	{
		authn.POST("/register", h.Auth.Register)
		authn.POST("/login", h.Auth.Login)
		authn.POST("/refresh", h.Auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(AuthMiddleware(jwtManager))
	{
		authed.GET("/me", h.Auth.Me)
		authed.PATCH("/me", h.Auth.UpdateMe)
		authed.POST("/me/password", h.Auth.ChangePassword)

		authed.GET("/doctors", h.Doctor.List)
		authed.GET("/doctors/me", h.Doctor.Me)
		authed.GET("/doctors/:id", h.Doctor.Get)
		authed.POST("/doctors", h.Doctor.Apply)
		authed.PATCH("/doctors/:id", h.Doctor.Update)
		authed.GET("/doctors/:id/availability", h.Doctor.Availability)
		authed.GET("/doctors/:id/ratings", h.Doctor.ListRatings)
		authed.POST("/doctors/:id/ratings", h.Doctor.SubmitRating)

		authed.POST("/appointments", h.Appointment.Book)
		authed.GET("/appointments", h.Appointment.List)
		authed.GET("/appointments/:id", h.Appointment.Get)
		authed.POST("/appointments/:id/cancel", h.Appointment.Cancel)
		authed.POST("/appointments/:id/reschedule", h.Appointment.Reschedule)
		authed.PATCH("/appointments/:id/problem", h.Appointment.UpdateProblem)

		authed.GET("/notifications", h.Notification.List)
		authed.POST("/notifications/read-all", h.Notification.MarkAllRead)
		authed.POST("/notifications/:id/read", h.Notification.MarkRead)

		authed.POST("/chat/messages", h.Chat.Send)
		authed.GET("/chat/messages", h.Chat.Conversation)
	}

	staff := authed.Group("")
	staff.Use(RequireRoles(domain.RoleDoctor, domain.RoleAdmin))
	{
		staff.PATCH("/appointments/:id/status", h.Appointment.UpdateStatus)
		staff.PATCH("/appointments/:id/notes", h.Appointment.UpdateNotes)
	}

	admin := authed.Group("/admin")
	admin.Use(RequireRoles(domain.RoleAdmin))
	{
		admin.GET("/users", h.Auth.ListUsers)
		admin.PATCH("/doctors/:id/status", h.Doctor.ChangeStatus)
		admin.GET("/chat/conversations", h.Chat.ActiveConversations)
	}

	return r
}

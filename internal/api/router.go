package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/timeclock/internal/api/handlers"
	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/face"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/session"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/timesheet"
)

type RouterConfig struct {
	// APIKey guards the kiosk routes.
	APIKey     string
	Store      storage.Store
	Issuer     *auth.TokenIssuer
	TOTPIssuer string
	Sessions   *session.Service
	Sheet      *timesheet.Service
	Faces      *face.Service
	Hub        *ws.Hub
	Checks     map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	authH := handlers.NewAuthHandler(cfg.Store, cfg.Issuer, cfg.TOTPIssuer)
	v1.POST("/auth/login", authH.Login)

	// Kiosk: face identification without a user session.
	faceH := handlers.NewFaceHandler(cfg.Faces)
	kiosk := v1.Group("/kiosk")
	kiosk.Use(auth.APIKeyMiddleware(cfg.APIKey))
	kiosk.POST("/face/identify", faceH.Identify)
	kiosk.POST("/face/clock-in", faceH.ClockIn)
	kiosk.POST("/face/clock-out", faceH.ClockOut)

	// Authenticated user routes
	user := v1.Group("")
	user.Use(auth.JWTMiddleware(cfg.Issuer))

	user.POST("/auth/otp/enroll", authH.OTPEnroll)
	user.POST("/auth/otp/verify", authH.OTPVerify)

	userH := handlers.NewUserHandler(cfg.Store)
	user.GET("/users/me", userH.Me)

	user.POST("/face/register", faceH.Register)

	clockH := handlers.NewClockHandler(cfg.Sessions)
	user.POST("/clock/in", clockH.ClockIn)
	user.POST("/clock/out", clockH.ClockOut)
	user.POST("/breaks", clockH.Break)
	user.GET("/clock/status", clockH.Status)

	hoursH := handlers.NewWorkHoursHandler(cfg.Sheet, cfg.Sessions)
	user.GET("/work-hours/weekly", hoursH.Weekly)
	user.GET("/work-hours/stats", hoursH.Stats)
	user.PUT("/work-hours/:date", hoursH.Edit)
	user.DELETE("/work-hours/:date", hoursH.Delete)
	user.POST("/work-hours/delete", hoursH.BulkDelete)

	// Admin
	admin := user.Group("")
	admin.Use(auth.RequireRole(models.RoleAdmin))
	admin.POST("/users", userH.Create)
	admin.GET("/presence", userH.Presence)

	eventH := handlers.NewEventHandler(cfg.Store)
	admin.GET("/events", eventH.List)

	if cfg.Hub != nil {
		admin.GET("/ws", cfg.Hub.HandleWS)
	}

	return r
}

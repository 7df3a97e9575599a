package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"staffattendance/internal/auth"
	"staffattendance/internal/httpmiddleware"
	"staffattendance/internal/logger"
	"staffattendance/internal/users"
)

// RouterConfig holds the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	Log         *zap.Logger
	SigningKey  string
	Issuer      string
	CORSOrigins []string
	// RateLimit is applied to every route except /healthz and /metrics when set.
	RateLimit *httpmiddleware.TokenBucket
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter mounts every endpoint of h.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(logger.RequestID())
	r.Use(logger.GinMiddleware(log, "/healthz", "/metrics"))
	r.Use(logger.Recovery(log))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())

	r.GET("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := r.Group("/v1")
	if cfg.RateLimit != nil {
		v1.Use(cfg.RateLimit.GinMiddleware(nil))
	}

	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)
	v1.POST("/auth/logout", h.Logout)

	authed := v1.Group("", auth.Authenticate(cfg.SigningKey, cfg.Issuer))
	authed.GET("/me", h.Me)
	authed.GET("/settings", h.GetSettings)

	att := authed.Group("/attendance")
	att.POST("/check-in", auth.RequireRole(users.RoleTeacher), h.CheckIn)
	att.POST("/check-out", auth.RequireRole(users.RoleTeacher), h.CheckOut)
	att.POST("/distance", auth.RequireRole(users.RoleTeacher), h.Distance)
	att.GET("/today", auth.RequireRole(users.RoleTeacher), h.Today)
	att.GET("/history", h.History)

	staff := authed.Group("", auth.RequireRole(users.RoleAdmin, users.RolePrincipal))
	staff.GET("/records/daily", h.Daily)
	staff.GET("/records/monthly", h.Monthly)
	staff.GET("/dashboard", h.Dashboard)
	staff.GET("/dashboard/trend", h.Trend)
	staff.GET("/reports", h.Report)

	admin := authed.Group("/admin", auth.RequireRole(users.RoleAdmin))
	admin.PATCH("/records/:id", h.UpdateRecord)
	admin.PUT("/settings", h.SaveSettings)
	admin.GET("/teachers", h.ListTeachers)
	admin.POST("/teachers", h.CreateTeacher)
	admin.PUT("/teachers/:id", h.UpdateTeacher)
	admin.DELETE("/teachers/:id", h.DeleteTeacher)
	admin.GET("/events", h.Events)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	// Credentials are only allowed with an explicit origin list.
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

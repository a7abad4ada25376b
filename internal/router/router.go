package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/handler"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Admin         *handler.AdminHandler
	WS            *handler.WSHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	gatekeeper *middleware.Gatekeeper,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Redirect-To"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())

	// Question views, review lists and admin lists are compressed; the
	// session stream and /metrics are skipped.
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", middleware.PrometheusHandler())

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/register", loginLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/logout", handlers.Auth.Logout)
		auth.GET("/me", handlers.Auth.Me)
	}

	// ─── 2. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/student")
	studentAPI.Use(gatekeeper.RequireStudent())
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/exams/:code", handlers.StudentPortal.GetExam)
		studentAPI.GET("/analytics", handlers.StudentPortal.GetAnalytics)
		studentAPI.GET("/badges", handlers.StudentPortal.ListBadges)

		session := studentAPI.Group("/session")
		{
			session.POST("", handlers.StudentPortal.OpenSession)
			session.GET("", handlers.StudentPortal.GetSession)
			session.DELETE("", handlers.StudentPortal.CloseSession)
			session.PUT("/answers/:number", handlers.StudentPortal.SelectOption)
			session.POST("/marks/:number", handlers.StudentPortal.ToggleMark)
			session.POST("/navigate", handlers.StudentPortal.Navigate)
			session.POST("/submit", handlers.StudentPortal.Submit)
			session.GET("/review", handlers.StudentPortal.Review)
		}
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws")
	ws.Use(gatekeeper.RequireStudent())
	{
		ws.GET("/session", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (gate + per-resource permission) ───────────────
	adminAPI := router.Group("/api/admin")
	adminAPI.Use(gatekeeper.RequireAdmin(), gatekeeper.RequireResourcePermission())
	{
		adminAPI.GET("/:resource", handlers.Admin.List)
		adminAPI.POST("/:resource", handlers.Admin.Create)
		adminAPI.GET("/:resource/:id", handlers.Admin.Get)
		adminAPI.PUT("/:resource/:id", handlers.Admin.Update)
		adminAPI.DELETE("/:resource/:id", handlers.Admin.Delete)
	}

	return router
}

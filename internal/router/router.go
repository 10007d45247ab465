package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-tryout/internal/config"
	"github.com/stemsi/exstem-tryout/internal/handler"
	"github.com/stemsi/exstem-tryout/internal/middleware"
	"github.com/stemsi/exstem-tryout/internal/response"
	"github.com/stemsi/exstem-tryout/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Review  *handler.ReviewHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Exam Sessions (User JWT) ───────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireUserJWT(authService), middleware.NoStore())
	{
		pkg := api.Group("/exam/package/:package_id")
		pkg.POST("/start", handlers.Session.StartPackage)
		pkg.GET("/progress", handlers.Session.GetPackageProgress)

		sess := api.Group("/exam/session/:session_id")
		sess.GET("/question", handlers.Session.GetQuestion)
		sess.POST("/answer", handlers.Session.SubmitAnswer)
		sess.GET("/resume", handlers.Session.ResumeSession)
		sess.POST("/ping", handlers.Session.PingSession)
		sess.POST("/submit", handlers.Session.SubmitSession)

		api.GET("/review/session/:session_id", handlers.Review.ReviewSession)
	}

	// ─── 2. WebSocket (token in query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/exam/session/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}

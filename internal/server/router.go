package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/deckforge/deckforge-backend/internal/handlers"
	"github.com/deckforge/deckforge-backend/internal/middleware"
	"github.com/deckforge/deckforge-backend/internal/platform/envutil"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	GenerationHandler *handlers.GenerationHandler
	RunsHandler       *handlers.RunsHandler
	StreamHandler     *handlers.StreamHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("deckforge"))
	router.Use(middleware.RequestLogger(cfg.Log))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/generate", cfg.GenerationHandler.Generate)
		api.POST("/refine", cfg.GenerationHandler.Refine)
		api.POST("/validate", cfg.GenerationHandler.Validate)
		api.GET("/runs", cfg.RunsHandler.List)
		api.GET("/runs/:id", cfg.RunsHandler.GetByID)
		api.GET("/runs/:id/calls", cfg.RunsHandler.ListCalls)
		api.GET("/runs/:id/events", cfg.StreamHandler.Stream)
	}

	return router
}

func allowedOrigins() []string {
	raw := envutil.Str("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

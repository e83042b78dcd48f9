package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meatlens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestLogger(logger.With().Str("component", "http").Logger()))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.POST("/classify", handler.Classify)
		v1.POST("/classify/batch", handler.ClassifyBatch)
		v1.POST("/unify", handler.Unify)
		v1.POST("/filter", handler.FilterProducts)
		v1.GET("/reference", handler.Reference)

		learning := v1.Group("/learning")
		{
			learning.GET("/stats", handler.LearningStats)
			learning.GET("/review", handler.ReviewQueue)
			learning.DELETE("/review/:id", handler.DismissReview)
			learning.GET("/patterns", handler.DiscoveredPatterns)
			learning.GET("/reports", handler.LearningReports)
			learning.POST("/approve", handler.ApprovePattern)
			learning.POST("/grade-keyword", handler.ApproveGradeKeyword)
		}
	}

	return router
}

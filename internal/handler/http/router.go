package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/handler/http/middleware"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
)

// SetupRouter wires the operational HTTP surface: health, metrics and the
// admin key-management endpoints. Chat traffic does not go through here.
func SetupRouter(keyring *security.Keyring, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	healthHandler := NewHealthHandler(logger)
	adminHandler := NewAdminHandler(logger, keyring)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/admin")
	{
		admin.GET("/keys", adminHandler.KeyStatus)
		admin.POST("/keys/rotate", adminHandler.RotateKey)
		admin.POST("/keys/:version/retire", adminHandler.RetireKey)
	}

	return router
}

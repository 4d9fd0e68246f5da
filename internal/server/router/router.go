package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(scanHandler *handlers.ScanHandler, eventHandler *handlers.EventHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/api")
	{
		api.GET("/events", eventHandler.List)
		api.PUT("/event", eventHandler.Select)
		api.GET("/lists", eventHandler.Lists)

		api.POST("/scan", scanHandler.Scan)
		api.POST("/scan/image", scanHandler.ScanImage)
		api.POST("/scan/resolve", scanHandler.Pick)
		api.GET("/scan/pending", scanHandler.Pending)
		api.POST("/scan/confirm", scanHandler.Confirm)
		api.POST("/scan/cancel", scanHandler.Cancel)
		api.POST("/scan/reloan", scanHandler.ReLoan)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

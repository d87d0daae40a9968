package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/metrics"
	"github.com/mamadbah2/materialbot/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. webhookLimiter
// may be nil to disable rate limiting on the webhook.
func New(webhook *handlers.WebhookHandler, inventory *handlers.InventoryHandler, webhookLimiter *limiter.Limiter, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	hooks := r.Group("/webhook")
	if webhookLimiter != nil {
		hooks.Use(rateLimit(webhookLimiter, logger))
	}
	hooks.GET("", webhook.Verify)
	hooks.POST("", webhook.Receive)

	r.POST("/send-message", webhook.SendMessage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	if inventory != nil {
		inv := r.Group("/inventory", inventory.RequireToken())
		inv.GET("/export", inventory.Export)
		inv.GET("/snapshot/latest", inventory.LatestSnapshot)
	}

	logger.Info("router initialized")

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
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

// rateLimit throttles requests per client IP.
func rateLimit(instance *limiter.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		lctx, err := instance.Get(c.Request.Context(), ip)
		if err != nil {
			// A broken limiter store must not take the webhook down.
			logger.Error("rate limit check failed", zap.String("client_ip", ip), zap.Error(err))
			c.Next()
			return
		}

		if lctx.Reached {
			logger.Warn("rate limit exceeded", zap.String("client_ip", ip), zap.Int64("limit", lctx.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}

package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school-secretary/internal/logging"
)

// NewRouter wires the public and trigger routes.
func NewRouter(h *Handler, adminToken string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/unsubscribe", h.Unsubscribe)

	api := r.Group("/api")
	{
		api.POST("/signup", h.Signup)

		settings := api.Group("/settings/:id")
		{
			settings.GET("", h.Settings)
			settings.POST("/enable", h.Enable)
			settings.POST("/disable", h.Disable)
		}

		api.POST("/sync", RequireToken(adminToken), h.SyncCourse)
		api.POST("/digest/run", RequireToken(adminToken), h.RunDigest)
	}
	return r
}

// RequestLogger logs one line per request. Query strings are left out since
// they can carry user ids.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// RequireToken checks the X-Admin-Token header when token is set.
func RequireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

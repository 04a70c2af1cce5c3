package control

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// control plane cors config
var corsConfig = cors.Config{
	AllowAllOrigins: true,
	AllowMethods:    []string{"GET", "POST"},
	AllowHeaders: []string{
		"Origin",
		"Content-Length",
		"Content-Type",
	},
	MaxAge: 12 * time.Hour,
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(corsConfig)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Errors != nil {
			slog.Warn("HTTP request",
				"method", c.Request.Method,
				"status", c.Writer.Status(),
				"path", c.Request.URL.Path,
				"errors", c.Errors.String(),
			)
		}
	}
}

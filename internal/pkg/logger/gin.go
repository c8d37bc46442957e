package logger

import (
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupGin 访问日志 + panic 恢复
func SetupGin(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", c.Writer.Status()),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, log.String("errors", c.Errors.String()))
		}
		log.InfoContext(c.Request.Context(), "GIN_ACCESS", fields...)
	})

	r.Use(gin.CustomRecoveryWithWriter(LogWriter, func(c *gin.Context, err any) {
		log.ErrorContext(c.Request.Context(), "GIN_PANIC", "err", err)
		c.AbortWithStatus(500)
	}))
}

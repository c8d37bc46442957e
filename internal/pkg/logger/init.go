package logger

import (
	"io"
	log "log/slog"
	"os"
	"strings"

	"Parley/internal/api/config"
)

// LogWriter 访问日志输出目标
var LogWriter io.Writer = os.Stdout

// InitLogger 安装全局 JSON slog, 所有日志带上 ctx 中的 trace_id / user_id
func InitLogger(cfg config.LogConfig) {
	handler := log.NewJSONHandler(LogWriter, &log.HandlerOptions{Level: parseLevel(cfg.Level)})
	log.SetDefault(log.New(&ContextHandler{handler}))
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

package logger

import (
	"context"
	log "log/slog"

	"github.com/google/uuid"
)

// TraceIDKey / UserIDKey Context 中的 Key
const (
	TraceIDKey = "trace_id"
	UserIDKey  = "user_id"
	ConnIDKey  = "conn_id"
)

// ContextHandler 从 ctx 中提取 trace_id / user_id / conn_id
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if ctx != nil {
		if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
			r.AddAttrs(log.String(TraceIDKey, traceID))
		}
		if userID, ok := ctx.Value(UserIDKey).(uint64); ok {
			r.AddAttrs(log.Uint64(UserIDKey, userID))
		}
		if connID, ok := ctx.Value(ConnIDKey).(string); ok {
			r.AddAttrs(log.String(ConnIDKey, connID))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{h.Handler.WithGroup(name)}
}

// NewTraceID 生成新的 trace_id
func NewTraceID() string {
	return uuid.NewString()
}

// WithTrace 为后台任务 / 长连接生成独立的 trace 上下文
func WithTrace(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, NewTraceID())
}

// WithConnection 绑定长连接的用户与连接标识
func WithConnection(ctx context.Context, userID uint64, connID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, ConnIDKey, connID)
}

package middleware

import (
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/logger"
	"Parley/internal/pkg/response"
	"Parley/internal/service"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), BearerToken(c))
		if err != nil {
			response.Reject(c, err)
			return
		}

		c.Set(consts.UserIDKey, user.ID)

		newCtx := context.WithValue(c.Request.Context(), logger.UserIDKey, user.ID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}

// BearerToken 优先 Authorization 头, 其次 token 查询参数 (浏览器 WebSocket 无法设置请求头)
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

package security

import (
	"Parley/internal/api/config"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret         = []byte("parley-dev-secret")
	jwtIssuer         = "parley"
	jwtExpirationTime = time.Hour * 24 * 7
)

// Configure 使用配置覆盖默认签名参数, 启动时调用一次
func Configure(cfg config.JWTConfig) {
	if cfg.Secret != "" {
		jwtSecret = []byte(cfg.Secret)
	}
	if cfg.Issuer != "" {
		jwtIssuer = cfg.Issuer
	}
	if cfg.Expiration > 0 {
		jwtExpirationTime = time.Duration(cfg.Expiration) * time.Hour
	}
}

// UserClaims Token 中携带的身份信息
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

package api

import (
	"Parley/internal/api/handler"
	"Parley/internal/service"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	AuthService  service.AuthService
	UserHandler  *handler.UserHandler
	IMHandler    *handler.IMHandler
	MediaHandler *handler.MediaHandler
	WSHandler    *handler.WsHandler
}

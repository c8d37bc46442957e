package api

import (
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware(allowedOrigins))
	logger.SetupGin(r)

	auth := middleware.AuthMiddleware(group.AuthService)

	// 鉴权在 handler 内完成, 失败时在升级前拒绝
	r.GET("/ws", group.WSHandler.Connect)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", group.UserHandler.Register)
			authGroup.POST("/login", group.UserHandler.Login)
			authGroup.POST("/logout", auth, group.UserHandler.Logout)
			authGroup.GET("/profile", auth, group.UserHandler.GetProfile)
		}

		userGroup := apiGroup.Group("/users")
		userGroup.Use(auth)
		{
			userGroup.GET("", group.UserHandler.SearchUsers)
			userGroup.PUT("/profile", group.UserHandler.UpdateProfile)
			userGroup.GET("/:id", group.UserHandler.GetUser)
			userGroup.POST("/:id/block", group.UserHandler.ToggleBlock)
		}

		convGroup := apiGroup.Group("/conversations")
		convGroup.Use(auth)
		{
			convGroup.POST("", group.IMHandler.CreateConversation)
			convGroup.GET("", group.IMHandler.GetConversationList)
			convGroup.GET("/:id", group.IMHandler.GetConversation)
			convGroup.PUT("/:id/read", group.IMHandler.MarkAsRead)
		}

		msgGroup := apiGroup.Group("/messages")
		msgGroup.Use(auth)
		{
			msgGroup.POST("", group.IMHandler.SendMessage)
			msgGroup.GET("/conversation/:id", group.IMHandler.GetChatHistory)
			msgGroup.PUT("/:id", group.IMHandler.EditMessage)
			msgGroup.DELETE("/:id", group.IMHandler.DeleteMessage)
			msgGroup.POST("/media", group.MediaHandler.Upload)
		}

		mediaGroup := apiGroup.Group("/media")
		{
			mediaGroup.Use(auth)
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
		}
	}

	return r
}

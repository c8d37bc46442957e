package wire

import (
	"Parley/internal/api"
	"Parley/internal/api/config"
	"Parley/internal/api/handler"
	"Parley/internal/job"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/es"
	"Parley/internal/pkg/minio"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"Parley/internal/service"
	"time"

	"github.com/IBM/sarama"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Infra 已建立连接的外部依赖, ES 与 Kafka 可以为 nil
type Infra struct {
	DB       *gorm.DB
	Mongo    *mongodriver.Database
	Redis    *goredis.Client
	MinIO    *minio.Store
	Elastic  *elasticsearch.TypedClient
	Producer sarama.SyncProducer
}

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router  *gin.Engine
	Hub     *realtime.Hub
	CronMgr *cron.Manager
}

func BuildApplication(infra *Infra, cfg *config.Config) *ApplicationContainer {
	userRepo := repository.NewUserRepo(infra.DB)
	conversationRepo := repository.NewConversationRepo(infra.DB)
	messageRepo := mongo.NewMessageRepo(infra.Mongo)

	var userESRepo es.UserRepo
	if infra.Elastic != nil {
		userESRepo = es.NewUserRepo(infra.Elastic, cfg.Elastic.UserIndex)
	}

	tokenStore := redis.NewTokenStore(infra.Redis)
	presenceCache := redis.NewPresenceCache(infra.Redis, time.Duration(cfg.Realtime.PresenceTTL)*time.Second)
	mediaTemp := redis.NewMediaTempIndex(infra.Redis)

	hub := realtime.NewHub()

	authService := service.NewAuthService(userRepo, tokenStore, userESRepo)
	userService := service.NewUserService(userRepo, userESRepo)
	roomService := service.NewRoomService(conversationRepo, hub)
	presenceService := service.NewPresenceService(hub, roomService, userRepo, presenceCache)
	typingService := service.NewTypingService(hub)
	statusService := service.NewStatusService(messageRepo, conversationRepo, hub)
	mediaService := service.NewMediaService(infra.MinIO, mediaTemp, cfg.Media.MaxFileSize, cfg.Media.ThumbnailWidth)
	notifier := service.NewNotificationService(infra.Producer, cfg.Kafka.NotificationTopic, userRepo, hub)
	imService := service.NewIMService(userRepo, conversationRepo, messageRepo, hub, mediaService, notifier)

	handlers := &api.HandlersGroup{
		AuthService:  authService,
		UserHandler:  handler.NewUserHandler(authService, userService),
		IMHandler:    handler.NewIMHandler(imService, statusService),
		MediaHandler: handler.NewMediaHandler(mediaService),
		WSHandler: handler.NewWsHandler(
			authService,
			presenceService,
			roomService,
			imService,
			statusService,
			typingService,
			hub,
			clientConfig(cfg.Realtime),
			cfg.Server.AllowedOrigins,
		),
	}
	router := api.SetupRouter(handlers, cfg.Server.AllowedOrigins)

	mediaJob := job.NewMediaCleanupJob(infra.MinIO, mediaTemp, messageRepo, cfg.Media.RetentionDays, cfg.Media.TempTTLHours)

	return &ApplicationContainer{
		Router:  router,
		Hub:     hub,
		CronMgr: cron.NewCronManager(mediaJob, cfg.Media.CleanupSpec),
	}
}

func clientConfig(cfg config.RealtimeConfig) realtime.ClientConfig {
	c := realtime.DefaultClientConfig()
	if cfg.WriteWait > 0 {
		c.WriteWait = time.Duration(cfg.WriteWait) * time.Second
	}
	if cfg.PongWait > 0 {
		c.PongWait = time.Duration(cfg.PongWait) * time.Second
	}
	if cfg.PingPeriod > 0 {
		c.PingPeriod = time.Duration(cfg.PingPeriod) * time.Second
	}
	if cfg.ReadLimit > 0 {
		c.ReadLimit = cfg.ReadLimit
	}
	if cfg.SendBuffer > 0 {
		c.SendBuffer = cfg.SendBuffer
	}
	return c
}

package config

// Config 配置主体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	DB       DBConfig       `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Elastic  ElasticConfig  `mapstructure:"elastic"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Media    MediaConfig    `mapstructure:"media"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	Expiration int    `mapstructure:"expiration"` // hours
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	Bucket           string `mapstructure:"bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
	ExternalUseSSL   bool   `mapstructure:"external_use_ssl"`
}

// ElasticConfig Elastic配置, Address 为空时用户搜索退回 MySQL
type ElasticConfig struct {
	Address   string `mapstructure:"address"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	UserIndex string `mapstructure:"user_index"`
}

type KafkaConfig struct {
	Brokers           []string   `mapstructure:"brokers"`
	Sasl              SaslConfig `mapstructure:"sasl"`
	NotificationTopic string     `mapstructure:"notification_topic"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type MediaConfig struct {
	MaxFileSize    int64  `mapstructure:"max_file_size"`
	RetentionDays  int    `mapstructure:"retention_days"`
	TempTTLHours   int    `mapstructure:"temp_ttl_hours"`
	CleanupSpec    string `mapstructure:"cleanup_spec"`
	ThumbnailWidth int    `mapstructure:"thumbnail_width"`
}

type RealtimeConfig struct {
	WriteWait   int   `mapstructure:"write_wait"`  // seconds
	PongWait    int   `mapstructure:"pong_wait"`   // seconds
	PingPeriod  int   `mapstructure:"ping_period"` // seconds
	ReadLimit   int64 `mapstructure:"read_limit"`
	SendBuffer  int   `mapstructure:"send_buffer"`
	PresenceTTL int   `mapstructure:"presence_ttl"` // seconds
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从 configs/config.yaml 与 PARLEY_ 前缀的环境变量加载配置
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("jwt.issuer", "parley")
	v.SetDefault("jwt.expiration", 24*7)

	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 100)
	v.SetDefault("database.max_lifetime", 3600)

	v.SetDefault("mongo.database", "parley")
	v.SetDefault("mongo.timeout", 10)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.pool_size", 50)

	v.SetDefault("minio.bucket", "parley-media")

	v.SetDefault("elastic.user_index", "parley_users")

	v.SetDefault("kafka.notification_topic", "parley.notifications")

	v.SetDefault("media.max_file_size", 10*1024*1024)
	v.SetDefault("media.retention_days", 30)
	v.SetDefault("media.temp_ttl_hours", 24)
	v.SetDefault("media.cleanup_spec", "0 0 3 * * *")
	v.SetDefault("media.thumbnail_width", 320)

	v.SetDefault("realtime.write_wait", 10)
	v.SetDefault("realtime.pong_wait", 60)
	v.SetDefault("realtime.ping_period", 25)
	v.SetDefault("realtime.read_limit", 64*1024)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.presence_ttl", 120)

	v.SetDefault("log.level", "info")
}

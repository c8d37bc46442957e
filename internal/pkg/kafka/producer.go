package kafka

import (
	"Parley/internal/api/config"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
)

// NewSyncProducer brokers 为空时返回 nil, 通知功能随之关闭
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, offline notifications disabled")
		return nil, nil
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Info("Kafka producer connected", "brokers", cfg.Brokers)
	return producer, nil
}

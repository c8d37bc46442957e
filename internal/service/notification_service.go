package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/kafka"
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const maxNotificationBody = 120

// Notifier 新消息的离线推送
type Notifier interface {
	NotifyNewMessage(ctx context.Context, msg *dto.MessageDTO, recipients []uint64)
}

type notificationServiceImpl struct {
	producer    sarama.SyncProducer
	topic       string
	userRepo    repository.UserRepo
	broadcaster realtime.Broadcaster
}

// NewNotificationService producer 为 nil 时返回 nil, 调用方据此跳过推送
func NewNotificationService(producer sarama.SyncProducer, topic string, userRepo repository.UserRepo, broadcaster realtime.Broadcaster) Notifier {
	if producer == nil {
		return nil
	}
	return &notificationServiceImpl{
		producer:    producer,
		topic:       topic,
		userRepo:    userRepo,
		broadcaster: broadcaster,
	}
}

// NotifyNewMessage 只推送给当前没有连接且开启了通知的接收者
func (s *notificationServiceImpl) NotifyNewMessage(ctx context.Context, msg *dto.MessageDTO, recipients []uint64) {
	var offline []uint64
	for _, id := range recipients {
		if !s.broadcaster.IsOnline(id) {
			offline = append(offline, id)
		}
	}
	if len(offline) == 0 {
		return
	}

	users, err := s.userRepo.GetUserByIds(ctx, offline)
	if err != nil {
		log.ErrorContext(ctx, "failed to load notification recipients", "err", err)
		return
	}

	title := "New message"
	if msg.Sender != nil {
		title = "New message from " + msg.Sender.Name
	}
	body := notificationBody(msg)

	var batch []*sarama.ProducerMessage
	for _, u := range users {
		if !u.Notifications {
			continue
		}
		payload, err := json.Marshal(&kafka.NotificationEvent{
			RecipientID:    u.ID,
			SenderID:       msg.SenderID,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			Title:          title,
			Body:           body,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			log.ErrorContext(ctx, "failed to encode notification", "err", err)
			continue
		}
		batch = append(batch, &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(u.ID, 10)),
			Value: sarama.ByteEncoder(payload),
		})
	}
	if len(batch) == 0 {
		return
	}

	if err = s.producer.SendMessages(batch); err != nil {
		log.ErrorContext(ctx, "failed to publish notifications", "count", len(batch), "err", err)
		return
	}
	log.DebugContext(ctx, "notifications published", "count", len(batch), "message_id", msg.ID)
}

// notificationBody 文本取前若干字符, 附件只给出类型
func notificationBody(msg *dto.MessageDTO) string {
	if msg.Type != consts.MessageTypeText {
		return msg.Type
	}
	runes := []rune(msg.Content)
	if len(runes) > maxNotificationBody {
		return string(runes[:maxNotificationBody]) + "..."
	}
	return msg.Content
}

package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/mongo"
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"context"
	"fmt"
	"time"
)

// StatusService 送达与已读回执
type StatusService interface {
	MarkDelivered(ctx context.Context, userID uint64, messageID string) error
	MarkRead(ctx context.Context, userID uint64, messageID string) error
	MarkConversationRead(ctx context.Context, userID, conversationID uint64) error
}

type statusServiceImpl struct {
	messageRepo      mongo.MessageRepo
	conversationRepo repository.ConversationRepo
	broadcaster      realtime.Broadcaster
}

func NewStatusService(messageRepo mongo.MessageRepo, conversationRepo repository.ConversationRepo, broadcaster realtime.Broadcaster) StatusService {
	return &statusServiceImpl{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		broadcaster:      broadcaster,
	}
}

// MarkDelivered 同一用户重复回执只生效一次, 重复时不广播
func (s *statusServiceImpl) MarkDelivered(ctx context.Context, userID uint64, messageID string) error {
	msg, err := s.visibleMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	now := time.Now()
	applied, err := s.messageRepo.AddDelivered(ctx, msg.ID, userID, now)
	if err != nil {
		return fmt.Errorf("record delivery of %s: %w", messageID, err)
	}
	if !applied {
		return nil
	}

	s.broadcaster.ToRoom(realtime.RoomName(msg.ConversationID), realtime.NewEvent(realtime.EventMessageDelivered, &dto.MessageDeliveredPayload{
		MessageID:   msg.ID.Hex(),
		UserID:      userID,
		DeliveredAt: now,
	}), "")
	return nil
}

func (s *statusServiceImpl) MarkRead(ctx context.Context, userID uint64, messageID string) error {
	msg, err := s.visibleMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	now := time.Now()
	applied, err := s.messageRepo.AddRead(ctx, msg.ID, userID, now)
	if err != nil {
		return fmt.Errorf("record read of %s: %w", messageID, err)
	}
	if !applied {
		return nil
	}

	s.broadcaster.ToRoom(realtime.RoomName(msg.ConversationID), realtime.NewEvent(realtime.EventMessageRead, &dto.MessageReadPayload{
		MessageID: msg.ID.Hex(),
		UserID:    userID,
		ReadAt:    now,
	}), "")
	return nil
}

// MarkConversationRead 清零未读并对会话内他人消息批量记录已读, 只发一条汇总事件
func (s *statusServiceImpl) MarkConversationRead(ctx context.Context, userID, conversationID uint64) error {
	ok, err := s.conversationRepo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}

	if err = s.conversationRepo.ResetUnread(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	now := time.Now()
	if _, err = s.messageRepo.MarkConversationRead(ctx, conversationID, userID, now); err != nil {
		return fmt.Errorf("mark conversation %d read: %w", conversationID, err)
	}

	s.broadcaster.ToRoom(realtime.RoomName(conversationID), realtime.NewEvent(realtime.EventMessagesRead, &dto.ConversationReadPayload{
		ConversationID: conversationID,
		UserID:         userID,
		ReadAt:         now,
	}), "")
	return nil
}

// visibleMessage 消息不存在与非参与者统一返回 ErrMessageNotFound
func (s *statusServiceImpl) visibleMessage(ctx context.Context, userID uint64, messageID string) (*mongo.Message, error) {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	ok, err := s.conversationRepo.IsMember(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

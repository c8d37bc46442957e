package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/realtime"
	"context"
)

// TypingService 输入状态只转发, 不落库
type TypingService interface {
	Relay(ctx context.Context, userID uint64, conn realtime.ConnID, conversationID uint64, isTyping bool) error
}

type typingServiceImpl struct {
	broadcaster realtime.Broadcaster
}

func NewTypingService(broadcaster realtime.Broadcaster) TypingService {
	return &typingServiceImpl{broadcaster: broadcaster}
}

// Relay 发送方连接必须已在房间内, 事件不回送给发送方连接
func (s *typingServiceImpl) Relay(_ context.Context, userID uint64, conn realtime.ConnID, conversationID uint64, isTyping bool) error {
	room := realtime.RoomName(conversationID)
	if !s.broadcaster.InRoom(conn, room) {
		return ErrConversationNotFound
	}
	s.broadcaster.ToRoom(room, realtime.NewEvent(realtime.EventTypingUser, &dto.TypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}), conn)
	return nil
}

package service

import (
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"context"
	"fmt"
)

// RoomService 连接与会话房间的映射
type RoomService interface {
	RoomsFor(ctx context.Context, userID uint64) ([]string, error)
	Join(ctx context.Context, userID uint64, conn realtime.ConnID, conversationID uint64) error
	Leave(conn realtime.ConnID, conversationID uint64)
}

type roomServiceImpl struct {
	conversationRepo repository.ConversationRepo
	registry         realtime.Registry
}

func NewRoomService(conversationRepo repository.ConversationRepo, registry realtime.Registry) RoomService {
	return &roomServiceImpl{
		conversationRepo: conversationRepo,
		registry:         registry,
	}
}

// RoomsFor 用户参与的全部有效会话房间
func (s *roomServiceImpl) RoomsFor(ctx context.Context, userID uint64) ([]string, error) {
	ids, err := s.conversationRepo.GetUserConversationIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve rooms for user %d: %w", userID, err)
	}
	rooms := make([]string, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, realtime.RoomName(id))
	}
	return rooms, nil
}

// Join 只允许加入自己参与的会话, 重复加入无副作用
func (s *roomServiceImpl) Join(ctx context.Context, userID uint64, conn realtime.ConnID, conversationID uint64) error {
	ok, err := s.conversationRepo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}
	s.registry.Join(conn, realtime.RoomName(conversationID))
	return nil
}

func (s *roomServiceImpl) Leave(conn realtime.ConnID, conversationID uint64) {
	s.registry.Leave(conn, realtime.RoomName(conversationID))
}

package repository

import (
	"Parley/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error)
	GetUserConversationIDs(ctx context.Context, userID uint64) ([]uint64, error)
	GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error)
	RecordMessage(ctx context.Context, convID, senderID uint64, messageID string, at time.Time) error
	ResetUnread(ctx context.Context, convID, userID uint64) error
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及初始成员
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	// datetime(3) 会四舍五入, 截断后与 updateLastMessage 的比较保持一致
	conv.LastMessageAt = conv.LastMessageAt.Truncate(time.Millisecond)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(conv).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, m := range members {
			m.ConversationID = conv.ID
			m.JoinedAt = now
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		conv.Members = make([]model.ConversationMember, 0, len(members))
		for _, m := range members {
			conv.Members = append(conv.Members, *m)
		}
		return nil
	})
}

// GetConversation 会话不存在时返回 nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Members").First(&conv, convID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversationByPeerKey 根据会话标识获取会话
func (s *conversationRepoImpl) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Members").Where("peer_key = ?", peerKey).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// IsMember 检查用户是否是有效会话的成员
func (s *conversationRepoImpl) IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Table("conversation_members m").
		Joins("JOIN conversations c ON m.conversation_id = c.id").
		Where("m.conversation_id = ? AND m.user_id = ? AND c.is_active = 1", convID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetUserConversationIDs 用户参与的有效会话, 用于连接时加入房间
func (s *conversationRepoImpl) GetUserConversationIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := s.db.WithContext(ctx).Table("conversation_members m").
		Select("m.conversation_id").
		Joins("JOIN conversations c ON m.conversation_id = c.id").
		Where("m.user_id = ? AND c.is_active = 1", userID).
		Scan(&ids).Error
	return ids, err
}

// GetUserConversations 会话列表, 按最后消息时间倒序
func (s *conversationRepoImpl) GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error) {
	convs := make([]*model.Conversation, 0)
	err := s.db.WithContext(ctx).
		Preload("Members").
		Where("is_active = 1 AND id IN (?)",
			s.db.Table("conversation_members").Select("conversation_id").Where("user_id = ?", userID)).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

// RecordMessage 更新最后消息并原子累加其他成员的未读数
func (s *conversationRepoImpl) RecordMessage(ctx context.Context, convID, senderID uint64, messageID string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateLastMessage(tx, convID, messageID, at).Error; err != nil {
			return err
		}
		return tx.Model(&model.ConversationMember{}).
			Where("conversation_id = ? AND user_id <> ?", convID, senderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

// updateLastMessage 并发发送时较早的消息不会覆盖较新的
func updateLastMessage(tx *gorm.DB, convID uint64, messageID string, at time.Time) *gorm.DB {
	at = at.Truncate(time.Millisecond)
	return tx.Model(&model.Conversation{}).
		Where("id = ? AND last_message_at <= ?", convID, at).
		Updates(map[string]any{
			"last_message_id": messageID,
			"last_message_at": at,
		})
}

func (s *conversationRepoImpl) ResetUnread(ctx context.Context, convID, userID uint64) error {
	return s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		UpdateColumn("unread_count", 0).Error
}

package model

import "time"

// Conversation 会话主表
type Conversation struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          int8      `gorm:"not null;default:1" json:"type"`              // 1-单聊
	PeerKey       string    `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey"` // minUid_maxUid
	LastMessageID string    `gorm:"type:varchar(24)" json:"lastMessageId"`       // Mongo ObjectID
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt"`
	IsActive      bool      `gorm:"type:tinyint(1);not null;default:1;index" json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID;references:ID" json:"members"`
}

func (Conversation) TableName() string { return "conversations" }

// MemberIDs 参与者 ID
func (c *Conversation) MemberIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember 是否为参与者
func (c *Conversation) HasMember(userID uint64) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ConversationMember 会话成员表, UnreadCount 为该成员的未读数
type ConversationMember struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64    `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	UnreadCount    uint64    `gorm:"not null;default:0" json:"unreadCount"`
	JoinedAt       time.Time `json:"joinedAt"`
}

func (ConversationMember) TableName() string { return "conversation_members" }

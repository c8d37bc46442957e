package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID             primitive.ObjectID  `bson:"_id"`
	ConversationID uint64              `bson:"conversation_id"` // 关联 MySQL 的会话 ID
	SenderID       uint64              `bson:"sender_id"`
	Type           string              `bson:"type"` // text / image / video / audio / document
	Content        string              `bson:"content"`
	Media          *Media              `bson:"media,omitempty"`
	ReplyTo        *primitive.ObjectID `bson:"reply_to,omitempty"` // 同会话内的消息
	Status         Status              `bson:"status"`
	DeliveredTo    []Receipt           `bson:"delivered_to"` // 按到达顺序, 每个用户至多一次
	ReadBy         []Receipt           `bson:"read_by"`
	IsEdited       bool                `bson:"is_edited"`
	EditedAt       *time.Time          `bson:"edited_at,omitempty"`
	IsDeleted      bool                `bson:"is_deleted"` // 全局软删除
	DeletedAt      *time.Time          `bson:"deleted_at,omitempty"`
	DeletedFor     []uint64            `bson:"deleted_for"` // 仅对自己隐藏的用户
	CreatedAt      time.Time           `bson:"created_at"`
}

// Media 附件描述
type Media struct {
	URL          string  `bson:"url"`
	Key          string  `bson:"key,omitempty"` // MinIO 对象 key, 服务端根据 URL 解析
	Filename     string  `bson:"filename"`
	MimeType     string  `bson:"mime_type"`
	Size         int64   `bson:"size"`
	Duration     float64 `bson:"duration,omitempty"`
	Thumbnail    string  `bson:"thumbnail,omitempty"`
	ThumbnailKey string  `bson:"thumbnail_key,omitempty"`
	Purged       bool    `bson:"purged,omitempty"` // 对象已被过期清理
}

// Status 只升不降: sent -> delivered -> read
type Status struct {
	Sent      bool `bson:"sent"`
	Delivered bool `bson:"delivered"`
	Read      bool `bson:"read"`
}

// Receipt 回执
type Receipt struct {
	UserID uint64    `bson:"user_id"`
	At     time.Time `bson:"at"`
}

// NewMessage 初始化回执数组, 避免 null 字段导致 $push 失败
func NewMessage(conversationID, senderID uint64, msgType, content string, now time.Time) *Message {
	return &Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        content,
		Status:         Status{Sent: true},
		DeliveredTo:    []Receipt{},
		ReadBy:         []Receipt{},
		DeletedFor:     []uint64{},
		CreatedAt:      now,
	}
}

// HiddenFor 用户是否对自己隐藏了该消息
func (m *Message) HiddenFor(userID uint64) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

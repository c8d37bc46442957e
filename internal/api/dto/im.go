package dto

import "time"

// MediaDTO 媒体描述, 由上传接口返回后原样随消息提交
type MediaDTO struct {
	URL       string  `json:"url" validate:"required,url,max=1024"`
	Filename  string  `json:"filename" validate:"max=255"`
	MimeType  string  `json:"mimeType" validate:"max=255"`
	Size      int64   `json:"size" validate:"min=0"`
	Duration  float64 `json:"duration,omitempty" validate:"min=0"`
	Thumbnail string  `json:"thumbnail,omitempty" validate:"max=1024"`
}

type SendMessageDTO struct {
	ConversationID uint64    `json:"conversationId" validate:"required"`
	Content        string    `json:"content" validate:"max=5000"`
	Type           string    `json:"type" validate:"omitempty,oneof=text image video audio document"`
	ReplyTo        string    `json:"replyTo" validate:"max=64"`
	TempID         string    `json:"tempId" validate:"max=128"`
	Media          *MediaDTO `json:"media"`
}

type EditMessageDTO struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type CreateConversationDTO struct {
	ParticipantID uint64 `json:"participantId" validate:"required"`
}

type MessageStatusDTO struct {
	Sent      bool `json:"sent"`
	Delivered bool `json:"delivered"`
	Read      bool `json:"read"`
}

type ReceiptDTO struct {
	UserID uint64    `json:"userId"`
	At     time.Time `json:"at"`
}

type MessageDTO struct {
	ID             string           `json:"id"`
	ConversationID uint64           `json:"conversationId"`
	SenderID       uint64           `json:"senderId"`
	Sender         *UserBrief       `json:"sender,omitempty"`
	Type           string           `json:"type"`
	Content        string           `json:"content"`
	Media          *MediaDTO        `json:"media,omitempty"`
	ReplyTo        string           `json:"replyTo,omitempty"`
	Status         MessageStatusDTO `json:"status"`
	DeliveredTo    []ReceiptDTO     `json:"deliveredTo"`
	ReadBy         []ReceiptDTO     `json:"readBy"`
	IsEdited       bool             `json:"isEdited"`
	EditedAt       *time.Time       `json:"editedAt,omitempty"`
	IsDeleted      bool             `json:"isDeleted"`
	DeletedAt      *time.Time       `json:"deletedAt,omitempty"`
	DeletedFor     []uint64         `json:"deletedFor"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type ConversationDTO struct {
	ID            uint64       `json:"id"`
	Type          int8         `json:"type"`
	Participants  []*UserBrief `json:"participants"`
	LastMessage   *MessageDTO  `json:"lastMessage"`
	LastMessageAt time.Time    `json:"lastMessageAt"`
	UnreadCount   uint64       `json:"unreadCount"`
	IsActive      bool         `json:"isActive"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type DeleteMessageDTO struct {
	ForEveryone bool `json:"forEveryone" form:"forEveryone"`
}

type HistoryQueryDTO struct {
	Limit  int       `form:"limit" validate:"min=0,max=100"`
	Before time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
}
